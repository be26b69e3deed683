// Command notecastd runs the notecast daemon without the CLI wrapper. The
// configuration file is read from $NOTECAST_CONFIG when set, otherwise from
// the default locations.
package main

import (
	"context"
	"log"

	"notecast/internal/config"
	"notecast/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Fatalf("notecastd: %v", err)
	}
}
