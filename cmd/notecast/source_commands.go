package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"notecast/internal/api"
	"notecast/internal/apiclient"
	"notecast/internal/store"
)

func newSourceCommand(ctx *commandContext) *cobra.Command {
	sourceCmd := &cobra.Command{
		Use:     "source",
		Aliases: []string{"sources"},
		Short:   "Manage notebook sources",
	}

	sourceCmd.AddCommand(&cobra.Command{
		Use:   "list NOTEBOOK",
		Short: "List a notebook's sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				sources, err := client.ListSources(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, sources)
				}
				if len(sources) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sources")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderSources(sources))
				return nil
			})
		},
	})

	var (
		title    string
		text     string
		rawURL   string
		file     string
		asLink   bool
		useStdin bool
	)
	addCmd := &cobra.Command{
		Use:   "add NOTEBOOK",
		Short: "Add text, a web page, or a local file to a notebook",
		Long: "Add a source to a notebook. Exactly one of --text, --stdin, --url, or --file is required.\n" +
			"Web pages are fetched by the daemon and reduced to their readable text.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.AddSourceRequest{Title: title}
			chosen := 0
			if text != "" {
				chosen++
				req.Kind, req.Text = string(store.SourceText), text
			}
			if useStdin {
				chosen++
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				req.Kind, req.Text = string(store.SourceText), string(data)
			}
			if rawURL != "" {
				chosen++
				req.Kind, req.URL = string(store.SourceWebsite), rawURL
				if asLink {
					req.Kind = string(store.SourceLink)
				}
			}
			if file != "" {
				chosen++
				req.Kind, req.Path = string(store.SourceUpload), file
			}
			if chosen != 1 {
				return errors.New("specify exactly one of --text, --stdin, --url, or --file")
			}

			return ctx.withClient(func(client *apiclient.Client) error {
				src, err := client.AddSource(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, src)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s source %q (%s, %d chars)\n", src.KindLabel, src.Title, src.ID, src.Chars)
				return nil
			})
		},
	}
	addCmd.Flags().StringVarP(&title, "title", "t", "", "Source title (derived from the content when omitted)")
	addCmd.Flags().StringVar(&text, "text", "", "Pasted text content")
	addCmd.Flags().BoolVar(&useStdin, "stdin", false, "Read text content from stdin")
	addCmd.Flags().StringVar(&rawURL, "url", "", "Web page to fetch")
	addCmd.Flags().BoolVar(&asLink, "link", false, "Record a URL source as a link rather than a website")
	addCmd.Flags().StringVar(&file, "file", "", "Local text, markdown, or HTML file")
	sourceCmd.AddCommand(addCmd)

	sourceCmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Print a source with its full text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				src, err := client.GetSource(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, src)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s [%s]\n", src.Title, src.KindLabel)
				if src.Location != "" {
					fmt.Fprintln(out, src.Location)
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, src.FullText)
				return nil
			})
		},
	})

	sourceCmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a source and its insights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := client.DeleteSource(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted source %s\n", args[0])
				return nil
			})
		},
	})

	return sourceCmd
}

func renderSources(sources []api.Source) string {
	rows := make([][]string, 0, len(sources))
	for _, src := range sources {
		rows = append(rows, []string{src.ID, src.KindLabel, shorten(src.Title, 40), strconv.Itoa(src.Chars), shorten(src.Location, 40)})
	}
	return renderTable([]string{"ID", "Kind", "Title", "Chars", "Location"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
}
