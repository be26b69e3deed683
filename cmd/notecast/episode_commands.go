package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"notecast/internal/api"
	"notecast/internal/apiclient"
	"notecast/internal/catalog"
	"notecast/internal/fileutil"
	"notecast/internal/store"
	"notecast/internal/textutil"
)

const waitChunk = 2 * time.Minute

func newEpisodeCommand(ctx *commandContext) *cobra.Command {
	episodeCmd := &cobra.Command{
		Use:     "episode",
		Aliases: []string{"episodes", "ep"},
		Short:   "Generate and manage podcast episodes",
	}

	episodeCmd.AddCommand(newEpisodeRequestCommand(ctx))
	episodeCmd.AddCommand(newEpisodeListCommand(ctx))
	episodeCmd.AddCommand(newEpisodeShowCommand(ctx))
	episodeCmd.AddCommand(newEpisodeWatchCommand(ctx))
	episodeCmd.AddCommand(newEpisodeAudioCommand(ctx))
	episodeCmd.AddCommand(newEpisodeRemoveCommand(ctx))

	return episodeCmd
}

func newEpisodeRequestCommand(ctx *commandContext) *cobra.Command {
	req := api.EpisodeRequest{}
	var wait bool
	cmd := &cobra.Command{
		Use:   "request NOTEBOOK",
		Short: "Request a podcast episode from a notebook's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				ep, err := client.RequestEpisode(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				if wait {
					if !ctx.jsonOutput() {
						fmt.Fprintf(cmd.OutOrStdout(), "Requested episode %s; waiting for it to finish\n", ep.ID)
					}
					ep, err = waitForEpisode(cmd.Context(), client, ep.ID, cmd.ErrOrStderr(), ctx.jsonOutput())
					if err != nil {
						return err
					}
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, ep)
				}
				if !wait {
					fmt.Fprintf(cmd.OutOrStdout(), "Requested episode %s (%s)\n", ep.ID, ep.Name)
					fmt.Fprintf(cmd.OutOrStdout(), "Follow it with `notecast episode watch %s`\n", ep.ID)
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderEpisodeDetail(ep, shouldColorize(cmd.OutOrStdout())))
				if ep.Status == string(store.StatusFailed) {
					return fmt.Errorf("episode %s failed: %s", ep.ID, ep.FailureReason)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&req.Name, "name", "n", "", "Episode name")
	cmd.Flags().StringVarP(&req.Template, "template", "t", catalog.DefaultTemplateName, "Episode template")
	cmd.Flags().StringVarP(&req.Length, "length", "l", string(store.LengthShort), "Episode length (short, medium, long)")
	cmd.Flags().StringVarP(&req.Instructions, "instructions", "i", "", "Extra instructions for the hosts")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Block until the episode completes or fails")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// waitForEpisode long-polls until the episode reaches a terminal status,
// reporting stage changes to progress.
func waitForEpisode(ctx context.Context, client *apiclient.Client, id string, progress io.Writer, quiet bool) (api.Episode, error) {
	lastStage := ""
	for {
		ep, err := client.WaitEpisode(ctx, id, waitChunk)
		if err != nil {
			return api.Episode{}, err
		}
		if !quiet && ep.Stage != "" && ep.Stage != lastStage {
			fmt.Fprintf(progress, "  %s\n", ep.Stage)
			lastStage = ep.Stage
		}
		if ep.Terminal() {
			return ep, nil
		}
		if err := ctx.Err(); err != nil {
			return ep, err
		}
	}
}

func newEpisodeListCommand(ctx *commandContext) *cobra.Command {
	var notebookID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				episodes, err := client.ListEpisodes(cmd.Context(), notebookID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, episodes)
				}
				if len(episodes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No episodes")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderEpisodes(episodes, shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&notebookID, "notebook", "", "Only list episodes of this notebook")
	return cmd
}

func newEpisodeShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show an episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				ep, err := client.GetEpisode(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, ep)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderEpisodeDetail(ep, shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
}

func newEpisodeWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		interval time.Duration
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch ID",
		Short: "Poll an episode and print progress until it finishes or the timeout passes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return errors.New("--interval must be positive")
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				watchCtx := cmd.Context()
				if timeout > 0 {
					var cancel context.CancelFunc
					watchCtx, cancel = context.WithTimeout(watchCtx, timeout)
					defer cancel()
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				last := ""
				for {
					ep, err := client.GetEpisode(watchCtx, args[0])
					if err != nil {
						if errors.Is(err, context.DeadlineExceeded) {
							fmt.Fprintf(out, "Stopped watching after %s\n", timeout)
							return nil
						}
						return err
					}
					state := ep.Status + "/" + ep.Stage
					if state != last {
						last = state
						line := colorStatus(ep.Status, colorize)
						if ep.Stage != "" {
							line += "  " + ep.Stage
						}
						fmt.Fprintf(out, "%s  %s\n", time.Now().Format("15:04:05"), line)
					}
					if ep.Terminal() {
						if ep.Status == string(store.StatusFailed) {
							return fmt.Errorf("episode %s failed: %s", ep.ID, ep.FailureReason)
						}
						fmt.Fprintf(out, "Completed: %s of audio at %s\n", formatDuration(ep.DurationSeconds), ep.AudioURL)
						return nil
					}
					select {
					case <-watchCtx.Done():
						if errors.Is(watchCtx.Err(), context.DeadlineExceeded) {
							fmt.Fprintf(out, "Stopped watching after %s; episode is still %s\n", timeout, ep.Status)
							return nil
						}
						return watchCtx.Err()
					case <-ticker.C:
					}
				}
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Give up after this long (0 waits forever)")
	return cmd
}

func newEpisodeAudioCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "audio ID",
		Short: "Download a completed episode's audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				target := output
				if target == "" {
					ep, err := client.GetEpisode(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					target = audioFileName(ep)
				}
				var written int64
				err := fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
					n, err := client.DownloadAudio(cmd.Context(), args[0], w)
					written = n
					return err
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"path": target, "bytes": written})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", target, written)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (defaults to the episode name)")
	return cmd
}

func audioFileName(ep api.Episode) string {
	base := textutil.SanitizeFileName(ep.Name)
	if base == "" {
		base = ep.ID
	}
	return filepath.Join(".", base+".wav")
}

func newEpisodeRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove a finished episode and its audio",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := client.DeleteEpisode(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed episode %s\n", args[0])
				return nil
			})
		},
	}
}

func renderEpisodes(episodes []api.Episode, colorize bool) string {
	rows := make([][]string, 0, len(episodes))
	for _, ep := range episodes {
		rows = append(rows, []string{
			ep.ID,
			shorten(ep.Name, 32),
			colorStatus(ep.Status, colorize),
			ep.Stage,
			ep.Length,
			formatDuration(ep.DurationSeconds),
			formatTimestamp(ep.CreatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "Name", "Status", "Stage", "Length", "Duration", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func renderEpisodeDetail(ep api.Episode, colorize bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", ep.Name, ep.ID)
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "  %-10s %s\n", label+":", value)
		}
	}
	line("Status", colorStatus(ep.Status, colorize))
	line("Stage", ep.Stage)
	line("Notebook", ep.NotebookID)
	line("Template", ep.Template)
	line("Length", ep.Length)
	line("Created", formatTimestamp(ep.CreatedAt))
	if ep.StartedAt != "" {
		line("Started", formatTimestamp(ep.StartedAt))
	}
	if ep.FinishedAt != "" {
		line("Finished", formatTimestamp(ep.FinishedAt))
	}
	if ep.DurationSeconds > 0 {
		line("Duration", formatDuration(ep.DurationSeconds))
	}
	line("Audio", ep.AudioURL)
	line("Failure", ep.FailureReason)
	return b.String()
}
