package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"notecast/internal/apiclient"
)

func newNoteCommand(ctx *commandContext) *cobra.Command {
	noteCmd := &cobra.Command{
		Use:     "note",
		Aliases: []string{"notes"},
		Short:   "Manage notebook notes",
	}

	noteCmd.AddCommand(&cobra.Command{
		Use:   "list NOTEBOOK",
		Short: "List a notebook's notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				notes, err := client.ListNotes(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, notes)
				}
				if len(notes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No notes")
					return nil
				}
				rows := make([][]string, 0, len(notes))
				for _, note := range notes {
					rows = append(rows, []string{note.ID, shorten(note.Title, 30), shorten(note.Content, 48), formatTimestamp(note.CreatedAt)})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"ID", "Title", "Content", "Created"}, rows, nil))
				return nil
			})
		},
	})

	var title string
	addCmd := &cobra.Command{
		Use:   "add NOTEBOOK CONTENT",
		Short: "Add a note to a notebook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				note, err := client.CreateNote(cmd.Context(), args[0], title, args[1])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, note)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added note %s\n", note.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVarP(&title, "title", "t", "", "Note title")
	noteCmd.AddCommand(addCmd)

	noteCmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := client.DeleteNote(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted note %s\n", args[0])
				return nil
			})
		},
	})

	return noteCmd
}
