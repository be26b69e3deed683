package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"notecast/internal/api"
	"notecast/internal/apiclient"
)

func newNotebookCommand(ctx *commandContext) *cobra.Command {
	notebookCmd := &cobra.Command{
		Use:     "notebook",
		Aliases: []string{"notebooks", "nb"},
		Short:   "Manage notebooks",
	}

	notebookCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List notebooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				notebooks, err := client.ListNotebooks(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, notebooks)
				}
				if len(notebooks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No notebooks")
					return nil
				}
				rows := make([][]string, 0, len(notebooks))
				for _, nb := range notebooks {
					rows = append(rows, []string{nb.ID, nb.Name, shorten(nb.Description, 40), formatTimestamp(nb.UpdatedAt)})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Description", "Updated"}, rows, nil))
				return nil
			})
		},
	})

	var description string
	createCmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a notebook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				nb, err := client.CreateNotebook(cmd.Context(), args[0], description)
				if err != nil {
					return err
				}
				return printNotebook(cmd, ctx, nb, "Created notebook")
			})
		},
	}
	createCmd.Flags().StringVarP(&description, "description", "d", "", "Notebook description")
	notebookCmd.AddCommand(createCmd)

	notebookCmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show a notebook with its sources, notes, and episodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				nb, err := client.GetNotebook(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				sources, err := client.ListSources(cmd.Context(), nb.ID)
				if err != nil {
					return err
				}
				notes, err := client.ListNotes(cmd.Context(), nb.ID)
				if err != nil {
					return err
				}
				episodes, err := client.ListEpisodes(cmd.Context(), nb.ID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{
						"notebook": nb,
						"sources":  sources,
						"notes":    notes,
						"episodes": episodes,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n", nb.Name, nb.ID)
				if nb.Description != "" {
					fmt.Fprintln(out, nb.Description)
				}
				fmt.Fprintf(out, "%s, %s, %s\n",
					countLabel(len(sources), "source"), countLabel(len(notes), "note"), countLabel(len(episodes), "episode"))
				if len(sources) > 0 {
					fmt.Fprint(out, renderSources(sources))
				}
				if len(episodes) > 0 {
					fmt.Fprint(out, renderEpisodes(episodes, shouldColorize(out)))
				}
				return nil
			})
		},
	})

	var renameDescription string
	renameCmd := &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a notebook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				desc := renameDescription
				if !cmd.Flags().Changed("description") {
					current, err := client.GetNotebook(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					desc = current.Description
				}
				nb, err := client.UpdateNotebook(cmd.Context(), args[0], args[1], desc)
				if err != nil {
					return err
				}
				return printNotebook(cmd, ctx, nb, "Updated notebook")
			})
		},
	}
	renameCmd.Flags().StringVarP(&renameDescription, "description", "d", "", "Replace the description")
	notebookCmd.AddCommand(renameCmd)

	notebookCmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a notebook with its sources, notes, and episodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := client.DeleteNotebook(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted notebook %s\n", args[0])
				return nil
			})
		},
	})

	return notebookCmd
}

func printNotebook(cmd *cobra.Command, ctx *commandContext, nb api.Notebook, verb string) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, nb)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", verb, nb.Name, nb.ID)
	return nil
}
