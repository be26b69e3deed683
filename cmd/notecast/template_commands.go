package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"notecast/internal/apiclient"
	"notecast/internal/store"
)

func newTemplateCommand(ctx *commandContext) *cobra.Command {
	templateCmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"templates"},
		Short:   "Manage episode templates",
	}

	templateCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List episode templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				templates, err := client.ListTemplates(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, templates)
				}
				if len(templates) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No templates")
					return nil
				}
				rows := make([][]string, 0, len(templates))
				for _, tpl := range templates {
					rows = append(rows, []string{tpl.Name, shorten(tpl.PodcastName, 30), tpl.Voice1 + " / " + tpl.Voice2, tpl.Language})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Name", "Podcast", "Voices", "Language"}, rows, nil))
				return nil
			})
		},
	})

	templateCmd.AddCommand(&cobra.Command{
		Use:   "show NAME",
		Short: "Show an episode template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				tpl, err := client.GetTemplate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, tpl)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTemplate(tpl))
				return nil
			})
		},
	})

	templateCmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Create or replace templates from a TOML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				imported, err := client.ImportTemplates(cmd.Context(), data)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, imported)
				}
				names := make([]string, 0, len(imported))
				for _, tpl := range imported {
					names = append(names, tpl.Name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %s\n", countLabel(len(imported), "template"), strings.Join(names, ", "))
				return nil
			})
		},
	})

	templateCmd.AddCommand(&cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an episode template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := client.DeleteTemplate(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted template %s\n", args[0])
				return nil
			})
		},
	})

	return templateCmd
}

func renderTemplate(tpl store.EpisodeTemplate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", tpl.Name)
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "  %-22s %s\n", label+":", value)
		}
	}
	line("Podcast", tpl.PodcastName)
	line("Tagline", tpl.Tagline)
	line("Language", tpl.Language)
	line("Host 1 roles", strings.Join(tpl.Person1Roles, ", "))
	line("Host 2 roles", strings.Join(tpl.Person2Roles, ", "))
	line("Conversation style", strings.Join(tpl.ConversationStyle, ", "))
	line("Engagement", strings.Join(tpl.EngagementTechniques, ", "))
	line("Structure", strings.Join(tpl.DialogueStructure, ", "))
	line("Creativity", fmt.Sprintf("%.2f", tpl.Creativity))
	line("Voices", tpl.Voice1+" / "+tpl.Voice2)
	line("Ending", tpl.EndingMessage)
	line("Model", tpl.Model)
	return b.String()
}
