package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"notecast/internal/api"
	"notecast/internal/apiclient"
)

func newTransformationCommand(ctx *commandContext) *cobra.Command {
	transformCmd := &cobra.Command{
		Use:     "transformation",
		Aliases: []string{"transformations", "tf"},
		Short:   "Manage transformations",
	}

	transformCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List transformations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				items, err := client.ListTransformations(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No transformations")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					def := ""
					if item.ApplyDefault {
						def = "*"
					}
					rows = append(rows, []string{item.ID, item.Name, shorten(item.Title, 30), def, shorten(item.Prompt, 40)})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Title", "Default", "Prompt"}, rows, nil))
				return nil
			})
		},
	})

	createReq := api.TransformationRequest{}
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a transformation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				item, err := client.CreateTransformation(cmd.Context(), createReq)
				if err != nil {
					return err
				}
				return printTransformation(cmd, ctx, item, "Created")
			})
		},
	}
	bindTransformationFlags(createCmd, &createReq)
	transformCmd.AddCommand(createCmd)

	updateReq := api.TransformationRequest{}
	updateCmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a transformation; unset flags keep their current values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				current, err := findTransformation(cmd, client, args[0])
				if err != nil {
					return err
				}
				req := mergeTransformation(cmd, current, updateReq)
				item, err := client.UpdateTransformation(cmd.Context(), current.ID, req)
				if err != nil {
					return err
				}
				return printTransformation(cmd, ctx, item, "Updated")
			})
		},
	}
	bindTransformationFlags(updateCmd, &updateReq)
	transformCmd.AddCommand(updateCmd)

	transformCmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a transformation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := client.DeleteTransformation(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted transformation %s\n", args[0])
				return nil
			})
		},
	})

	transformCmd.AddCommand(&cobra.Command{
		Use:   "default ID",
		Short: "Make a transformation the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				item, err := client.SetDefaultTransformation(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printTransformation(cmd, ctx, item, "Default transformation is now")
			})
		},
	})

	transformCmd.AddCommand(&cobra.Command{
		Use:   "unset-default",
		Short: "Clear the default transformation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				cleared, err := client.UnsetDefaultTransformation(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.UnsetDefaultResponse{Cleared: cleared})
				}
				if cleared {
					fmt.Fprintln(cmd.OutOrStdout(), "Default transformation cleared")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No default transformation was set")
				}
				return nil
			})
		},
	})

	return transformCmd
}

func bindTransformationFlags(cmd *cobra.Command, req *api.TransformationRequest) {
	cmd.Flags().StringVar(&req.Name, "name", "", "Unique transformation name")
	cmd.Flags().StringVar(&req.Title, "title", "", "Title given to produced insights")
	cmd.Flags().StringVar(&req.Description, "description", "", "Description")
	cmd.Flags().StringVar(&req.Prompt, "prompt", "", "Instructions sent with the source text")
	cmd.Flags().BoolVar(&req.ApplyDefault, "default", false, "Make this the default transformation")
}

func findTransformation(cmd *cobra.Command, client *apiclient.Client, id string) (api.Transformation, error) {
	items, err := client.ListTransformations(cmd.Context())
	if err != nil {
		return api.Transformation{}, err
	}
	for _, item := range items {
		if item.ID == id || item.Name == id {
			return item, nil
		}
	}
	return api.Transformation{}, fmt.Errorf("transformation %q not found", id)
}

func mergeTransformation(cmd *cobra.Command, current api.Transformation, flags api.TransformationRequest) api.TransformationRequest {
	req := api.TransformationRequest{
		Name:         current.Name,
		Title:        current.Title,
		Description:  current.Description,
		Prompt:       current.Prompt,
		ApplyDefault: current.ApplyDefault,
	}
	changed := cmd.Flags().Changed
	if changed("name") {
		req.Name = flags.Name
	}
	if changed("title") {
		req.Title = flags.Title
	}
	if changed("description") {
		req.Description = flags.Description
	}
	if changed("prompt") {
		req.Prompt = flags.Prompt
	}
	if changed("default") {
		req.ApplyDefault = flags.ApplyDefault
	}
	return req
}

func printTransformation(cmd *cobra.Command, ctx *commandContext, item api.Transformation, verb string) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, item)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", verb, item.Name, item.ID)
	return nil
}

func newInsightCommand(ctx *commandContext) *cobra.Command {
	insightCmd := &cobra.Command{
		Use:     "insight",
		Aliases: []string{"insights"},
		Short:   "Apply transformations to sources and manage insights",
	}

	insightCmd.AddCommand(&cobra.Command{
		Use:   "list SOURCE",
		Short: "List a source's insights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				insights, err := client.ListInsights(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, insights)
				}
				if len(insights) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No insights")
					return nil
				}
				rows := make([][]string, 0, len(insights))
				for _, insight := range insights {
					rows = append(rows, []string{insight.ID, shorten(insight.InsightType, 30), shorten(insight.Content, 48), formatTimestamp(insight.CreatedAt)})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"ID", "Type", "Content", "Created"}, rows, nil))
				return nil
			})
		},
	})

	var transformation string
	applyCmd := &cobra.Command{
		Use:   "apply SOURCE",
		Short: "Run a transformation against a source",
		Long:  "Run a transformation against a source and store the result as an insight.\nWithout --transformation the default transformation is applied.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				insight, err := client.ApplyTransformation(cmd.Context(), args[0], transformation)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, insight)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n\n", insight.InsightType, insight.ID)
				fmt.Fprintln(out, insight.Content)
				return nil
			})
		},
	}
	applyCmd.Flags().StringVarP(&transformation, "transformation", "t", "", "Transformation name (defaults to the default transformation)")
	insightCmd.AddCommand(applyCmd)

	insightCmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete an insight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := client.DeleteInsight(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted insight %s\n", args[0])
				return nil
			})
		},
	})

	return insightCmd
}
