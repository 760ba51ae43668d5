package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/chat-dispatch/internal/catalog"
)

func newCatalogCmd(load func() (*catalog.Catalog, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the category catalog",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List categories and their model tiers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := load()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tPRIMARY\tSECONDARY\tFALLBACK\tDOCS\tCONTEXT")
			for _, c := range cat.Categories() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%d\n", c.ID, c.Tiers[0], c.Tiers[1], c.Tiers[2], c.SupportsNativeDocument, c.ContextWindow)
			}
			return tw.Flush()
		},
	}

	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "List routing rules in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := load()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RULE\tCATEGORY\tKEYWORDS")
			for _, r := range cat.Rules() {
				kw := strings.Join(r.Keywords, ",")
				if r.IsDefault() {
					kw = "(default)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Category, kw)
			}
			return tw.Flush()
		},
	}

	lookupCmd := &cobra.Command{
		Use:   "lookup <model>",
		Short: "Resolve the category of an arbitrary model id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := load()
			if err != nil {
				return err
			}
			info := cat.Lookup(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "category=%s match=%s tier=%d native_document=%t context_window=%d\n",
				info.Category, info.Match, info.Tier, info.SupportsNativeDocument, info.ContextWindow)
			return nil
		},
	}

	cmd.AddCommand(listCmd, rulesCmd, lookupCmd)
	return cmd
}
