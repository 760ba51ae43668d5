package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/chat-dispatch/internal/catalog"
	"github.com/fairyhunter13/chat-dispatch/internal/routing"
)

func newClassifyCmd(load func() (*catalog.Catalog, error)) *cobra.Command {
	var (
		model     string
		documents bool
		speed     bool
		attempt   int
	)
	cmd := &cobra.Command{
		Use:   "classify [message]",
		Short: "Show the category and model a message would be routed to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := load()
			if err != nil {
				return err
			}
			msg := strings.Join(args, " ")
			classifier := routing.NewClassifier(cat)
			sel := routing.NewSelector(cat, classifier).SelectFor(routing.Request{
				Message:        msg,
				RequestedModel: model,
				HasDocuments:   documents,
				PreferSpeed:    speed,
			}, attempt)
			out := struct {
				Classification routing.Classification `json:"classification"`
				Selection      routing.Selection      `json:"selection"`
			}{classifier.Classify(msg), sel}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "pinned model id (auto when empty)")
	cmd.Flags().BoolVar(&documents, "documents", false, "conversation has uploaded documents")
	cmd.Flags().BoolVar(&speed, "speed", false, "prefer the speed category")
	cmd.Flags().IntVar(&attempt, "attempt", 0, "tier attempt index (0..2)")
	return cmd
}
