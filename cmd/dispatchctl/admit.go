package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/chat-dispatch/internal/catalog"
	"github.com/fairyhunter13/chat-dispatch/internal/domain"
	"github.com/fairyhunter13/chat-dispatch/internal/usecase"
)

func newAdmitCmd(load func() (*catalog.Catalog, error)) *cobra.Command {
	var (
		model    string
		existing map[string]int
	)
	cmd := &cobra.Command{
		Use:   "admit <name:type:sizeMB>...",
		Short: "Dry-run upload admission for a batch of files",
		Example: "  dispatchctl admit --model provider-8/kimi-k2 --existing pdf=1 notes.docx:docx:2.5\n" +
			"  dispatchctl admit a.pdf:pdf:1 b.pdf:pdf:3",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := load()
			if err != nil {
				return err
			}
			files := make([]usecase.BatchFile, 0, len(args))
			for _, a := range args {
				f, err := parseBatchFile(a)
				if err != nil {
					return err
				}
				files = append(files, f)
			}
			counts := make(map[domain.FileType]int, len(existing))
			for k, v := range existing {
				counts[domain.FileType(k)] = v
			}

			svc := usecase.UploadService{Catalog: cat}
			category := svc.CategoryForModel(model)
			adm := usecase.NewUploadAdmission(cat)
			res := adm.AdmitBatch(files, counts, category)
			out := struct {
				Category string               `json:"category"`
				Tier     string               `json:"tier"`
				Result   usecase.BatchResult  `json:"result"`
				Limits   usecase.UploadLimits `json:"limits"`
			}{category, adm.TierFor(category), res, adm.Limits(category)}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if !res.AllValid {
				return fmt.Errorf("%d of %d files rejected", res.Summary.Invalid, res.Summary.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", domain.AutoModel, "model the conversation is pinned to")
	cmd.Flags().StringToIntVar(&existing, "existing", nil, "files already attached, by type (e.g. pdf=1,docx=1)")
	return cmd
}

// parseBatchFile reads "name:type:sizeMB"; the size may be omitted.
func parseBatchFile(s string) (usecase.BatchFile, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
		return usecase.BatchFile{}, fmt.Errorf("invalid file %q, want name:type[:sizeMB]", s)
	}
	f := usecase.BatchFile{Filename: parts[0], Type: domain.FileType(strings.ToLower(parts[1]))}
	if len(parts) == 3 {
		mb, err := strconv.ParseFloat(parts[2], 64)
		if err != nil || mb < 0 {
			return usecase.BatchFile{}, fmt.Errorf("invalid size in %q", s)
		}
		f.SizeMB = mb
	}
	return f, nil
}
