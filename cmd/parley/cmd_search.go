package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/parley/pkg/backend"
	"github.com/user/parley/pkg/backend/rest"
)

var (
	searchTopK    int
	searchMode    string
	searchProject string
)

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "maximum number of hits (default from config)")
	searchCmd.Flags().StringVar(&searchMode, "mode", "hybrid", "search mode: semantic, keyword, or hybrid")
	searchCmd.Flags().StringVar(&searchProject, "project", "", "restrict to a project id")
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search across archived recordings",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		mode := backend.SearchMode(searchMode)
		switch mode {
		case backend.SearchModeSemantic, backend.SearchModeKeyword, backend.SearchModeHybrid:
		default:
			return fmt.Errorf("unknown search mode: %s", searchMode)
		}

		topK := searchTopK
		if topK <= 0 {
			topK = cfg.Search.DefaultTopK
		}

		client := rest.New(&backend.Config{
			BaseURL: cfg.Backend.BaseURL,
			APIKey:  cfg.Backend.APIKey,
		})

		query := strings.Join(args, " ")
		results, err := client.Search(context.Background(), query, backend.SearchFilters{
			ProjectID:     searchProject,
			TopK:          topK,
			MinSimilarity: cfg.Search.MinSimilarity,
		}, mode)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		if len(results.Hits) == 0 {
			fmt.Println("No results.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tRECORDING\tSNIPPET")
		for _, hit := range results.Hits {
			snippet := strings.ReplaceAll(hit.Snippet, "\n", " ")
			if len(snippet) > 80 {
				snippet = snippet[:77] + "..."
			}
			fmt.Fprintf(w, "%.2f\t%s\t%s\n", hit.Score, hit.RecordingID, snippet)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "\n%d of %d results shown.\n", len(results.Hits), results.Total)
		return nil
	},
}
