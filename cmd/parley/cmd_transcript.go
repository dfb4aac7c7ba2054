package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/parley/pkg/backend"
)

var (
	transcriptView string
	analyzeBuffer  int64
	analyzeTypes   []string
)

func init() {
	rootCmd.AddCommand(transcriptCmd, analyzeCmd)
	transcriptCmd.Flags().StringVar(&transcriptView, "view", "hybrid", "transcript view: raw, enhanced, or hybrid")
	analyzeCmd.Flags().Int64Var(&analyzeBuffer, "buffer", 0, "buffer id to attribute the analysis to")
	analyzeCmd.Flags().StringSliceVar(&analyzeTypes, "types", nil, "analysis types to request (default all)")
}

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Show the live session transcript",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			SessionID string `json:"session_id"`
			View      string `json:"view"`
			Text      string `json:"text"`
		}
		path := "/api/transcript?view=" + url.QueryEscape(transcriptView)
		if err := daemonDo(http.MethodGet, path, nil, &resp); err != nil {
			return err
		}

		if resp.Text == "" {
			fmt.Println("Transcript is empty.")
			return nil
		}
		fmt.Fprintln(os.Stdout, resp.Text)
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <text>",
	Short: "Request an ad-hoc analysis of the given text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"buffer_id": analyzeBuffer,
			"text":      strings.Join(args, " "),
		}
		if len(analyzeTypes) > 0 {
			body["analysis_types"] = analyzeTypes
		}

		var combined backend.CombinedAnalysis
		if err := daemonDo(http.MethodPost, "/api/analyze", body, &combined); err != nil {
			return err
		}

		if len(combined.Results) == 0 {
			fmt.Println("No results.")
			return nil
		}
		for _, typ := range backend.AllAnalysisTypes() {
			res, ok := combined.Results[typ]
			if !ok {
				continue
			}
			fmt.Fprintf(os.Stdout, "%s:\n  %s\n", typ, res.Payload)
		}
		return nil
	},
}
