package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/parley/internal/archive"
	"github.com/user/parley/internal/clock"
	"github.com/user/parley/internal/journal"
	"github.com/user/parley/internal/session"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionEventsCmd, sessionClearCmd)
	sessionEventsCmd.Flags().IntVar(&sessionEventsTail, "tail", 0, "show only the last N events")
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

// openArchive opens the archive store under the configured data dir.
func openArchive() (*archive.Store, error) {
	cfg := loadConfig()
	store, err := archive.Open(filepath.Join(cfg.DataDir, "archive.db"))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return store, nil
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List(context.Background())
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No archived sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tCLEARED\tANALYSES")
		for _, row := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
				row.ID,
				row.StartedAt.Format("2006-01-02 15:04:05"),
				row.ClearedAt.Format("2006-01-02 15:04:05"),
				len(row.Analyses),
			)
		}
		return w.Flush()
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an archived session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		row, err := store.Get(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if row == nil {
			return fmt.Errorf("session not found: %s", args[0])
		}

		fmt.Fprintf(os.Stdout, "Session %s\n", row.ID)
		fmt.Fprintf(os.Stdout, "Started: %s\n", row.StartedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(os.Stdout, "Cleared: %s\n", row.ClearedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintln(os.Stdout)

		transcript := row.Enhanced
		if transcript == "" {
			transcript = row.RawTranscript
		}
		if transcript != "" {
			fmt.Fprintln(os.Stdout, transcript)
		}

		if len(row.Analyses) > 0 {
			fmt.Fprintln(os.Stdout)
			fmt.Fprintf(os.Stdout, "Analyses (%d):\n", len(row.Analyses))
			for _, a := range row.Analyses {
				types := make([]string, 0, len(a.Results))
				for typ := range a.Results {
					types = append(types, string(typ))
				}
				fmt.Fprintf(os.Stdout, "  buffer %d: %s\n", a.BufferID, strings.Join(types, ", "))
			}
		}
		return nil
	},
}

var sessionEventsTail int

var sessionEventsCmd = &cobra.Command{
	Use:   "events <id>",
	Short: "Dump a session's event journal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		jrnl := journal.NewJournal(cfg.DataDir, clock.Real())

		// Cleared sessions hold a compressed segment.
		path := jrnl.SegmentPath(session.ID(args[0]))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path += ".zst"
		}

		data, err := archive.ReadJournal(path)
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}

		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		if sessionEventsTail > 0 && len(lines) > sessionEventsTail {
			lines = lines[len(lines)-sessionEventsTail:]
		}
		for _, line := range lines {
			fmt.Fprintln(os.Stdout, line)
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the live session on the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if !cfg.HTTP.Enabled {
			return fmt.Errorf("http api disabled; cannot reach the daemon")
		}

		resp, err := http.Post("http://"+cfg.HTTP.Listen+"/api/session/clear", "application/json", nil)
		if err != nil {
			return fmt.Errorf("clear session (is the daemon running?): %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("clear session: daemon returned %s", resp.Status)
		}

		var body struct {
			ClearedSessionID string `json:"cleared_session_id"`
			SessionID        string `json:"session_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}

		fmt.Fprintf(os.Stdout, "Session %s cleared; new session %s started.\n", body.ClearedSessionID, body.SessionID)
		return nil
	},
}
