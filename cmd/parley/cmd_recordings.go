package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/parley/pkg/backend"
)

var recordingsCreateFolder string

func init() {
	rootCmd.AddCommand(recordingsCmd)
	recordingsCmd.AddCommand(recordingsListCmd, recordingsCreateCmd, recordingsRenameCmd, recordingsDeleteCmd)
	recordingsCreateCmd.Flags().StringVar(&recordingsCreateFolder, "folder", "", "folder id for the new recording")
}

var recordingsCmd = &cobra.Command{
	Use:   "recordings",
	Short: "Manage recordings via the running daemon",
}

// daemonDo sends a request to the daemon's HTTP API and decodes the
// JSON response into out when out is non-nil.
func daemonDo(method, path string, body, out any) error {
	cfg := loadConfig()
	if !cfg.HTTP.Enabled {
		return fmt.Errorf("http api disabled; cannot reach the daemon")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, "http://"+cfg.HTTP.Listen+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request (is the daemon running?): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

var recordingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recordings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var recs []backend.Recording
		if err := daemonDo(http.MethodGet, "/api/recordings", nil, &recs); err != nil {
			return err
		}

		if len(recs) == 0 {
			fmt.Println("No recordings found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFOLDER\tNAME\tSAVED\tSUMMARY")
		for _, rec := range recs {
			summary := "-"
			switch {
			case rec.SummaryError != "":
				summary = "failed"
			case rec.SummaryMarkdown != "":
				summary = "ready"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", rec.ID, rec.FolderID, rec.Name, rec.Saved, summary)
		}
		return w.Flush()
	},
}

var recordingsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{
			"folder_id": recordingsCreateFolder,
			"name":      args[0],
		}
		var rec backend.Recording
		if err := daemonDo(http.MethodPost, "/api/recordings", body, &rec); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Created recording %s (%s).\n", rec.ID, rec.Name)
		return nil
	},
}

var recordingsRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a recording",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"name": args[1]}
		var rec backend.Recording
		if err := daemonDo(http.MethodPost, "/api/recordings/"+args[0]+"/rename", body, &rec); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Renamed recording %s to %s.\n", rec.ID, rec.Name)
		return nil
	},
}

var recordingsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := daemonDo(http.MethodDelete, "/api/recordings/"+args[0], nil, nil); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Deleted recording %s.\n", args[0])
		return nil
	},
}
