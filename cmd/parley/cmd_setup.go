package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/parley/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		in := bufio.NewScanner(os.Stdin)

		fmt.Println("Parley Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.Backend.BaseURL = prompt(in, "Backend base URL", cfg.Backend.BaseURL)
		cfg.Backend.APIKey = promptSecret(in, "Backend API key", cfg.Backend.APIKey)
		cfg.Backend.StreamAddr = prompt(in, "Event stream address", cfg.Backend.StreamAddr)

		// Token budgeting needs the model name to pick the right encoding.
		cfg.Analysis.Model = prompt(in, "Analysis model name", cfg.Analysis.Model)

		// A chat id is useless without a bot token, so only ask for one
		// when the bot is configured.
		cfg.Telegram.Token = promptSecret(in, "Telegram bot token (optional)", cfg.Telegram.Token)
		if cfg.Telegram.Token != "" {
			def := ""
			if cfg.Telegram.ChatID != 0 {
				def = strconv.FormatInt(cfg.Telegram.ChatID, 10)
			}
			if raw := prompt(in, "Telegram chat id", def); raw != "" {
				n, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					fmt.Println("Not a number, chat id unchanged.")
				} else {
					cfg.Telegram.ChatID = n
				}
			}
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		fmt.Println("Run 'parley serve' to start the daemon.")
		return nil
	},
}

// prompt reads one line for the labeled value, returning defaultVal when
// the user just presses Enter.
func prompt(in *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if in.Scan() {
		if line := strings.TrimSpace(in.Text()); line != "" {
			return line
		}
	}
	return defaultVal
}

// promptSecret behaves like prompt but never echoes the stored secret,
// showing at most its last four characters in the bracket default.
func promptSecret(in *bufio.Scanner, label, defaultVal string) string {
	shown := defaultVal
	if n := len(shown); n > 4 {
		shown = "***" + shown[n-4:]
	} else if n > 0 {
		shown = "***" + shown
	}
	got := prompt(in, label, shown)
	if got == shown {
		return defaultVal
	}
	return got
}
