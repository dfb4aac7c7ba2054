package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(startCmd, stopCmd, restartCmd, statusCmd)
}

func pidFilePath() string {
	cfg := loadConfig()
	return filepath.Join(cfg.DataDir, "parley.pid")
}

// daemonAlive reports whether the process answers signal 0.
func daemonAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	return err == nil && proc.Signal(syscall.Signal(0)) == nil
}

// readPID returns the PID of the running daemon, or an error when the
// PID file is missing, unreadable, or names a dead process.
func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("no running daemon (PID file not found)")
		}
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	if !daemonAlive(pid) {
		return 0, fmt.Errorf("no running daemon (process %d not found)", pid)
	}
	return pid, nil
}

// signalDaemon sends sig to the running daemon and returns its PID.
func signalDaemon(sig syscall.Signal) (int, error) {
	pid, err := readPID()
	if err != nil {
		return 0, err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("find process: %w", err)
	}
	if err := proc.Signal(sig); err != nil {
		return 0, fmt.Errorf("signal daemon: %w", err)
	}
	return pid, nil
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pid, err := readPID(); err == nil {
			return fmt.Errorf("daemon already running (PID %d)", pid)
		}

		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("get executable path: %w", err)
		}

		child := exec.Command(execPath, "serve", "--config", cfgPath)
		child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		child.Stdout = nil
		child.Stderr = nil
		if err := child.Start(); err != nil {
			return fmt.Errorf("start daemon: %w", err)
		}

		fmt.Fprintf(os.Stdout, "Started daemon (PID %d).\n", child.Process.Pid)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := signalDaemon(syscall.SIGTERM)
		if err != nil {
			return err
		}

		// Wait for the exit so "stop && start" does not race the dying
		// process for the PID file.
		for i := 0; i < 50; i++ {
			time.Sleep(100 * time.Millisecond)
			if !daemonAlive(pid) {
				fmt.Fprintf(os.Stdout, "Stopped daemon (PID %d).\n", pid)
				return nil
			}
		}
		fmt.Fprintf(os.Stdout, "Daemon (PID %d) is taking a while to exit.\n", pid)
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The daemon re-execs itself on SIGHUP, keeping the same PID.
		pid, err := signalDaemon(syscall.SIGHUP)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Daemon (PID %d) is restarting.\n", pid)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the daemon is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := readPID()
		if err != nil {
			fmt.Fprintln(os.Stdout, "Daemon is not running.")
			return nil
		}
		line := fmt.Sprintf("Daemon is running (PID %d", pid)
		if st, err := os.Stat(pidFilePath()); err == nil {
			line += ", up " + time.Since(st.ModTime()).Round(time.Second).String()
		}
		fmt.Fprintln(os.Stdout, line+").")
		return nil
	},
}
