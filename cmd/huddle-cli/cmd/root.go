package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	serverURL    string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "huddle-cli",
	Short: "Command-line companion for the huddle chat server",
	Long: `huddle-cli inspects a running chat server and can join it as a client.

Available commands:
  events    List every WebSocket event and bus topic
  rooms     List the configured rooms
  users     List the connected users
  history   Print a page of a room's history
  chat      Join a room and chat from the terminal

Use "huddle-cli [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "Base URL of the chat server")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "Output format (table, json)")
}

// checkFormat rejects anything but the two supported output formats.
func checkFormat() error {
	switch outputFormat {
	case "table", "json":
		return nil
	}
	return fmt.Errorf("unsupported output format %q, use 'table' or 'json'", outputFormat)
}

// socketURL turns the server base URL into the WebSocket endpoint.
func socketURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}
