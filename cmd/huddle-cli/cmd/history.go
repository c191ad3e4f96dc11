package cmd

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nfrund/huddle/internal/handlers"
)

var (
	historyLimit  int
	historyOffset int
)

var historyCmd = &cobra.Command{
	Use:   "history <room>",
	Short: "Print a page of a room's history",
	Long: `Print a window of a room's retained messages, counted back from the newest.

Examples:
  huddle-cli history general                  # newest 20 messages
  huddle-cli history general -n 50 -o 20      # 50 messages, skipping the newest 20`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(); err != nil {
			return err
		}
		room := args[0]
		query := url.Values{
			"limit":  {strconv.Itoa(historyLimit)},
			"offset": {strconv.Itoa(historyOffset)},
		}

		var page handlers.PageResponse
		if err := getJSON(cmd.Context(), "/api/rooms/"+url.PathEscape(room)+"/messages/page", query, &page); err != nil {
			return err
		}
		if outputFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), page)
		}
		writeMessagesTable(cmd.OutOrStdout(), page.Messages)
		if page.HasMore {
			fmt.Fprintf(cmd.OutOrStdout(), "\nolder messages available: --offset %d\n", historyOffset+len(page.Messages))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of messages")
	historyCmd.Flags().IntVarP(&historyOffset, "offset", "o", 0, "Messages to skip from the newest")
}
