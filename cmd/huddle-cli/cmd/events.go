package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/pubsub"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List every WebSocket event and internal bus topic",
	Long: `List the events clients may send, the events the server emits and the
typed topics carried on the internal bus. No server connection is needed.

Examples:
  huddle-cli events
  huddle-cli events --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(); err != nil {
			return err
		}
		if outputFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), struct {
				Events []domain.EventInfo  `json:"events"`
				Topics []pubsub.TopicInfo `json:"topics"`
			}{domain.Catalogue, pubsub.Topics()})
		}
		writeEventsTable(cmd.OutOrStdout(), domain.Catalogue, pubsub.Topics())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}
