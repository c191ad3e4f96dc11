package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfrund/huddle/internal/handlers"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the rooms configured on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(); err != nil {
			return err
		}
		var body handlers.RoomsResponse
		if err := getJSON(cmd.Context(), "/api/rooms", nil, &body); err != nil {
			return err
		}
		if outputFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), body)
		}
		for _, room := range body.Rooms {
			marker := ""
			if room == body.DefaultRoom {
				marker = " (default)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", room, marker)
		}
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List the users currently connected",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(); err != nil {
			return err
		}
		var body handlers.UsersResponse
		if err := getJSON(cmd.Context(), "/api/users", nil, &body); err != nil {
			return err
		}
		if outputFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), body)
		}
		writeUsersTable(cmd.OutOrStdout(), body.Users)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(roomsCmd)
	rootCmd.AddCommand(usersCmd)
}
