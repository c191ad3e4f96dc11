package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/pubsub"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeEventsTable(w io.Writer, events []domain.EventInfo, topics []pubsub.TopicInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT\tDIRECTION\tDESCRIPTION")
	fmt.Fprintln(tw, "-----\t---------\t-----------")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Direction, truncateString(e.Description, 60))
	}
	tw.Flush()

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOPIC\tPAYLOAD\tFIELDS")
	fmt.Fprintln(tw, "-----\t-------\t------")
	for _, t := range topics {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.TypeName, strings.Join(t.PayloadFields, ", "))
	}
	tw.Flush()
}

func writeUsersTable(w io.Writer, users []domain.PresenceUser) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "USERNAME\tROOM\tSESSION")
	fmt.Fprintln(tw, "--------\t----\t-------")
	if len(users) == 0 {
		fmt.Fprintln(tw, "No users online")
		return
	}
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Username, u.CurrentRoom, u.SessionID)
	}
}

func writeMessagesTable(w io.Writer, msgs []domain.Message) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tTIME\tSENDER\tMESSAGE")
	fmt.Fprintln(tw, "--\t----\t------\t-------")
	for _, m := range msgs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", m.ID, m.Timestamp.Format(time.TimeOnly), m.Sender, truncateString(messageLine(m), 60))
	}
}

// messageLine renders the visible part of a message: its text, or the file
// name for file messages, followed by any reactions.
func messageLine(m domain.Message) string {
	line := m.Text
	if m.File != nil {
		line = fmt.Sprintf("[file %s, %d bytes]", m.File.Name, m.File.Size)
	}
	if len(m.Reactions) > 0 {
		var parts []string
		for _, symbol := range slices.Sorted(maps.Keys(m.Reactions)) {
			parts = append(parts, fmt.Sprintf("%s %d", symbol, m.Reactions[symbol]))
		}
		line += "  (" + strings.Join(parts, ", ") + ")"
	}
	return line
}

func truncateString(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
