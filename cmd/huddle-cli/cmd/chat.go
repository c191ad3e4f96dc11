package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nfrund/huddle/internal/client"
	"github.com/nfrund/huddle/internal/domain"
	ws "github.com/nfrund/huddle/internal/websocket"
)

var (
	chatRoom   string
	chatOrigin string
)

var chatCmd = &cobra.Command{
	Use:   "chat <username>",
	Short: "Join the server and chat from the terminal",
	Long: `Join the chat as <username>. Plain lines are sent to the current room.

Commands:
  /join <room>             switch rooms
  /msg <sessionId> <text>  send a private message
  /react <id> <symbol>     react to a message
  /read <id>               mark a message as read
  /file <path>             upload a file to the current room
  /typing on|off           toggle the typing indicator
  /history [n]             show the newest n messages of the room
  /quit                    leave`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var opts []client.Option
		if chatOrigin != "" {
			opts = append(opts, client.WithOrigin(chatOrigin))
		}
		c, err := client.Dial(ctx, socketURL(serverURL), opts...)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Join(ctx, args[0], chatRoom); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "joined %s as %s (session %s)\n", c.Room(), args[0], c.SessionID())
		writeMessagesTable(out, c.Messages())

		go func() {
			for f := range c.Events() {
				if line := renderEvent(f); line != "" {
					fmt.Fprintln(out, line)
				}
			}
		}()

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-c.Done():
				if err := c.Err(); err != nil {
					return fmt.Errorf("connection lost: %w", err)
				}
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				quit, err := runLine(ctx, c, out, line)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
				}
				if quit {
					return nil
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatRoom, "room", "r", "general", "Room to start in; must be the server's default room")
	chatCmd.Flags().StringVar(&chatOrigin, "origin", "", "Origin header for the upgrade request")
}

// runLine executes one line of input. It reports whether the user asked to
// leave.
func runLine(ctx context.Context, c *client.Client, out io.Writer, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		_, err := c.Send(ctx, line)
		return false, err
	}

	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch verb {
	case "/quit":
		return true, nil

	case "/join":
		if rest == "" {
			return false, errors.New("usage: /join <room>")
		}
		window, err := c.SwitchRoom(ctx, rest)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "now in %s\n", c.Room())
		writeMessagesTable(out, window)

	case "/msg":
		to, body, ok := strings.Cut(rest, " ")
		if !ok {
			return false, errors.New("usage: /msg <sessionId> <text>")
		}
		_, err := c.SendPrivate(ctx, to, body)
		return false, err

	case "/react":
		id, symbol, ok := strings.Cut(rest, " ")
		if !ok {
			return false, errors.New("usage: /react <id> <symbol>")
		}
		msgID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return false, fmt.Errorf("bad message id %q", id)
		}
		return false, c.React(ctx, msgID, strings.TrimSpace(symbol))

	case "/read":
		msgID, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return false, fmt.Errorf("bad message id %q", rest)
		}
		return false, c.MarkRead(ctx, msgID)

	case "/file":
		data, err := os.ReadFile(rest)
		if err != nil {
			return false, err
		}
		return false, c.SendFile(ctx, filepath.Base(rest), http.DetectContentType(data), data)

	case "/typing":
		return false, c.SetTyping(ctx, rest == "on")

	case "/history":
		limit := 20
		if rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil {
				return false, fmt.Errorf("bad count %q", rest)
			}
			limit = n
		}
		page, err := c.LoadMessages(ctx, c.Room(), limit, 0)
		if err != nil {
			return false, err
		}
		writeMessagesTable(out, page.Messages)

	default:
		return false, fmt.Errorf("unknown command %s", verb)
	}
	return false, nil
}

// renderEvent formats a server event for the terminal. Events with nothing
// worth showing render as "".
func renderEvent(f ws.Frame) string {
	switch f.Event {
	case domain.EventReceiveMessage, domain.EventReceiveFile:
		var m domain.Message
		if json.Unmarshal(f.Data, &m) != nil {
			return ""
		}
		return fmt.Sprintf("[%d] %s: %s", m.ID, m.Sender, messageLine(m))

	case domain.EventPrivateMessage:
		var m domain.Message
		if json.Unmarshal(f.Data, &m) != nil {
			return ""
		}
		return fmt.Sprintf("(private) %s [%s]: %s", m.Sender, m.SenderID, m.Text)

	case domain.EventUserJoined, domain.EventUserLeft:
		var ev domain.UserEvent
		if json.Unmarshal(f.Data, &ev) != nil {
			return ""
		}
		if ev.Notice != nil {
			return "* " + ev.Notice.Text
		}
		verb := "joined"
		if f.Event == domain.EventUserLeft {
			verb = "left"
		}
		return fmt.Sprintf("* %s %s", ev.Username, verb)

	case domain.EventTypingUsers:
		var ev domain.TypingEvent
		if json.Unmarshal(f.Data, &ev) != nil || len(ev.Usernames) == 0 {
			return ""
		}
		return fmt.Sprintf("* %s typing in %s", strings.Join(ev.Usernames, ", "), ev.Room)

	case domain.EventReactionAdded:
		var ev domain.ReactionEvent
		if json.Unmarshal(f.Data, &ev) != nil {
			return ""
		}
		return fmt.Sprintf("* [%d] %s %d", ev.MessageID, ev.Symbol, ev.Count)

	case domain.EventMessageRead:
		var ev domain.ReadEvent
		if json.Unmarshal(f.Data, &ev) != nil {
			return ""
		}
		return fmt.Sprintf("* [%d] read by %s", ev.MessageID, ev.Username)

	case domain.EventError:
		var ev domain.ErrorEvent
		if json.Unmarshal(f.Data, &ev) != nil {
			return ""
		}
		return "error: " + ev.Error
	}
	return ""
}
