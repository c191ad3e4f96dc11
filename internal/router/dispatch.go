package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nfrund/huddle/internal/domain"
)

// Reply is what the transport sends back to the caller of an inbound event.
// Event names the frame used when the request carried no ack id.
type Reply struct {
	Event string
	Data  any
}

// Dispatch decodes raw as the payload of event and runs the matching
// operation for sessionID. A nil Reply means the event has no direct
// response. Errors belong to this event only; the connection stays usable.
func (r *Router) Dispatch(ctx context.Context, sessionID, event string, raw json.RawMessage) (*Reply, error) {
	switch event {
	case domain.EventJoin:
		var req JoinRequest
		if err := decodeStringOr(raw, &req, func(s string) { req.Username = s }); err != nil {
			return nil, err
		}
		_, err := r.Join(ctx, sessionID, req.Username)
		return nil, err

	case domain.EventSendMessage:
		var req SendMessageRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		ack, err := r.PostRoomMessage(ctx, sessionID, req.Room, req.Body)
		if err != nil {
			return nil, err
		}
		return &Reply{Event: domain.EventAck, Data: ack}, nil

	case domain.EventSendPrivateMessage:
		var req PrivateMessageRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		ack, err := r.PostPrivateMessage(ctx, sessionID, req.To, req.Body)
		if err != nil {
			return nil, err
		}
		return &Reply{Event: domain.EventAck, Data: ack}, nil

	case domain.EventJoinRoom:
		var req JoinRoomRequest
		if err := decodeStringOr(raw, &req, func(s string) { req.Room = s }); err != nil {
			return nil, err
		}
		window, err := r.ChangeRoom(ctx, sessionID, req.Room)
		if err != nil {
			return nil, err
		}
		return &Reply{Event: domain.EventRoomMessages, Data: window}, nil

	case domain.EventSendFile:
		var req SendFileRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		_, err := r.PostFileMessage(ctx, sessionID, req.Room, FileUpload{
			Name: req.FileName,
			Type: req.FileType,
			Data: req.FileBytes,
		})
		return nil, err

	case domain.EventSetTyping:
		var req TypingRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		return nil, r.SetTyping(ctx, sessionID, req.Room, req.IsTyping)

	case domain.EventAddReaction:
		var req ReactionRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		_, err := r.React(ctx, sessionID, req.MessageID, req.Symbol)
		return nil, r.ignoreNotFound(err)

	case domain.EventMarkRead:
		var req MarkReadRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		_, err := r.MarkRead(ctx, sessionID, req.MessageID)
		return nil, r.ignoreNotFound(err)

	case domain.EventLoadMessages:
		var req LoadMessagesRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		page, err := r.LoadMessages(ctx, req.Room, req.PageLimit(), req.Offset)
		if err != nil {
			return nil, err
		}
		return &Reply{Event: domain.EventAck, Data: page}, nil

	case domain.EventDisconnect:
		r.Disconnect(ctx, sessionID)
		return nil, nil
	}

	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, event)
}

// ignoreNotFound drops reactions and receipts aimed at evicted or unknown
// messages.
func (r *Router) ignoreNotFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		r.logger.Debug("Ignoring operation on missing message", "error", err)
		return nil
	}
	return err
}
