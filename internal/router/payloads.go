package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nfrund/huddle/internal/domain"
)

// DefaultPageSize is used by load_messages when no limit is given.
const DefaultPageSize = 20

// validatorInstance caches struct metadata for every inbound payload type.
var validatorInstance = validator.New(validator.WithRequiredStructEnabled())

func init() {
	_ = validatorInstance.RegisterValidation("notblank", validateNotBlank)
}

// validateNotBlank rejects strings made only of whitespace.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// JoinRequest is the payload of join. A bare JSON string is accepted too.
type JoinRequest struct {
	Username string `json:"username" validate:"notblank"`
}

// SendMessageRequest is the payload of send_message.
type SendMessageRequest struct {
	Room string `json:"room" validate:"required"`
	Body string `json:"body" validate:"notblank"`
}

// PrivateMessageRequest is the payload of send_private_message.
type PrivateMessageRequest struct {
	To   string `json:"to" validate:"required"`
	Body string `json:"body" validate:"notblank"`
}

// JoinRoomRequest is the payload of join_room. A bare JSON string is
// accepted too.
type JoinRoomRequest struct {
	Room string `json:"room" validate:"required"`
}

// SendFileRequest is the payload of send_file. FileBytes travels as base64.
type SendFileRequest struct {
	Room      string `json:"room" validate:"required"`
	FileBytes []byte `json:"fileBytes" validate:"required"`
	FileName  string `json:"fileName" validate:"notblank,max=255"`
	FileType  string `json:"fileType" validate:"max=255"`
}

// TypingRequest is the payload of set_typing.
type TypingRequest struct {
	Room     string `json:"room" validate:"required"`
	IsTyping bool   `json:"isTyping"`
}

// ReactionRequest is the payload of add_reaction.
type ReactionRequest struct {
	MessageID int64  `json:"messageId" validate:"gt=0"`
	Symbol    string `json:"symbol" validate:"notblank,max=64"`
}

// MarkReadRequest is the payload of mark_read.
type MarkReadRequest struct {
	MessageID int64 `json:"messageId" validate:"gt=0"`
}

// LoadMessagesRequest is the payload of load_messages. Negative or oversized
// windows are not rejected; they produce an empty page.
type LoadMessagesRequest struct {
	Room   string `json:"room" validate:"required"`
	Limit  *int   `json:"limit"`
	Offset int    `json:"offset"`
}

// PageLimit returns the requested limit or DefaultPageSize.
func (r LoadMessagesRequest) PageLimit() int {
	if r.Limit == nil {
		return DefaultPageSize
	}
	return *r.Limit
}

// decode unmarshals raw into v and validates it. Errors wrap
// domain.ErrInvalidPayload.
func decode(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%w: missing data", domain.ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if err := validatorInstance.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidPayload, describeValidation(err))
	}
	return nil
}

// decodeStringOr accepts either a JSON string, stored via set, or an object
// decoded into v.
func decodeStringOr(raw json.RawMessage, v any, set func(string)) error {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		set(s)
		if err := validatorInstance.Struct(v); err != nil {
			return fmt.Errorf("%w: %s", domain.ErrInvalidPayload, describeValidation(err))
		}
		return nil
	}
	return decode(raw, v)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
