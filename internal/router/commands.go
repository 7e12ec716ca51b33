package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/devaloi/chatrelay/internal/domain"
)

var validate = validator.New()

// SendCommand asks for a text message to be sent.
type SendCommand struct {
	From    string `validate:"required"`
	To      string `validate:"required"`
	Body    string `validate:"required"`
	IsGroup bool
}

// AttachmentCommand asks for a binary (audio) payload to be sent.
type AttachmentCommand struct {
	From    string `validate:"required"`
	To      string `validate:"required"`
	Payload []byte `validate:"required,min=1"`
	IsGroup bool
}

// CallCommand asks for a call-start signal to be sent.
type CallCommand struct {
	From    string `validate:"required"`
	To      string `validate:"required"`
	IsGroup bool
}

// HistoryQuery selects one conversation. Requester is needed for direct
// conversations only.
type HistoryQuery struct {
	Target    string `validate:"required"`
	Requester string
	IsGroup   bool
}

func (c SendCommand) normalized() SendCommand {
	c.From, c.To = strings.TrimSpace(c.From), strings.TrimSpace(c.To)
	return c
}

func (c AttachmentCommand) normalized() AttachmentCommand {
	c.From, c.To = strings.TrimSpace(c.From), strings.TrimSpace(c.To)
	return c
}

func (c CallCommand) normalized() CallCommand {
	c.From, c.To = strings.TrimSpace(c.From), strings.TrimSpace(c.To)
	return c
}

func (q HistoryQuery) normalized() HistoryQuery {
	q.Target, q.Requester = strings.TrimSpace(q.Target), strings.TrimSpace(q.Requester)
	return q
}

// check runs the struct tags and reports missing fields as ErrIncompleteData.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := lo.Map(verrs, func(fe validator.FieldError, _ int) string {
			return strings.ToLower(fe.Field())
		})
		return fmt.Errorf("%w: %s", domain.ErrIncompleteData, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", domain.ErrIncompleteData, err)
}
