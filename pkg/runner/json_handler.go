package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/workflow"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

// TurnOutput is the JSON line written after every turn.
type TurnOutput struct {
	SessionID string            `json:"session_id"`
	Status    domain.TurnStatus `json:"status"`
	Intent    domain.Intent     `json:"intent,omitempty"`
	Messages  []string          `json:"messages"`
	Cart      []domain.CartLine `json:"cart"`
	Total     int64             `json:"total"`
	Replayed  bool              `json:"replayed,omitempty"`
}

// InputLine is the object form accepted by Input.
type InputLine struct {
	Message string `json:"message"`
}

// NewTurnOutput flattens a turn result for JSON consumers.
func NewTurnOutput(res *workflow.TurnResult) TurnOutput {
	out := TurnOutput{
		SessionID: res.SessionID,
		Status:    res.Status,
		Intent:    res.Intent,
		Messages:  res.Messages,
		Cart:      res.Cart,
		Total:     domain.CartTotal(res.Cart),
		Replayed:  res.Replayed,
	}
	if out.Messages == nil {
		out.Messages = []string{}
	}
	if out.Cart == nil {
		out.Cart = []domain.CartLine{}
	}
	return out
}

func (h *JSONHandler) Output(ctx context.Context, res *workflow.TurnResult) error {
	return h.Encoder.Encode(NewTurnOutput(res))
}

// Input reads one line: a JSON string, an InputLine object, or plain text.
func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	text = strings.TrimSpace(text)

	var val string
	if err := json.Unmarshal([]byte(text), &val); err == nil {
		return SanitizeInput(val)
	}
	var obj InputLine
	if strings.HasPrefix(text, "{") {
		if err := json.Unmarshal([]byte(text), &obj); err == nil {
			return SanitizeInput(obj.Message)
		}
	}
	return SanitizeInput(text)
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(map[string]string{"system": msg})
}
