package nats

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/orderbot/pkg/domain"
)

type catalogRequest struct {
	ID int `json:"id,omitempty"`
}

type catalogResponse struct {
	Items []domain.MenuItem `json:"items,omitempty"`
	Item  *domain.MenuItem  `json:"item,omitempty"`
	Found bool              `json:"found"`
	Error string            `json:"error,omitempty"`
}

// ErrRemote is wrapped around errors reported by the responder.
var ErrRemote = errors.New("catalog responder error")

func decodeResponse(data []byte) (*catalogResponse, error) {
	var resp catalogResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrRemote, resp.Error)
	}
	return &resp, nil
}

func normalizeAll(items []domain.MenuItem) ([]domain.MenuItem, error) {
	out := make([]domain.MenuItem, 0, len(items))
	for _, it := range items {
		n, err := it.Normalize()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
