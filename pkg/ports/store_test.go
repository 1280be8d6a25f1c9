package ports_test

import (
	"testing"

	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name    string
		stored  int64
		exists  bool
		next    int64
		wantErr bool
	}{
		{"First Save", 0, false, 1, false},
		{"First Save Skipping Ahead", 0, false, 2, true},
		{"Next Version", 3, true, 4, false},
		{"Same Version", 3, true, 3, true},
		{"Stale Version", 3, true, 2, true},
		{"Absent Ignores Stored", 7, false, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ports.CheckVersion(tt.stored, tt.exists, &domain.ConversationState{Version: tt.next})
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrVersionConflict)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
