package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, "ok"},
		{"expired", ErrExpired, "expired"},
		{"missing", ErrNotFound, "not_found"},
		{"bad id", fmt.Errorf("%w: too short", ErrInvalidIdentifier), "invalid"},
		{"bad document", fmt.Errorf("%w: nil document", ErrInvalidDocument), "invalid"},
		{"corrupt", fmt.Errorf("%w: game.json holds document %q", ErrCorruptDocument, "other"), "corrupt"},
		{"io", ioError("rename", "game.json", errors.New("disk full")), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resultLabel(tt.err))
		})
	}
}
