//go:build !unix

package store

import (
	"context"
	"os"
	"time"
)

func lockFile(_ context.Context, _ *os.File, _ lockMode, _ time.Duration) error {
	return nil
}

func unlockFile(_ *os.File) {}

func syncDir(_ string) {}
