package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SweepExpired deletes every expired document, backing each up first when
// backup is set. Documents that fail to decode are left in place. Failures on
// individual documents are logged and do not stop the sweep.
func (fs *FileStore) SweepExpired(ctx context.Context, backup bool) (removed int, err error) {
	ctx, o := fs.begin(ctx, "sweep_expired", "")
	defer func() { o.end(err) }()

	ids, err := fs.documentIDs()
	if err != nil {
		return 0, err
	}

	now := fs.now()
	for _, id := range ids {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		path := fs.Path(id)
		_, doc, err := fs.readDocument(ctx, path)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				o.logger.Error().Err(err).Str("path", path).Msg("Leaving unreadable document in place")
			}
			continue
		}
		if !doc.Expired(now) {
			continue
		}
		if err := fs.Delete(ctx, id, backup); err != nil {
			o.logger.Error().Err(err).Str("game_id", id).Msg("Failed to remove expired document")
			continue
		}
		removed++
	}

	if removed > 0 {
		o.logger.Info().Int("removed", removed).Msg("Expired documents swept")
	}
	return removed, nil
}

// SweepTempFiles removes temp files left behind by interrupted writes once
// they are older than olderThan.
func (fs *FileStore) SweepTempFiles(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(fs.gamesDir)
	if err != nil {
		return 0, ioError("read directory", fs.gamesDir, err)
	}

	cutoff := fs.now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), tempExt) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(fs.gamesDir, e.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			continue
		}
		removed++
	}
	return removed, nil
}
