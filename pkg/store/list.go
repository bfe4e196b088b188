package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/harun/questkeep/internal/observability"
	"github.com/harun/questkeep/pkg/document"
)

// Stats aggregates the state of the games directory.
type Stats struct {
	Total      int       `json:"total_games"`
	Active     int       `json:"active_games"`
	Expired    int       `json:"expired_games"`
	BytesUsed  int64     `json:"storage_bytes"`
	OldestID   string    `json:"oldest_game_id,omitempty"`
	OldestAt   time.Time `json:"oldest_created_at,omitempty"`
	NewestID   string    `json:"newest_game_id,omitempty"`
	NewestAt   time.Time `json:"newest_created_at,omitempty"`
	DataDir    string    `json:"data_dir"`
	CapturedAt time.Time `json:"captured_at"`
}

// documentIDs returns the ids of well-named document files in the games dir.
func (fs *FileStore) documentIDs() ([]string, error) {
	entries, err := os.ReadDir(fs.gamesDir)
	if err != nil {
		return nil, ioError("read directory", fs.gamesDir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), documentExt) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), documentExt)
		if fs.ValidateID(id) != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// List summarises stored documents, oldest first. Expired documents are
// included only when includeExpired is set. Files that fail to decode are
// skipped. List never touches access times.
func (fs *FileStore) List(ctx context.Context, includeExpired bool) (out []document.Summary, err error) {
	ctx, o := fs.begin(ctx, "list", "")
	defer func() { o.end(err) }()

	ids, err := fs.documentIDs()
	if err != nil {
		return nil, err
	}

	now := fs.now()
	out = make([]document.Summary, 0, len(ids))
	for _, id := range ids {
		path := fs.Path(id)
		raw, doc, err := fs.readDocument(ctx, path)
		if err != nil {
			o.logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable document")
			continue
		}
		if doc.Expired(now) && !includeExpired {
			continue
		}
		out = append(out, document.Summarize(raw, doc, now))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Stats counts active and expired documents and the space they use.
func (fs *FileStore) Stats(ctx context.Context) (Stats, error) {
	all, err := fs.List(ctx, true)
	if err != nil {
		return Stats{}, err
	}
	used, err := fs.UsageBytes()
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		Total:      len(all),
		BytesUsed:  used,
		DataDir:    fs.baseDir,
		CapturedAt: fs.now().UTC(),
	}
	for _, s := range all {
		if s.Expired {
			st.Expired++
		} else {
			st.Active++
		}
	}
	if len(all) > 0 {
		st.OldestID, st.OldestAt = all[0].ID, all[0].CreatedAt
		st.NewestID, st.NewestAt = all[len(all)-1].ID, all[len(all)-1].CreatedAt
	}

	observability.SetSessionCounts(st.Active, st.Expired)
	return st, nil
}

// UsageBytes sums the size of all document files.
func (fs *FileStore) UsageBytes() (int64, error) {
	entries, err := os.ReadDir(fs.gamesDir)
	if err != nil {
		return 0, ioError("read directory", fs.gamesDir, err)
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != documentExt {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	observability.SetStorageBytes(total)
	return total, nil
}
