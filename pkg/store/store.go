// Package store persists game documents as one JSON file per id under a data
// directory. Writes are atomic (temp file, fsync, rename) and guarded by
// advisory file locks; expired documents behave as absent.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/harun/questkeep/internal/observability"
	"github.com/harun/questkeep/internal/tracing"
	"github.com/harun/questkeep/pkg/document"
)

const (
	gamesDirName   = "games"
	backupsDirName = "backups"
	logsDirName    = "logs"

	documentExt = ".json"
	tempExt     = ".tmp"

	// DefaultLockTimeout bounds advisory lock acquisition.
	DefaultLockTimeout = 5 * time.Second

	tracerName = "questkeep.store"
)

// Options configures a FileStore.
type Options struct {
	BaseDir     string
	TTL         time.Duration
	IDPrefix    string
	LockTimeout time.Duration
	// Now overrides the clock; tests use it to move past expiry.
	Now func() time.Time
}

// FileStore is the file-per-document store.
type FileStore struct {
	baseDir    string
	gamesDir   string
	backupsDir string
	logsDir    string

	ttl         time.Duration
	idPrefix    string
	lockTimeout time.Duration
	now         func() time.Time

	// writeMu serialises read-modify-write cycles on documents.
	writeMu sync.Mutex

	// writeData writes the encoded bytes into the locked temp file.
	// Replaced in tests to simulate a crash part-way through a write.
	writeData func(w io.Writer, data []byte) error
}

// New creates the directory layout under opts.BaseDir and returns a store.
func New(opts Options) (*FileStore, error) {
	if opts.BaseDir == "" {
		return nil, fmt.Errorf("store base directory is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = document.DefaultTTL
	}
	if opts.IDPrefix == "" {
		opts.IDPrefix = document.DefaultIDPrefix
	}
	if err := document.ValidatePrefix(opts.IDPrefix); err != nil {
		return nil, err
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	fs := &FileStore{
		baseDir:     opts.BaseDir,
		gamesDir:    filepath.Join(opts.BaseDir, gamesDirName),
		backupsDir:  filepath.Join(opts.BaseDir, backupsDirName),
		logsDir:     filepath.Join(opts.BaseDir, logsDirName),
		ttl:         opts.TTL,
		idPrefix:    opts.IDPrefix,
		lockTimeout: opts.LockTimeout,
		now:         opts.Now,
		writeData: func(w io.Writer, data []byte) error {
			_, err := w.Write(data)
			return err
		},
	}

	for _, dir := range []string{fs.gamesDir, fs.backupsDir, fs.logsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ioError("create directory", dir, err)
		}
	}

	observability.EnsureRegistered()

	log.Debug().
		Str("dir", fs.baseDir).
		Dur("ttl", fs.ttl).
		Str("id_prefix", fs.idPrefix).
		Msg("File store initialized")

	return fs, nil
}

func (fs *FileStore) BaseDir() string    { return fs.baseDir }
func (fs *FileStore) GamesDir() string   { return fs.gamesDir }
func (fs *FileStore) BackupsDir() string { return fs.backupsDir }
func (fs *FileStore) LogsDir() string    { return fs.logsDir }
func (fs *FileStore) IDPrefix() string   { return fs.idPrefix }
func (fs *FileStore) TTL() time.Duration { return fs.ttl }

// Now returns the store's clock reading.
func (fs *FileStore) Now() time.Time { return fs.now() }

// Path returns the document file path for id. The id is not validated.
func (fs *FileStore) Path(id string) string {
	return filepath.Join(fs.gamesDir, id+documentExt)
}

// ValidateID checks id against the store's id format.
func (fs *FileStore) ValidateID(id string) error {
	return document.ValidateID(fs.idPrefix, id)
}

// op bundles the per-call span, logger and metrics bookkeeping.
type op struct {
	name   string
	start  time.Time
	span   trace.Span
	logger zerolog.Logger
}

func (fs *FileStore) begin(ctx context.Context, name, id string) (context.Context, *op) {
	if ctx == nil {
		ctx = context.Background()
	}
	if id != "" {
		ctx = tracing.WithGameID(ctx, id)
	}
	ctx, span := tracing.StartSpan(ctx, tracerName, "store."+name)
	return ctx, &op{
		name:   name,
		start:  time.Now(),
		span:   span,
		logger: tracing.LoggerFromContext(ctx, log.Logger),
	}
}

func (o *op) end(err error) {
	result := resultLabel(err)
	if result == "error" || result == "corrupt" {
		tracing.FailSpan(o.span, err)
	}
	o.span.SetAttributes(attribute.String("store.result", result))
	o.span.End()
	observability.RecordStoreOp(o.name, result, time.Since(o.start))
}

// Create writes a new document for id. It returns (false, nil) when a
// document already exists for id; the existing file is left untouched.
func (fs *FileStore) Create(ctx context.Context, id string, state document.State) (created bool, err error) {
	ctx, o := fs.begin(ctx, "create", id)
	defer func() {
		if err == nil && !created {
			o.span.SetAttributes(attribute.Bool("store.exists", true))
		}
		o.end(err)
	}()

	if err := fs.ValidateID(id); err != nil {
		o.logger.Warn().Err(err).Msg("Rejected create for invalid id")
		return false, err
	}
	if err := document.ValidateState(state); err != nil {
		o.logger.Warn().Err(err).Msg("Rejected create for invalid state")
		return false, err
	}

	doc := document.New(id, state, fs.now(), fs.ttl)
	data, err := document.Encode(doc)
	if err != nil {
		return false, err
	}

	path := fs.Path(id)
	if err := fs.writeAtomic(ctx, path, data, linkNoReplace); err != nil {
		if errors.Is(err, os.ErrExist) {
			o.logger.Warn().Msg("Document already exists")
			return false, nil
		}
		o.logger.Error().Err(err).Msg("Failed to create document")
		return false, err
	}

	o.logger.Info().Time("expires_at", doc.Metadata.ExpiresAt).Msg("Document created")
	return true, nil
}

// Load reads the document for id. Expired documents yield ErrExpired and are
// left on disk for the sweeper. On success the access time is bumped and
// persisted; a failure to persist it is logged and does not fail the read.
func (fs *FileStore) Load(ctx context.Context, id string) (doc *document.Document, err error) {
	ctx, o := fs.begin(ctx, "load", id)
	defer func() { o.end(err) }()

	if err := fs.ValidateID(id); err != nil {
		return nil, err
	}

	path := fs.Path(id)
	doc, raw, err := fs.loadDocument(ctx, path, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			o.logger.Error().Err(err).Str("path", path).Msg("Failed to decode document")
		}
		return nil, err
	}

	now := fs.now()
	if doc.Expired(now) {
		o.logger.Info().Time("expires_at", doc.Metadata.ExpiresAt).Msg("Document expired")
		return nil, ErrExpired
	}

	doc.Touch(now)
	if err := fs.persistAccess(ctx, path, raw, doc); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to persist access time")
	}
	return doc, nil
}

// persistAccess rewrites the document with bumped access times unless the
// file changed after it was read. The comparison and the write happen under
// writeMu, so a Save from this process cannot land in between; a writer in
// another process still can, and then its access times lose to ours.
func (fs *FileStore) persistAccess(ctx context.Context, path string, read []byte, doc *document.Document) error {
	fs.writeMu.Lock()
	defer fs.writeMu.Unlock()

	current, err := fs.readFile(ctx, path)
	if err != nil {
		return err
	}
	if !bytes.Equal(read, current) {
		return nil
	}
	data, err := document.Encode(doc)
	if err != nil {
		return err
	}
	return fs.writeAtomic(ctx, path, data, renameReplace)
}

// Save replaces the state of the stored document for id. Only doc.State is
// taken from the caller: created_at and expires_at always come from the
// stored version, so Extend is the only way expiry moves. When backup is set
// the previous version is copied to backup storage first. Save refuses
// absent and expired documents. On success doc.Metadata reflects what was
// written.
func (fs *FileStore) Save(ctx context.Context, id string, doc *document.Document, backup bool) (err error) {
	ctx, o := fs.begin(ctx, "save", id)
	defer func() { o.end(err) }()

	if err := fs.ValidateID(id); err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	if doc.Metadata.ID != id {
		return fmt.Errorf("%w: document id %q does not match %q", ErrInvalidDocument, doc.Metadata.ID, id)
	}
	if err := document.ValidateState(doc.State); err != nil {
		o.logger.Warn().Err(err).Msg("Rejected save for invalid state")
		return err
	}

	written, err := fs.rewrite(ctx, o, id, backup, func(stored *document.Document) {
		stored.State = doc.State
	})
	if err != nil {
		return err
	}
	doc.Metadata = written.Metadata
	return nil
}

// Extend pushes the expiry of the stored document for id out by d and
// returns the written document. Expired documents cannot be extended.
func (fs *FileStore) Extend(ctx context.Context, id string, by time.Duration, backup bool) (doc *document.Document, err error) {
	ctx, o := fs.begin(ctx, "extend", id)
	defer func() { o.end(err) }()

	if err := fs.ValidateID(id); err != nil {
		return nil, err
	}
	if by <= 0 {
		return nil, fmt.Errorf("%w: non-positive extension %s", ErrInvalidDocument, by)
	}

	doc, err = fs.rewrite(ctx, o, id, backup, func(stored *document.Document) {
		stored.Extend(by)
	})
	if err != nil {
		return nil, err
	}
	o.logger.Info().Dur("by", by).Time("expires_at", doc.Metadata.ExpiresAt).Msg("Document expiry extended")
	return doc, nil
}

// rewrite applies change to the stored document for id and writes it back
// with fresh access times. Holding writeMu keeps concurrent rewrites and
// access-time persists in this process from losing each other's changes.
func (fs *FileStore) rewrite(ctx context.Context, o *op, id string, backup bool, change func(*document.Document)) (*document.Document, error) {
	fs.writeMu.Lock()
	defer fs.writeMu.Unlock()

	path := fs.Path(id)
	stored, _, err := fs.loadDocument(ctx, path, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			o.logger.Error().Err(err).Str("path", path).Msg("Failed to read stored document")
		}
		return nil, err
	}

	now := fs.now()
	if stored.Expired(now) {
		o.logger.Info().Time("expires_at", stored.Metadata.ExpiresAt).Msg("Refusing to rewrite expired document")
		return nil, ErrExpired
	}

	if backup {
		if _, err := fs.Backup(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			o.logger.Error().Err(err).Msg("Backup before rewrite failed")
			return nil, err
		}
	}

	change(stored)
	stored.Touch(now)
	data, err := document.Encode(stored)
	if err != nil {
		return nil, err
	}
	if err := fs.writeAtomic(ctx, path, data, renameReplace); err != nil {
		o.logger.Error().Err(err).Msg("Failed to write document")
		return nil, err
	}

	o.logger.Debug().Int("bytes", len(data)).Msg("Document written")
	return stored, nil
}

// Delete removes the document for id. Deleting an absent document succeeds.
func (fs *FileStore) Delete(ctx context.Context, id string, backup bool) (err error) {
	ctx, o := fs.begin(ctx, "delete", id)
	defer func() { o.end(err) }()

	if err := fs.ValidateID(id); err != nil {
		return err
	}

	path := fs.Path(id)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		o.logger.Debug().Msg("Delete of absent document")
		return nil
	}

	if backup {
		dst, err := fs.Backup(ctx, id)
		switch {
		case errors.Is(err, ErrNotFound):
			return nil
		case err != nil:
			o.logger.Error().Err(err).Msg("Backup before delete failed, keeping document")
			return err
		default:
			o.logger.Debug().Str("backup", dst).Msg("Document backed up")
		}
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ioError("remove", path, err)
	}

	o.logger.Info().Bool("backup", backup).Msg("Document deleted")
	return nil
}

// Exists reports whether id names a readable, unexpired document.
func (fs *FileStore) Exists(ctx context.Context, id string) bool {
	if fs.ValidateID(id) != nil {
		return false
	}
	doc, _, err := fs.loadDocument(ctx, fs.Path(id), id)
	if err != nil {
		return false
	}
	return !doc.Expired(fs.now())
}

// loadDocument reads and decodes the document for id at path. A file whose
// metadata names a different id is reported as corrupt.
func (fs *FileStore) loadDocument(ctx context.Context, path, id string) (*document.Document, []byte, error) {
	raw, err := fs.readFile(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	doc, err := document.Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	if doc.Metadata.ID != id {
		return nil, nil, fmt.Errorf("%w: %s holds document %q", ErrCorruptDocument, filepath.Base(path), doc.Metadata.ID)
	}
	return doc, raw, nil
}

// readDocument reads and decodes path without touching it.
func (fs *FileStore) readDocument(ctx context.Context, path string) ([]byte, *document.Document, error) {
	raw, err := fs.readFile(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	doc, err := document.Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	return raw, doc, nil
}
