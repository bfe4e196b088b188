package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// RotatingWriter writes to a log file and, when the day changes, moves it
// aside as <filename>.YYYY-MM-DD named after the day its lines were
// written. A size limit rotates early; the overflow is appended to the
// same day's file so there is only ever one rotated file per day.
type RotatingWriter struct {
	mu          sync.Mutex
	filename    string
	maxSize     int64 // bytes, 0 = no limit
	now         func() time.Time
	currentFile *os.File
	currentSize int64
	currentDay  string
	closed      bool
}

// NewRotatingWriter creates a new rotating writer
func NewRotatingWriter(filename string, maxSizeMB int) (*RotatingWriter, error) {
	return newRotatingWriter(filename, maxSizeMB, time.Now)
}

func newRotatingWriter(filename string, maxSizeMB int, now func() time.Time) (*RotatingWriter, error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	day := now().Format(dayLayout)
	if info.Size() > 0 {
		// Lines already in the file belong to the day it was last written.
		day = info.ModTime().In(now().Location()).Format(dayLayout)
	}

	return &RotatingWriter{
		filename:    filename,
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		now:         now,
		currentFile: file,
		currentSize: info.Size(),
		currentDay:  day,
	}, nil
}

// Write writes data to the log file, rotating if necessary
func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, os.ErrClosed
	}
	if w.currentFile == nil {
		if err := w.reopen(nil); err != nil {
			return 0, err
		}
	}

	today := w.now().Format(dayLayout)
	oversize := w.maxSize > 0 && w.currentSize > 0 && w.currentSize+int64(len(p)) > w.maxSize
	if today != w.currentDay || oversize {
		// A failed rotation leaves the active file open and is retried on
		// the next write.
		if err := w.rotate(); err != nil && w.currentFile == nil {
			return 0, err
		} else if err == nil {
			w.currentDay = today
		}
	}

	n, err = w.currentFile.Write(p)
	w.currentSize += int64(n)
	return n, err
}

// Close closes the current log file
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.currentFile == nil {
		return nil
	}
	err := w.currentFile.Close()
	w.currentFile = nil
	return err
}

// RotatedName returns the file name used for the given day.
func (w *RotatingWriter) RotatedName(day string) string {
	return w.filename + "." + day
}

// rotate moves the current file to its dated name and reopens a fresh one.
// On failure the active file is reopened for appending so logging carries
// on. Must hold w.mu.
func (w *RotatingWriter) rotate() error {
	err := w.currentFile.Close()
	w.currentFile = nil
	if err != nil {
		return w.reopen(err)
	}

	rotated := w.RotatedName(w.currentDay)
	if _, serr := os.Stat(rotated); errors.Is(serr, os.ErrNotExist) {
		err = os.Rename(w.filename, rotated)
	} else {
		err = appendFile(rotated, w.filename)
	}
	if err != nil {
		return w.reopen(err)
	}

	file, err := os.OpenFile(w.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	w.currentFile = file
	w.currentSize = 0
	return nil
}

// reopen attaches the active file for appending and returns cause, joined
// with the open error if that fails too. Must hold w.mu.
func (w *RotatingWriter) reopen(cause error) error {
	file, err := os.OpenFile(w.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Join(cause, fmt.Errorf("failed to reopen log file: %w", err))
	}
	if info, err := file.Stat(); err == nil {
		w.currentSize = info.Size()
	}
	w.currentFile = file
	return cause
}

// appendFile appends the contents of src to dst and removes src.
func appendFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
