package store

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

const (
	backupDayLayout  = "2006-01-02"
	backupTimeLayout = "150405"
)

// BackupPath returns where a snapshot of id taken at t is stored.
func (fs *FileStore) BackupPath(id string, t time.Time) string {
	return filepath.Join(fs.backupsDir, t.Format(backupDayLayout), t.Format(backupTimeLayout)+"_"+id+documentExt)
}

// Backup copies the current bytes of id into backups/<YYYY-MM-DD>/. Two
// snapshots of one id within the same second share a name; the later wins.
func (fs *FileStore) Backup(ctx context.Context, id string) (string, error) {
	if err := fs.ValidateID(id); err != nil {
		return "", err
	}
	data, err := fs.readFile(ctx, fs.Path(id))
	if err != nil {
		return "", err
	}

	dst := fs.BackupPath(id, fs.now())
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", ioError("create directory", filepath.Dir(dst), err)
	}
	if err := fs.writeAtomic(ctx, dst, data, renameReplace); err != nil {
		return "", err
	}
	return dst, nil
}

// BackupDay parses a backup day directory name.
func BackupDay(name string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(backupDayLayout, name, loc)
}
