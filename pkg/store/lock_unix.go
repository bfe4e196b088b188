//go:build unix

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sys/unix"
)

const (
	lockInitialInterval = 10 * time.Millisecond
	lockMaxInterval     = 250 * time.Millisecond
)

// lockFile takes an flock on f. It tries once without blocking, then polls
// with exponential backoff until timeout elapses or ctx is done.
func lockFile(ctx context.Context, f *os.File, mode lockMode, timeout time.Duration) error {
	how := unix.LOCK_SH
	if mode == lockExclusive {
		how = unix.LOCK_EX
	}
	fd := int(f.Fd())

	err := unix.Flock(fd, how|unix.LOCK_NB)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
		return ioError("lock", f.Name(), err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = lockInitialInterval
	b.MaxInterval = lockMaxInterval

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		err := unix.Flock(fd, how|unix.LOCK_NB)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, unix.EWOULDBLOCK), errors.Is(err, unix.EINTR):
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(ioError("lock", f.Name(), err))
		}
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(timeout))
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
		return fmt.Errorf("%w: %s after %s", ErrLockTimeout, f.Name(), timeout)
	}
	return err
}

func unlockFile(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// syncDir flushes directory metadata so a completed rename survives a crash.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
