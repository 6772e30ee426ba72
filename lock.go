package fileset

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/oj"
)

// The advisory lock protocol: every contender writes its own uniquely named
// lock file into the source's root folder, then checks which present lock
// file is oldest by modification timestamp. The owner of the oldest file
// holds the lock; everyone else removes their attempt and retries after a
// randomized backoff. The protocol assumes the filesystem assigns
// timestamps in write order, which is not verified on distributed or
// object-store backends, and it is not safe when two writers land within
// the timestamp resolution. It is a convention, not mutual exclusion.

const lockPrefix = ".lock_"

// LockOptions bounds the acquisition loop. The zero value means 60 attempts
// with a ~1s randomized delay.
type LockOptions struct {
	Attempts int
	Delay    time.Duration
}

func (o LockOptions) withDefaults() LockOptions {
	if o.Attempts <= 0 {
		o.Attempts = 60
	}
	if o.Delay <= 0 {
		o.Delay = time.Second
	}
	return o
}

// WithLock runs fn while holding the advisory lock on the source's root
// folder. Nested calls on the same source recognize their own lock file and
// do not deadlock. Exhausting the attempt budget fails with ErrLockTimeout.
func (s *Single) WithLock(ctx context.Context, opts LockOptions, fn func() error) error {
	opts = opts.withDefaults()
	fs := s.store.FS()
	lockID := s.lockID()
	lockFile := s.store.RootFolder() + "/" + lockPrefix + lockID

	for attempt := 0; attempt < opts.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, owner := s.owningLockFile(); owner != "" {
			if strings.HasSuffix(owner, lockID) {
				// Reentrant: we already hold it, the outer scope cleans up.
				return fn()
			}
			if err := sleepJitter(ctx, opts.Delay); err != nil {
				return err
			}
			continue
		}

		if err := s.writeLockFile(lockFile); err != nil {
			return fmt.Errorf("write lock file %q: %w", lockFile, err)
		}
		if _, owner := s.owningLockFile(); owner != "" && strings.HasSuffix(owner, lockID) {
			err := fn()
			if rmErr := fs.Remove(lockFile); rmErr != nil {
				s.logger.Warn("lock file already removed", "path", lockFile, "err", rmErr)
			}
			return err
		}
		// Lost the race; clean up our attempt and retry.
		if err := fs.Remove(lockFile); err != nil {
			s.logger.Warn("lock file already removed", "path", lockFile, "err", err)
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrLockTimeout, opts.Attempts)
}

// LockInfo returns the owning lock file's content augmented with its
// timestamp, or nil when no lock is held. Useful to check whether a lock
// owner is still alive.
func (s *Single) LockInfo() (Props, error) {
	date, owner := s.owningLockFile()
	if owner == "" {
		return nil, nil
	}
	data, err := readAll(s.store.FS(), owner)
	if err != nil {
		return nil, nil // concurrently released
	}
	content, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("lock file %q: %w", owner, err)
	}
	info, ok := asPropsMap(content)
	if !ok {
		return nil, fmt.Errorf("lock file %q: unexpected content", owner)
	}
	info["date"] = date
	return info, nil
}

// ForceReleaseLock removes the owning lock file even if another process
// still believes it holds it. Last resort.
func (s *Single) ForceReleaseLock() {
	_, owner := s.owningLockFile()
	if owner == "" {
		s.logger.Info("no lock found")
		return
	}
	if err := s.store.FS().Remove(owner); err == nil {
		s.logger.Warn("forced release of lock file", "path", owner)
	}
}

// owningLockFile returns the globally oldest lock file currently present,
// by filesystem modification timestamp.
func (s *Single) owningLockFile() (time.Time, string) {
	fs := s.store.FS()
	paths, err := util.Glob(fs, s.store.RootFolder()+"/"+lockPrefix+"*")
	if err != nil || len(paths) == 0 {
		return time.Time{}, ""
	}
	var oldest time.Time
	var owner string
	for _, p := range paths {
		fi, err := fs.Stat(p)
		if err != nil {
			continue // concurrently deleted
		}
		if owner == "" || fi.ModTime().Before(oldest) {
			oldest = fi.ModTime()
			owner = p
		}
	}
	return oldest, owner
}

func (s *Single) writeLockFile(lockFile string) error {
	fs := s.store.FS()
	if err := fs.MkdirAll(s.store.RootFolder(), 0o755); err != nil {
		return err
	}
	host, _ := os.Hostname()
	data, err := oj.Marshal(map[string]any{
		"host":  host,
		"pid":   os.Getpid(),
		"token": s.lockToken,
	})
	if err != nil {
		return err
	}
	return util.WriteFile(fs, lockFile, data, 0o644)
}

// lockID identifies this holder: host, process and a per-source token, so
// two sources in one process contend like two processes would.
func (s *Single) lockID() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s_%d_%s", host, os.Getpid(), s.lockToken)
}

func sleepJitter(ctx context.Context, d time.Duration) error {
	jittered := time.Duration(float64(d) * (0.5 + rand.Float64()))
	t := time.NewTimer(jittered)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
