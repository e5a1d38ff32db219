package main

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/snapraid-go/snapraid/disk"
)

// acquireLock takes an exclusive, non-blocking advisory lock on path,
// creating it if needed. A second process that finds it already held
// exits with a clear message rather than waiting, per spec.md #5.
func acquireLock(path string) (func(), error) {
	fh, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lock: opening %s: %w", path, err)
	}
	if err := unix.Flock(int(fh.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		fh.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("lock: %s is already in use by another snapraid process", path)
		}
		return nil, fmt.Errorf("lock: flock %s: %w", path, err)
	}
	return func() {
		unix.Flock(int(fh.Fd()), unix.LOCK_UN)
		fh.Close()
	}, nil
}

// mtimeOf converts f's recorded (seconds, nanoseconds) pair back into a
// time.Time for os.Chtimes, treating disk.InvalidNsec as "no sub-second
// precision recorded" (spec.md's file-entry mtime comparison rules).
func mtimeOf(f *disk.File) time.Time {
	nsec := f.MtimeNsec
	if nsec == disk.InvalidNsec {
		nsec = 0
	}
	return time.Unix(f.MtimeSec, int64(nsec))
}
