package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ulikunitz/xz"
)

// archiveOldContent xz-compresses the content file currently at path
// into a timestamped sibling before it gets overwritten, so a bad sync
// or fix run always leaves a prior-generation snapshot to fall back to
// for post-mortem. saveContent calls it for every content-file copy on
// every save; no command-line option controls it, and older snapshots are
// never removed. A missing path (first-ever sync) is not an error.
func archiveOldContent(path string) error {
	in, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("archiving %s: %w", path, err)
	}
	defer in.Close()

	dst := fmt.Sprintf("%s.%s.xz", path, time.Now().UTC().Format("20060102T150405"))
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("archiving %s: %w", path, err)
	}
	defer out.Close()

	w, err := xz.NewWriter(out)
	if err != nil {
		return fmt.Errorf("archiving %s: %w", path, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		w.Close()
		return fmt.Errorf("archiving %s: %w", path, err)
	}
	return w.Close()
}
