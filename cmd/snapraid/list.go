package main

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/xattr"
	times "gopkg.in/djherbis/times.v1"

	"github.com/snapraid-go/snapraid/config"
	"github.com/snapraid-go/snapraid/content"
)

// runList prints one forensic line per cataloged file: its recorded
// size, the disk it lives on, its extended-attribute names if the
// filesystem exposes any, and its birth time where the platform's stat
// call reports one. This is the one piece of "list" spec.md #1 leaves
// to an external scanner/reporting layer that this core still has
// enough to offer on its own, since every fact it prints already lives
// in the loaded content.State plus a single stat of the real path.
func runList(cfg *config.Config, s *content.State) error {
	for _, d := range s.Disks {
		for _, f := range d.Files {
			path := filepath.Join(d.MountDir, f.Subpath)
			line := fmt.Sprintf("%10d  %s/%s", f.Size, d.Name, f.Subpath)

			if names, err := xattr.List(path); err == nil && len(names) > 0 {
				line += fmt.Sprintf("  xattr=%v", names)
			}
			if t, err := times.Stat(path); err == nil && t.HasBirthTime() {
				line += fmt.Sprintf("  birth=%s", t.BirthTime().Format("2006-01-02T15:04:05"))
			}
			fmt.Println(line)
		}
	}
	return nil
}
