package checkfix

import (
	"github.com/snapraid-go/snapraid/content"
	"github.com/snapraid-go/snapraid/disk"
	"github.com/snapraid-go/snapraid/logging"
)

// EntryIO is the boundary for the zero-size-file/link/dir repair pass of
// spec.md #4.F step 8: separate from DataIO because these objects carry
// no block content and so need no hash or parity at all.
type EntryIO interface {
	FileExists(d *disk.Disk, f *disk.File) (bool, error)
	CreateEmptyFile(d *disk.Disk, f *disk.File) error
	LinkMatches(d *disk.Disk, l *disk.Link) (bool, error)
	CreateLink(d *disk.Disk, l *disk.Link) error
	HardlinkTargetExists(d *disk.Disk, l *disk.Link) (bool, error)
	DirExists(d *disk.Disk, dir *disk.Dir) (bool, error)
	CreateDir(d *disk.Disk, dir *disk.Dir) error
	DeleteUnfinishedCreated(d *disk.Disk, f *disk.File) error
}

// RepairEntries walks every disk's zero-size files, links, and
// directories and, if fix is true, recreates anything missing or wrong.
// A hardlink whose target no longer exists is flagged unrecoverable
// rather than silently skipped, matching spec.md #4.F step 8.
func (e *Engine) RepairEntries(s *content.State, fix bool, io EntryIO, c *Counters) error {
	for _, d := range s.Disks {
		for _, f := range d.Files {
			if f.BlockMax() != 0 {
				continue
			}
			ok, err := io.FileExists(d, f)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
			if !fix {
				e.Log.Record(logging.KindUnrecoverable, -1, d.Name, f.Subpath, map[string]interface{}{"reason": "missing zero-size file"})
				c.UnrecoverableError++
				continue
			}
			if err := io.CreateEmptyFile(d, f); err != nil {
				return err
			}
			f.Set(disk.FlagCreated | disk.FlagFinished)
			e.Log.Record(logging.KindFixed, -1, d.Name, f.Subpath, nil)
			c.RecoveredError++
		}

		for _, l := range d.Links {
			if l.Type == disk.LinkHardlink {
				exists, err := io.HardlinkTargetExists(d, l)
				if err != nil {
					return err
				}
				if !exists {
					e.Log.Record(logging.KindUnrecoverable, -1, d.Name, l.Subpath, map[string]interface{}{"reason": "hardlink target missing"})
					c.UnrecoverableError++
					continue
				}
			}
			ok, err := io.LinkMatches(d, l)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
			if !fix {
				e.Log.Record(logging.KindUnrecoverable, -1, d.Name, l.Subpath, map[string]interface{}{"reason": "missing or wrong link"})
				c.UnrecoverableError++
				continue
			}
			if err := io.CreateLink(d, l); err != nil {
				return err
			}
			e.Log.Record(logging.KindFixed, -1, d.Name, l.Subpath, nil)
			c.RecoveredError++
		}

		for _, dir := range d.Dirs {
			ok, err := io.DirExists(d, dir)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
			if !fix {
				e.Log.Record(logging.KindUnrecoverable, -1, d.Name, dir.Subpath, map[string]interface{}{"reason": "missing directory"})
				c.UnrecoverableError++
				continue
			}
			if err := io.CreateDir(d, dir); err != nil {
				return err
			}
			e.Log.Record(logging.KindFixed, -1, d.Name, dir.Subpath, nil)
			c.RecoveredError++
		}
	}
	return nil
}

// AbortCleanup implements the tail of spec.md #4.F step 8: created-from-
// scratch files that never reached FINISHED are deleted on abort, so a
// killed fix run doesn't leave half-written placeholders in the catalog.
func (e *Engine) AbortCleanup(s *content.State, io EntryIO) error {
	for _, d := range s.Disks {
		for _, f := range d.Files {
			if f.Has(disk.FlagCreated) && !f.Has(disk.FlagFinished) {
				if err := io.DeleteUnfinishedCreated(d, f); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
