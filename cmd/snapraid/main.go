// Command snapraid is the CLI dispatcher wiring the core packages
// together: it loads the config and content file(s), acquires the
// process-wide lock, and drives checkfix.Engine for check/fix/scrub,
// content.Encode/Decode for sync, and rehash.Start for rehash. Disk
// scanning, pool/symlink maintenance, and progress reporting are the
// external collaborators spec.md #1 excludes from the core; this main
// package supplies the minimum of each needed to exercise the core end
// to end.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/snapraid-go/snapraid/checkfix"
	"github.com/snapraid-go/snapraid/config"
	"github.com/snapraid-go/snapraid/content"
	"github.com/snapraid-go/snapraid/logging"
	"github.com/snapraid-go/snapraid/raid"
	"github.com/snapraid-go/snapraid/rehash"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "snapraid:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: snapraid COMMAND [options] (diff|sync|check|fix|scrub|status|dup|list|pool|rehash)")
	}
	cmd := args[0]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	confPath := fs.String("conf", "/etc/snapraid.conf", "configuration file path")
	auditOnly := fs.Bool("audit-only", false, "verify file hashes only, ignore parity")
	start := fs.Int("start", 0, "first stripe to process")
	count := fs.Int("count", -1, "number of stripes to process (-1 = all)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	f, err := os.Open(*confPath)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	cfg, err := config.Load(f)
	f.Close()
	if err != nil {
		return err
	}

	unlock, err := acquireLock(cfg.ContentFiles[0] + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	s, err := loadContent(cfg)
	if err != nil {
		return err
	}

	switch cmd {
	case "check", "fix", "scrub":
		return runCheckFix(cmd, cfg, s, *auditOnly, *start, *count)
	case "rehash":
		return runRehash(cfg, s)
	case "sync":
		return runSync(cfg, s)
	case "list":
		return runList(cfg, s)
	case "diff", "status", "dup", "pool":
		fmt.Fprintf(os.Stderr, "snapraid: %s is a reporting/maintenance command driven by the scanner and pool layers outside this core; nothing to do without them\n", cmd)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func loadContent(cfg *config.Config) (*content.State, error) {
	var lastErr error
	for _, path := range cfg.ContentFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		s, err := content.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("loading content file %s: %w", path, err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("no content file could be opened: %w", lastErr)
}

func saveContent(cfg *config.Config, s *content.State) error {
	rehash.MaybeDropPrevious(s)
	buf := content.Encode(s)
	for _, path := range cfg.ContentFiles {
		if err := archiveOldContent(path); err != nil {
			return err
		}
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, buf, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", tmp, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("renaming %s: %w", tmp, err)
		}
	}
	if err := saveDeletedHistory(cfg, s); err != nil {
		return err
	}
	return nil
}

// saveDeletedHistory writes an lz4-compressed copy of every disk's
// Deleted-block ledger beside the primary content file once the ledgers
// together hold at least deletedHistoryArchiveThreshold records
// (content/deletedlog.go). The content file itself still carries every
// Deleted record.
func saveDeletedHistory(cfg *config.Config, s *content.State) error {
	total := 0
	for _, d := range s.Disks {
		total += len(d.Deleted)
	}
	if total < deletedHistoryArchiveThreshold {
		return nil
	}
	blob, err := content.EncodeDeletedHistory(s)
	if err != nil {
		return err
	}
	return os.WriteFile(cfg.ContentFiles[0]+".deleted.lz4", blob, 0o644)
}

const deletedHistoryArchiveThreshold = 64

func runCheckFix(cmd string, cfg *config.Config, s *content.State, auditOnly bool, start, count int) error {
	r := raid.NewEngine(raid.ModeCauchy)
	log := logging.New()
	eng := checkfix.New(r, log)
	eng.AuditOnly = auditOnly || cmd == "check"

	io := newFileIO(cfg, s)
	end := int(s.BlockMax)
	if count >= 0 && start+count < end {
		end = start + count
	}

	var c checkfix.Counters
	for stripe := start; stripe < end; stripe++ {
		if err := eng.ProcessStripe(stripe, s, cfg.BlockSize(), cmd == "fix", io, &c); err != nil {
			return fmt.Errorf("stripe %d: %w", stripe, err)
		}
	}

	fmt.Printf("snapraid %s: %d errors, %d recovered, %d unrecoverable\n", cmd, c.Error, c.RecoveredError, c.UnrecoverableError)
	if cmd == "fix" {
		if err := eng.RepairEntries(s, true, io, &c); err != nil {
			return err
		}
		if err := saveContent(cfg, s); err != nil {
			return err
		}
	}
	if c.UnrecoverableError > 0 {
		os.Exit(2)
	}
	if c.Error > 0 {
		os.Exit(1)
	}
	return nil
}

func runRehash(cfg *config.Config, s *content.State) error {
	besthash := content.HashSpec{Function: cfg.Hash}
	if besthash.Function == 0 {
		return fmt.Errorf("rehash: no target hash function configured")
	}
	if err := rehash.Start(s, besthash); err != nil {
		return err
	}
	return saveContent(cfg, s)
}

func runSync(cfg *config.Config, s *content.State) error {
	s.ClearPastHash()
	return saveContent(cfg, s)
}
