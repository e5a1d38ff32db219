// Package checkfix implements the two-strategy check/fix engine of
// spec.md #4.F: for every parity stripe it reconciles file state,
// deleted-block memory, and parity that may or may not reflect the most
// recent sync, validating every reconstruction with hashes and/or
// surplus parity.
//
// File and parity I/O are external collaborators (spec.md #1): this
// package never opens a file or a parity device itself, it drives the
// DataIO boundary the caller supplies.
package checkfix

import (
	"fmt"

	"github.com/snapraid-go/snapraid/content"
	"github.com/snapraid-go/snapraid/disk"
	"github.com/snapraid-go/snapraid/hash"
	"github.com/snapraid-go/snapraid/importidx"
	"github.com/snapraid-go/snapraid/logging"
	"github.com/snapraid-go/snapraid/raid"
)

// DataIO is the boundary the engine drives for every stripe: reading and
// writing file blocks on data disks, and reading and writing parity
// columns. Implementations own the actual filesystem/pool/symlink
// details spec.md #1 excludes from the core.
type DataIO interface {
	// ReadFileBlock reads the blockIndex'th block of f on d, which is
	// blockSize bytes except possibly the last block of the file. A
	// missing file or any I/O error is returned as err.
	ReadFileBlock(d *disk.Disk, f *disk.File, blockIndex int, blockSize int64) ([]byte, error)
	// WriteFileBlock writes data back to the blockIndex'th block of f on
	// d, creating the file and/or adjusting its size first if needed
	// (spec.md #4.F step 6: "truncating/extending to the recorded
	// size").
	WriteFileBlock(d *disk.Disk, f *disk.File, blockIndex int, blockSize int64, data []byte) error
	// RestoreMtime restores f's recorded mtime on disk, unless the
	// caller determines the (sub,size,mtime_sec,mtime_nsec) tuple
	// collides with another catalog entry (spec.md #4.F step 6), which
	// this interface leaves to the caller to decide by simply not
	// calling it.
	RestoreMtime(d *disk.Disk, f *disk.File) error

	// ReadParity reads the stripe'th block of parity level (0-indexed).
	ReadParity(level int, stripe int, blockSize int64) ([]byte, error)
	// WriteParity writes data back to the stripe'th block of parity
	// level.
	WriteParity(level int, stripe int, blockSize int64, data []byte) error
}

// Engine drives the check/fix algorithm over a loaded content.State.
type Engine struct {
	RAID      *raid.Engine
	Log       *logging.Logger
	Import    *importidx.Index // nil if no --import directory was given
	AuditOnly bool             // spec.md #4.F "Audit-only mode"
}

// New returns an Engine ready to process stripes.
func New(r *raid.Engine, log *logging.Logger) *Engine {
	return &Engine{RAID: r, Log: log}
}

// Counters accumulates the per-run totals spec.md #7 says are "surfaced
// only in the summary": recoverable per-stripe errors never abort the
// run, they just add up here.
type Counters struct {
	Error             int
	RecoveredError    int
	UnrecoverableError int
}

// failedEntry is one bad or unsynced column in the current stripe, the
// in-memory analogue of the original's failed[] array.
type failedEntry struct {
	diskIdx     int
	d           *disk.Disk
	f           *disk.File
	blk         *disk.Block // for a Deleted position, the Deleted record's Block (f is nil)
	blockIdx    int         // index within f.Blocks
	buf         []byte
	isBad       bool
	isOutOfDate bool // strategy 2: hash must not be trusted for verify
	fixedVia    string // "", "import", or "parity" -- set once resolved
}

// stripeData holds everything gathered for one stripe before strategy
// selection: the nd data buffers, the np parity buffers (nil where
// unusable), and the failed/unsynced bookkeeping.
type stripeData struct {
	stripe    int
	blockSize int64
	nd, np    int
	hashFn    hash.Function
	hashSeed  [16]byte

	data    [][]byte // len nd, always populated (zeroed for Empty/Deleted)
	parity  [][]byte // len np, nil entries mean "read error, unusable"
	entries []*failedEntry

	hasUnsynced bool // any CHG/REP/Deleted present, strategy 2 eligible
}

// ProcessStripe runs the full algorithm for one stripe index: read, the
// two strategies, and (if fix is true) writes the repair back. It never
// returns an error for a recoverable per-stripe condition -- those are
// folded into Counters and the tagged log stream -- only for a fatal I/O
// condition spec.md #7 says must stop the pass.
func (e *Engine) ProcessStripe(stripe int, s *content.State, blockSize int64, fix bool, io DataIO, c *Counters) error {
	sd, err := e.readStripe(stripe, s, blockSize, io, c)
	if err != nil {
		return err
	}

	if e.AuditOnly {
		return e.auditStripe(stripe, sd, c)
	}

	ok, usedParity := e.strategy1(sd)
	strategy := 1
	if !ok && sd.hasUnsynced {
		ok, usedParity = e.strategy2(sd)
		strategy = 2
	}

	if !ok {
		return e.markUnrecoverable(stripe, sd, c)
	}

	return e.applyFix(stripe, sd, usedParity, strategy, fix, io, c)
}

// readStripe gathers the nd data buffers and np parity buffers for one
// stripe, classifying every non-empty, non-deleted column per spec.md
// #4.F step 1 and every parity column per step 2.
func (e *Engine) readStripe(stripe int, s *content.State, blockSize int64, io DataIO, c *Counters) (*stripeData, error) {
	nd := len(s.Disks)
	np := len(s.Parities)
	sd := &stripeData{stripe: stripe, blockSize: blockSize, nd: nd, np: np, data: make([][]byte, nd), hashFn: s.Hash.Function, hashSeed: s.Hash.Seed}

	for di, d := range s.Disks {
		b := d.Par2BlockGet(stripe)
		if b == nil || b.State == disk.Empty {
			sd.data[di] = make([]byte, blockSize)
			continue
		}
		if b.State == disk.Deleted {
			sd.hasUnsynced = true
			sd.data[di] = make([]byte, blockSize)
			sd.entries = append(sd.entries, &failedEntry{diskIdx: di, d: d, blk: b, blockIdx: -1, buf: sd.data[di]})
			continue
		}

		f := b.File
		buf, rerr := io.ReadFileBlock(d, f, b.FileBlockIndex, blockSize)
		isBad := false
		switch b.State {
		case disk.BLK:
			if rerr != nil {
				isBad = true
				e.Log.Record(logging.KindError, stripe, d.Name, f.Subpath, map[string]interface{}{"error": rerr.Error()})
			} else if b.IsReal() {
				got, herr := hash.Sum(s.Hash.Function, s.Hash.Seed, buf)
				if herr != nil {
					return nil, herr
				}
				if got != b.Hash {
					isBad = true
					e.Log.Record(logging.KindHashError, stripe, d.Name, f.Subpath, nil)
				}
			}
		case disk.CHG:
			sd.hasUnsynced = true
			if rerr != nil {
				isBad = true
				e.Log.Record(logging.KindError, stripe, d.Name, f.Subpath, map[string]interface{}{"error": rerr.Error()})
			}
			// CHG blocks have no usable hash (disk.Block.HasUsableHash),
			// so a successful read is trusted outright: spec.md #4.F
			// step 1, "CHG blocks are inserted with is_bad=0 because a
			// CHG block has no hash to verify".
		case disk.REP:
			sd.hasUnsynced = true
			if rerr != nil {
				isBad = true
				e.Log.Record(logging.KindError, stripe, d.Name, f.Subpath, map[string]interface{}{"error": rerr.Error()})
			} else if b.IsReal() {
				got, herr := hash.Sum(s.Hash.Function, s.Hash.Seed, buf)
				if herr != nil {
					return nil, herr
				}
				if got != b.Hash {
					isBad = true
					e.Log.Record(logging.KindHashError, stripe, d.Name, f.Subpath, nil)
				}
			}
		}

		if rerr != nil {
			buf = make([]byte, blockSize)
		}
		sd.data[di] = buf
		if isBad || b.State == disk.CHG || b.State == disk.REP {
			sd.entries = append(sd.entries, &failedEntry{diskIdx: di, d: d, f: f, blk: b, blockIdx: b.FileBlockIndex, buf: buf, isBad: isBad})
		}
	}

	sd.parity = make([][]byte, np)
	for level := 0; level < np; level++ {
		buf, err := io.ReadParity(level, stripe, blockSize)
		if err != nil {
			e.Log.Record(logging.KindError, stripe, fmt.Sprintf("parity%d", level), "", map[string]interface{}{"error": err.Error()})
			c.Error++
			continue
		}
		sd.parity[level] = buf
	}

	return sd, nil
}

// badPositions returns the data-disk indexes currently marked is_bad.
func (sd *stripeData) badPositions() []int {
	var out []int
	for _, en := range sd.entries {
		if en.isBad {
			out = append(out, en.diskIdx)
		}
	}
	return out
}

// validParityLevels returns the indexes of parity columns that read
// successfully.
func (sd *stripeData) validParityLevels() []int {
	var out []int
	for l, buf := range sd.parity {
		if buf != nil {
			out = append(out, l)
		}
	}
	return out
}

func (sd *stripeData) entryForDisk(diskIdx int) *failedEntry {
	for _, en := range sd.entries {
		if en.diskIdx == diskIdx {
			return en
		}
	}
	return nil
}
