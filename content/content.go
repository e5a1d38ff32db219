// Package content implements the binary on-disk catalog: the tagged
// varint record stream described by spec #4.E and its CRC32C trailer.
// Writing the copies to disk and choosing which copy to load are left to
// the caller (saveContent and loadContent in cmd/snapraid).
package content

import (
	uuid "github.com/satori/go.uuid"
	"github.com/snapraid-go/snapraid/disk"
	"github.com/snapraid-go/snapraid/hash"
)

// Magic2 is the current content-file signature. Magic1 ("SNAPCNT1...")
// identifies the legacy format; Decode accepts either signature, but
// Encode only ever writes Magic2.
var (
	Magic2 = [12]byte{'S', 'N', 'A', 'P', 'C', 'N', 'T', '2', '\n', 0x03, 0x00, 0x00}
	Magic1 = [12]byte{'S', 'N', 'A', 'P', 'C', 'N', 'T', '1', '\n', 0x03, 0x00, 0x00}
)

// HashSpec names a hash function and the 128-bit seed it was configured
// with. The content file carries one under tag 'c' and, during an active
// rehash campaign, a second one (the outgoing function) under tag 'C'.
type HashSpec struct {
	Function hash.Function
	Seed     [16]byte
}

// MapRecord is one data-disk slot in the parity layout: which disk
// occupies it, its last-seen filesystem UUID, and the block accounting
// at the last sync. It is how on-disk parity columns find their disk
// across runs, tag 'M'. The legacy 'm' form without block counts is not
// decoded: Decode rejects it as an unknown tag.
type MapRecord struct {
	Name        string
	Slot        int
	TotalBlocks uint32
	FreeBlocks  uint32
	UUID        uuid.UUID
}

// ParityRecord is the per-parity-level descriptor, tag 'P'.
type ParityRecord struct {
	Level       int
	TotalBlocks uint32
	FreeBlocks  uint32
	UUID        uuid.UUID
}

// InfoWord is one parity position's scrub metadata: the last time it was
// verified, and the bad/rehash/justsynced flags layered on top of it.
// A zero InfoWord means "no info", matching the all-zero 32-bit word the
// original format reserves for that meaning.
type InfoWord struct {
	Present     bool
	Time        uint32
	Bad         bool
	Rehash      bool
	JustSynced  bool
}

// IsZero reports whether w carries no information at all.
func (w InfoWord) IsZero() bool {
	return !w.Present && !w.Bad && !w.Rehash && !w.JustSynced && w.Time == 0
}

// State is the full in-memory image of one content file: global
// parameters, the hash configuration (current and, mid-rehash, previous),
// disk mappings, parity descriptors, the loaded Disks themselves, and the
// per-position scrub Info array.
type State struct {
	BlockSize uint32
	BlockMax  uint32

	Hash     HashSpec
	PrevHash *HashSpec // nil unless a rehash is in progress

	Maps     []MapRecord
	Parities []ParityRecord
	Disks    []*disk.Disk

	Info []InfoWord // length BlockMax
}

// ClearPastHash wipes the stored hash of every CHG and Deleted block
// across every disk. sync calls this right after loading, since a
// previous, possibly interrupted sync may have left hashes that no
// longer correspond to what parity encodes; every other command trusts
// them.
func (s *State) ClearPastHash() {
	for _, d := range s.Disks {
		for _, del := range d.Deleted {
			del.Block.SetInvalid()
		}
		for _, f := range d.Files {
			for _, b := range f.Blocks {
				if b.State == disk.CHG {
					b.SetInvalid()
				}
			}
		}
	}
}
