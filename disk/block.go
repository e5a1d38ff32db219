// Package disk holds the in-memory catalog: blocks, files, and the disks
// that own them, together with the invariants the content-file codec and
// the check/fix engine both depend on.
package disk

import "github.com/snapraid-go/snapraid/hash"

// State is the tagged variant a Block carries in place of the original
// pointer-low-bits encoding (file back-pointer bits 0-2 select the
// state). Keeping it as an explicit sum type means a Block never needs a
// "the pointer happens to be nil" special case.
type State byte

const (
	// Empty marks a stripe column unused on this disk.
	Empty State = iota
	// BLK: hash is valid and parity at this column reflects this block.
	BLK
	// CHG: content was overwritten since the last sync. The stored hash,
	// if real, names the *old* content still encoded in parity -- it must
	// never be used to verify a freshly read block.
	CHG
	// REP: content replaced since the last sync; hash is of the *new*
	// content, but parity still encodes the old bytes.
	REP
	// Deleted: the block's owning file is gone, but its hash is kept
	// alive so parity can still be solved for this stripe until the next
	// sync rewrites it away.
	Deleted
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case BLK:
		return "blk"
	case CHG:
		return "chg"
	case REP:
		return "rep"
	case Deleted:
		return "deleted"
	default:
		return "invalid"
	}
}

// HashInvalid and HashZero are the two reserved 16-byte hash bit patterns;
// every other value is a REAL hash. A real hash must be neither.
var (
	HashInvalid = hash.Digest{}
	HashZero    = hash.Digest{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
)

// Block is one column entry in a stripe: the parity position it occupies,
// the state it's in, its hash (meaning depends on State), and a back
// reference to the owning File (nil for Empty and Deleted).
type Block struct {
	ParityPos int
	State     State
	Hash      hash.Digest
	File      *File
	// FileBlockIndex is this block's index within File.Blocks, needed to
	// go from a Block back to file2par/file2block without a linear scan.
	FileBlockIndex int
}

// IsInvalid reports whether b's hash is the reserved all-zero sentinel.
func (b *Block) IsInvalid() bool { return b.Hash == HashInvalid }

// IsZero reports whether b's hash is the reserved all-0xFF sentinel.
func (b *Block) IsZero() bool { return b.Hash == HashZero }

// IsReal reports whether b carries an actual content hash.
func (b *Block) IsReal() bool { return !b.IsInvalid() && !b.IsZero() }

// SetInvalid clears b's hash to the INVALID sentinel.
func (b *Block) SetInvalid() { b.Hash = HashInvalid }

// SetZero sets b's hash to the ZERO sentinel, used for blocks known to be
// all-zero without having actually hashed them (e.g. the blocks of a
// legacy 'n' run read by the content-file decoder).
func (b *Block) SetZero() { b.Hash = HashZero }

// HasUsableHash reports whether b's hash may be used to verify freshly
// read content. This is deliberately false for CHG even when its hash is
// REAL: a CHG block's hash names content that parity no longer reflects
// as "current", so verifying against it would validate the wrong bytes.
func (b *Block) HasUsableHash() bool {
	switch b.State {
	case BLK, REP:
		return b.IsReal()
	default:
		return false
	}
}
