package disk

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// mtimeStamp is the (size, mtime_sec, mtime_nsec) key importidx.SearchIndex
// uses to detect renamed/moved files without rehashing their content, see
// spec #4.G; checkfix's mtime-restore collision check looks files up by it
// too.
type mtimeStamp struct {
	size int64
	sec  int64
	nsec int32
}

// Deleted is a standalone Block kept alive purely to remember the hash of
// data that parity still encodes, after the owning File has been removed
// from the catalog.
type Deleted struct {
	Block Block
}

// Disk is one data or parity disk tracked by the array: its identity, its
// files/links/dirs, the sparse column array mapping parity positions to
// blocks, and the lookup indexes the scanner and the check/fix engine use
// to avoid linear scans.
type Disk struct {
	Name      string
	MountDir  string
	DeviceID  uint64
	par2block []*Block // sparse; nil entries are implicitly Empty
	free      *bitset.BitSet

	Files []*File
	Links []*Link
	Dirs  []*Dir

	Deleted []*Deleted

	byInode  map[uint64]*File
	bySub    map[string]*File
	byStamp  map[mtimeStamp][]*File
}

// New returns an empty Disk ready for the scanner to populate.
func New(name, mountDir string, deviceID uint64) *Disk {
	return &Disk{
		Name:     name,
		MountDir: mountDir,
		DeviceID: deviceID,
		free:     bitset.New(0),
		byInode:  make(map[uint64]*File),
		bySub:    make(map[string]*File),
		byStamp:  make(map[mtimeStamp][]*File),
	}
}

// Par2BlockSet assigns block to parity position pos, growing the column
// array if needed; any newly created intermediate slots are left nil
// (Empty). It also marks the slot as no longer free.
func (d *Disk) Par2BlockSet(pos int, block *Block) {
	if pos < 0 {
		panic("disk: negative parity position")
	}
	if pos >= len(d.par2block) {
		grown := make([]*Block, pos+1)
		copy(grown, d.par2block)
		d.par2block = grown
	}
	d.par2block[pos] = block
	if block != nil {
		block.ParityPos = pos
		if pos >= int(d.free.Len()) {
			d.free.Set(uint(pos))
		}
		d.free.Clear(uint(pos))
	}
}

// Par2BlockGet returns the block at parity position pos, or nil for
// out-of-range or unused positions (the Empty state).
func (d *Disk) Par2BlockGet(pos int) *Block {
	if pos < 0 || pos >= len(d.par2block) {
		return nil
	}
	return d.par2block[pos]
}

// Par2BlockClear releases the slot at pos. If it held a Deleted block's
// backing entry, the Deleted record is removed from the disk's ledger.
func (d *Disk) Par2BlockClear(pos int) {
	b := d.Par2BlockGet(pos)
	if b == nil {
		return
	}
	if b.State == Deleted {
		for i, del := range d.Deleted {
			if &del.Block == b {
				d.Deleted = append(d.Deleted[:i], d.Deleted[i+1:]...)
				break
			}
		}
	}
	d.par2block[pos] = nil
	d.free.Set(uint(pos))
}

// BlockMax returns one past the highest assigned parity position, i.e.
// the current column-array length.
func (d *Disk) BlockMax() int { return len(d.par2block) }

// File2Par returns the parity position of block index i of file f. This
// is a direct read of the block's ParityPos (kept up to date by
// Par2BlockSet when columns are assigned), kept as a method so callers never reach past
// the File/Disk boundary directly.
func (d *Disk) File2Par(f *File, i int) (int, error) {
	if i < 0 || i >= len(f.Blocks) {
		return 0, fmt.Errorf("disk: block index %d out of range for file %q (%d blocks)", i, f.Subpath, len(f.Blocks))
	}
	return f.Blocks[i].ParityPos, nil
}

// File2Block returns the Block for block index i of file f.
func (d *Disk) File2Block(f *File, i int) (*Block, error) {
	if i < 0 || i >= len(f.Blocks) {
		return nil, fmt.Errorf("disk: block index %d out of range for file %q (%d blocks)", i, f.Subpath, len(f.Blocks))
	}
	return f.Blocks[i], nil
}

// Par2File returns the File owning the block at parity position pos, or
// nil if that column is Empty, Deleted, or out of range.
func (d *Disk) Par2File(pos int) *File {
	b := d.Par2BlockGet(pos)
	if b == nil {
		return nil
	}
	return b.File
}

// IsEmpty reports whether the disk has no file, link, or dir, and no
// Deleted block below blockmax -- the condition under which the
// content-file writer omits the disk entirely (spec #4.D).
func (d *Disk) IsEmpty(blockmax int) bool {
	if len(d.Files) != 0 || len(d.Links) != 0 || len(d.Dirs) != 0 {
		return false
	}
	for _, del := range d.Deleted {
		if del.Block.ParityPos < blockmax {
			return false
		}
	}
	return true
}

// AddFile registers f with the disk's indexes. The scanner calls this
// once per discovered file, after assigning its Blocks' ParityPos values
// via Par2BlockSet.
func (d *Disk) AddFile(f *File) {
	d.Files = append(d.Files, f)
	if !f.Has(FlagWithoutInode) {
		d.byInode[f.Inode] = f
	}
	d.bySub[f.Subpath] = f
	st := mtimeStamp{size: f.Size, sec: f.MtimeSec, nsec: f.MtimeNsec}
	d.byStamp[st] = append(d.byStamp[st], f)
}

// FileByInode looks up a file by inode number, used by the scanner to
// detect a file that moved without content change.
func (d *Disk) FileByInode(inode uint64) (*File, bool) {
	f, ok := d.byInode[inode]
	return f, ok
}

// FileBySubpath looks up a file by its subpath relative to the disk root.
func (d *Disk) FileBySubpath(sub string) (*File, bool) {
	f, ok := d.bySub[sub]
	return f, ok
}

// FilesByStamp returns every file sharing the given (size, mtime) stamp,
// the index importidx.SearchIndex.Lookup probes when looking for a
// renamed source.
func (d *Disk) FilesByStamp(size int64, sec int64, nsec int32) []*File {
	return d.byStamp[mtimeStamp{size: size, sec: sec, nsec: nsec}]
}

// AddDeleted appends a new Deleted record at the given parity position
// and wires it into the column array.
func (d *Disk) AddDeleted(pos int, h Block) *Deleted {
	del := &Deleted{Block: h}
	del.Block.State = Deleted
	del.Block.File = nil
	d.Deleted = append(d.Deleted, del)
	d.Par2BlockSet(pos, &del.Block)
	return del
}

// CheckInvariants verifies the cross-reference invariants spec #4.D and
// #8.3 require hold before any content-file write and after any load:
// file2par(f,i) round-trips through par2block, no two files share a
// column, and no Deleted record has an owning file.
func (d *Disk) CheckInvariants() error {
	seen := make(map[int]*File)
	for _, f := range d.Files {
		for i, b := range f.Blocks {
			pos, err := d.File2Par(f, i)
			if err != nil {
				return err
			}
			if got := d.Par2BlockGet(pos); got != b {
				return fmt.Errorf("disk: par2block(%d) = %p, want block %p owned by %q[%d]", pos, got, b, f.Subpath, i)
			}
			if owner, ok := seen[pos]; ok && owner != f {
				return fmt.Errorf("disk: parity position %d claimed by both %q and %q", pos, owner.Subpath, f.Subpath)
			}
			seen[pos] = f
		}
	}
	for _, del := range d.Deleted {
		if del.Block.File != nil {
			return fmt.Errorf("disk: deleted block at position %d has a non-nil owning file", del.Block.ParityPos)
		}
	}
	return nil
}
