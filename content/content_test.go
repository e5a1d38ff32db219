package content

import (
	"bytes"
	"testing"

	"github.com/go-test/deep"
	uuid "github.com/satori/go.uuid"

	"github.com/snapraid-go/snapraid/disk"
	"github.com/snapraid-go/snapraid/hash"
)

// newRoundTripState builds a small but representative State covering
// these record kinds: a map, a parity level, a file with a run of BLK
// blocks and a run of CHG blocks, a symlink, a dir, a deleted block, and
// per-position Info. Hardlinks, REP runs and a previous hash are not
// included.
func newRoundTripState() *State {
	d := disk.New("disk0", "/mnt/disk0", 1)
	f := &disk.File{Subpath: "a/b.bin", Size: 8192, MtimeSec: 1700000000, MtimeNsec: 5}
	f.Blocks = []*disk.Block{
		{State: disk.BLK, Hash: hash.Digest{1}},
		{State: disk.BLK, Hash: hash.Digest{2}},
		{State: disk.CHG, Hash: hash.Digest{3}},
	}
	d.AddFile(f)
	for i, b := range f.Blocks {
		b.File = f
		b.FileBlockIndex = i
		d.Par2BlockSet(i, b)
	}
	d.Links = append(d.Links, &disk.Link{Subpath: "a/link", Target: "a/b.bin", Type: disk.LinkSymlink})
	d.Dirs = append(d.Dirs, &disk.Dir{Subpath: "a/empty"})
	d.AddDeleted(3, disk.Block{Hash: hash.Digest{9}})

	s := &State{
		BlockSize: 256 * 1024,
		BlockMax:  4,
		Hash:      HashSpec{Function: hash.FunctionMurmur3, Seed: [16]byte{7}},
		Maps:      []MapRecord{{Name: "disk0", Slot: 0, TotalBlocks: 4, FreeBlocks: 1, UUID: uuid.NewV4()}},
		Parities:  []ParityRecord{{Level: 0, TotalBlocks: 4, FreeBlocks: 1, UUID: uuid.NewV4()}},
		Disks:     []*disk.Disk{d},
		Info:      make([]InfoWord, 4),
	}
	s.Info[0] = InfoWord{Present: true, Time: 1700000000}
	s.Info[1] = InfoWord{Present: true, Time: 1700000000, Bad: true}
	return s
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := newRoundTripState()
	wantBuf := Encode(want)
	got, err := Decode(wantBuf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	for _, d := range got.Disks {
		if err := d.CheckInvariants(); err != nil {
			t.Fatalf("CheckInvariants on decoded disk %s: %v", d.Name, err)
		}
	}

	// Encode(Decode(Encode(s))) must reproduce the exact same bytes --
	// spec.md #8.4's round-trip property -- which in particular catches
	// a decoder that drops or mis-derives ParityPos (encodeFile's runs
	// are grouped by contiguous global parity position, so any position
	// error changes the run boundaries and therefore the output bytes).
	gotBuf := Encode(got)
	if !bytes.Equal(gotBuf, wantBuf) {
		t.Fatalf("round-trip not byte-identical:\nwant %x\ngot  %x", wantBuf, gotBuf)
	}

	if got.BlockSize != want.BlockSize || got.BlockMax != want.BlockMax {
		t.Fatalf("BlockSize/BlockMax mismatch: got %d/%d, want %d/%d", got.BlockSize, got.BlockMax, want.BlockSize, want.BlockMax)
	}
	if got.Hash != want.Hash {
		t.Fatalf("Hash mismatch: got %+v, want %+v", got.Hash, want.Hash)
	}
	if diff := deep.Equal(got.Maps, want.Maps); diff != nil {
		t.Errorf("Maps diff: %v", diff)
	}
	if diff := deep.Equal(got.Parities, want.Parities); diff != nil {
		t.Errorf("Parities diff: %v", diff)
	}
	if len(got.Disks) != 1 || len(got.Disks[0].Files) != 1 {
		t.Fatalf("disk/file count mismatch after round-trip")
	}
	gf, wf := got.Disks[0].Files[0], want.Disks[0].Files[0]
	if gf.Subpath != wf.Subpath || gf.Size != wf.Size {
		t.Fatalf("file mismatch: got %+v, want %+v", gf, wf)
	}
	for i, b := range wf.Blocks {
		gb := gf.Blocks[i]
		if gb.State != b.State || gb.Hash != b.Hash || gb.ParityPos != b.ParityPos {
			t.Errorf("block %d mismatch: got %+v, want %+v", i, gb, b)
		}
		if got.Disks[0].Par2BlockGet(gb.ParityPos) != gb {
			t.Errorf("block %d: par2block[%d] does not point back at the decoded block", i, gb.ParityPos)
		}
	}
	if len(got.Disks[0].Deleted) != 1 {
		t.Fatalf("expected one deleted record, got %d", len(got.Disks[0].Deleted))
	}
	if got.Disks[0].Deleted[0].Block.Hash != (hash.Digest{9}) {
		t.Errorf("deleted hash mismatch: got %x", got.Disks[0].Deleted[0].Block.Hash)
	}
}

func TestDecodeRejectsCorruptCRC(t *testing.T) {
	buf := Encode(newRoundTripState())
	buf[len(buf)-1] ^= 0xFF
	if _, err := Decode(buf); err == nil {
		t.Fatal("Decode accepted a corrupted CRC32C trailer")
	}
}

func TestEncodeDeletedHistoryRoundTrip(t *testing.T) {
	s := newRoundTripState()
	blob, err := EncodeDeletedHistory(s)
	if err != nil {
		t.Fatalf("EncodeDeletedHistory: %v", err)
	}
	entries, err := DecodeDeletedHistory(blob)
	if err != nil {
		t.Fatalf("DecodeDeletedHistory: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].DiskIndex != 0 || entries[0].ParityPos != 3 || entries[0].Hash != (hash.Digest{9}) {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}
