package importidx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/snapraid-go/snapraid/disk"
	"github.com/snapraid-go/snapraid/hash"
)

func writeTempFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestIndexAddAndFetch(t *testing.T) {
	dir := t.TempDir()
	block0 := make([]byte, 64)
	block1 := make([]byte, 64)
	for i := range block0 {
		block0[i] = 0xAA
	}
	for i := range block1 {
		block1[i] = 0xBB
	}
	path := writeTempFile(t, dir, "source.bin", append(append([]byte(nil), block0...), block1...))

	fn, seed := hash.FunctionMurmur3, [16]byte{1}
	ix := New(64, fn, seed)
	if err := ix.Add(path); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if ix.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ix.Len())
	}

	want, err := hash.Sum(fn, seed, block1)
	if err != nil {
		t.Fatalf("hash.Sum: %v", err)
	}
	out := make([]byte, 64)
	hit, err := ix.Fetch(want, fn, seed, out)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !hit {
		t.Fatal("Fetch reported no match for an indexed block")
	}
	for i, b := range out {
		if b != 0xBB {
			t.Fatalf("byte %d = %x, want 0xBB", i, b)
		}
	}
}

func TestIndexFetchMissReturnsFalseNotError(t *testing.T) {
	ix := New(64, hash.FunctionMurmur3, [16]byte{1})
	out := make([]byte, 64)
	hit, err := ix.Fetch(hash.Digest{0xFF}, hash.FunctionMurmur3, [16]byte{1}, out)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if hit {
		t.Fatal("Fetch reported a hit against an empty index")
	}
}

func TestIndexFetchFailsLoudOnChangedSource(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, 64)
	for i := range data {
		data[i] = 0x01
	}
	path := writeTempFile(t, dir, "source.bin", data)

	fn, seed := hash.FunctionMurmur3, [16]byte{1}
	ix := New(64, fn, seed)
	if err := ix.Add(path); err != nil {
		t.Fatalf("Add: %v", err)
	}
	want, _ := hash.Sum(fn, seed, data)

	// Mutate the source file out from under the index.
	changed := make([]byte, 64)
	for i := range changed {
		changed[i] = 0x02
	}
	if err := os.WriteFile(path, changed, 0o644); err != nil {
		t.Fatalf("rewriting source: %v", err)
	}

	out := make([]byte, 64)
	_, err := ix.Fetch(want, fn, seed, out)
	if err == nil {
		t.Fatal("Fetch silently accepted a source file that changed under it")
	}
}

func TestSearchIndexLookupVerifiesByStamp(t *testing.T) {
	dir := t.TempDir()
	d := disk.New("disk0", dir, 1)
	data := make([]byte, 64)
	for i := range data {
		data[i] = 0x42
	}
	if err := os.WriteFile(filepath.Join(dir, "renamed.bin"), data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f := &disk.File{Subpath: "renamed.bin", Size: 64, MtimeSec: 100, MtimeNsec: 0}
	f.Blocks = []*disk.Block{{State: disk.BLK}}
	d.AddFile(f)

	fn, seed := hash.FunctionMurmur3, [16]byte{1}
	want, _ := hash.Sum(fn, seed, data)

	si := NewSearchIndex([]*disk.Disk{d})
	found, got, err := si.Lookup(64, 100, 0, 0, 64, fn, seed, want)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found == nil {
		t.Fatal("Lookup found nothing for a matching stamp")
	}
	if found.Subpath != "renamed.bin" {
		t.Fatalf("found subpath = %q, want renamed.bin", found.Subpath)
	}
	if len(got) != 64 || got[0] != 0x42 {
		t.Fatalf("unexpected block content: %x", got[:4])
	}
}
