package rehash

import (
	"testing"

	"github.com/snapraid-go/snapraid/content"
	"github.com/snapraid-go/snapraid/disk"
	"github.com/snapraid-go/snapraid/hash"
)

func newState() *content.State {
	return &content.State{
		Hash: content.HashSpec{Function: hash.FunctionMurmur3, Seed: [16]byte{1}},
		Info: []content.InfoWord{
			{Present: true},
			{Present: true},
			{}, // not present, must not be marked
		},
	}
}

func TestStartMarksPresentInfoForRehash(t *testing.T) {
	s := newState()
	if err := Start(s, content.HashSpec{Function: hash.FunctionSpooky2}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.PrevHash == nil || s.PrevHash.Function != hash.FunctionMurmur3 {
		t.Fatalf("PrevHash not set to the old function: %+v", s.PrevHash)
	}
	if s.Hash.Function != hash.FunctionSpooky2 {
		t.Fatalf("Hash.Function = %v, want FunctionSpooky2", s.Hash.Function)
	}
	if s.Hash.Seed == s.PrevHash.Seed {
		t.Fatal("Start must install a fresh random seed, not reuse the old one")
	}
	if !s.Info[0].Rehash || !s.Info[1].Rehash {
		t.Fatal("present info entries must be marked Rehash")
	}
	if s.Info[2].Rehash {
		t.Fatal("absent info entry must not be marked Rehash")
	}
}

func TestStartRejectsWhileAlreadyInProgress(t *testing.T) {
	s := newState()
	if err := Start(s, content.HashSpec{Function: hash.FunctionSpooky2}); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := Start(s, content.HashSpec{Function: hash.FunctionMurmur3}); err == nil {
		t.Fatal("second Start should fail while a rehash is in progress")
	}
}

func TestStartRejectsNoOpTarget(t *testing.T) {
	s := newState()
	if err := Start(s, s.Hash); err == nil {
		t.Fatal("Start should refuse a target identical to the active hash")
	}
}

func TestNeedsVerifyThenStoreAndMigrate(t *testing.T) {
	s := newState()
	if err := Start(s, content.HashSpec{Function: hash.FunctionSpooky2}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !NeedsVerifyThenStore(s, 0) {
		t.Fatal("position 0 should need verify-then-store right after Start")
	}

	b := &disk.Block{State: disk.BLK}
	newDigest := hash.Digest{9, 9}
	Migrate(s, 0, b, newDigest)
	if b.Hash != newDigest {
		t.Fatalf("Migrate did not install the new digest: %x", b.Hash)
	}
	if s.Info[0].Rehash {
		t.Fatal("Migrate must clear the Rehash flag")
	}
	if NeedsVerifyThenStore(s, 0) {
		t.Fatal("position 0 should no longer need verify-then-store")
	}
}

func TestMaybeDropPreviousWaitsForEveryEntry(t *testing.T) {
	s := newState()
	if err := Start(s, content.HashSpec{Function: hash.FunctionSpooky2}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	MaybeDropPrevious(s)
	if s.PrevHash == nil {
		t.Fatal("PrevHash dropped while an info entry still needs rehash")
	}

	Migrate(s, 0, &disk.Block{}, hash.Digest{1})
	MaybeDropPrevious(s)
	if s.PrevHash == nil {
		t.Fatal("PrevHash dropped while entry 1 still needs rehash")
	}

	Migrate(s, 1, &disk.Block{}, hash.Digest{2})
	MaybeDropPrevious(s)
	if s.PrevHash != nil {
		t.Fatal("PrevHash should be dropped once no entry needs rehash")
	}
}
