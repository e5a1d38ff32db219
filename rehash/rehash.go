// Package rehash implements the online hash-function migration
// controller described in spec.md #4.H: moving an array from one block
// hash function (or seed) to another without a stop-the-world re-hash of
// every block.
package rehash

import (
	"crypto/rand"
	"fmt"

	"github.com/snapraid-go/snapraid/content"
	"github.com/snapraid-go/snapraid/disk"
	"github.com/snapraid-go/snapraid/hash"
)

// Start implements state_rehash(): it refuses if a rehash is already in
// progress (s.PrevHash != nil) or if besthash/seed already match the
// active one, otherwise it demotes the current hash to "previous",
// installs besthash with a fresh random seed, and marks every currently
// live Info entry as needing rehash.
func Start(s *content.State, besthash content.HashSpec) error {
	if s.PrevHash != nil {
		return fmt.Errorf("rehash: a rehash is already in progress (previous hash %v still active)", s.PrevHash.Function)
	}
	if besthash.Function == s.Hash.Function && besthash.Seed == s.Hash.Seed {
		return fmt.Errorf("rehash: requested hash already active")
	}

	var seed [16]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return fmt.Errorf("rehash: generating new seed: %w", err)
	}
	besthash.Seed = seed

	prev := s.Hash
	s.PrevHash = &prev
	s.Hash = besthash

	for i := range s.Info {
		if s.Info[i].Present {
			s.Info[i].Rehash = true
		}
	}
	return nil
}

// NeedsVerifyThenStore reports whether the block at the given info
// position is mid-migration: spec.md #4.H says such a block must be
// hashed with PrevHash to verify, then with Hash to store, clearing the
// rehash flag once done.
func NeedsVerifyThenStore(s *content.State, infoPos int) bool {
	if s.PrevHash == nil || infoPos < 0 || infoPos >= len(s.Info) {
		return false
	}
	return s.Info[infoPos].Rehash
}

// Migrate is called by sync/scrub for each block whose info entry has
// Rehash set, after the caller has already verified data against the
// block's old (PrevHash) digest and computed its new (Hash) digest: it
// overwrites the block's stored hash and clears the info entry's Rehash
// bit. It does not itself compute hashes -- callers already have both
// digests in hand from their own verify/store path -- it only encodes
// the bookkeeping spec.md #4.H describes.
func Migrate(s *content.State, infoPos int, b *disk.Block, newDigest hash.Digest) {
	b.Hash = newDigest
	if infoPos >= 0 && infoPos < len(s.Info) {
		s.Info[infoPos].Rehash = false
	}
}

// MaybeDropPrevious drops s.PrevHash once no info entry still carries
// the Rehash flag, matching "the content file carries both hash/seed
// pairs until no info entry has rehash set, at which point prevhash is
// dropped on the next save" (spec.md #4.H). Call this right before
// content.Encode.
func MaybeDropPrevious(s *content.State) {
	if s.PrevHash == nil {
		return
	}
	for _, w := range s.Info {
		if w.Rehash {
			return
		}
	}
	s.PrevHash = nil
}
