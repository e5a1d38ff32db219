// Package hash implements the block-content digests used to fingerprint
// every stripe in the array: MurmurHash3-x86-128 and SpookyHash-V2-128,
// both seeded with an externally supplied 128-bit key, plus CRC32C for
// the content file's own trailer checksum.
package hash

import "fmt"

// Digest is a 16-byte block fingerprint produced by Function.Sum.
type Digest [16]byte

// Function identifies which block-hash algorithm produced a Digest. The
// content file persists the active one under tag 'c' (and, mid-rehash,
// the previous one under 'C') so readers never have to guess.
type Function byte

const (
	// FunctionMurmur3 is SnapRAID's traditional block hash, tag byte 'u'.
	FunctionMurmur3 Function = 'u'
	// FunctionSpooky2 is the faster alternative on 64-bit hosts, tag byte 'k'.
	FunctionSpooky2 Function = 'k'
)

// Valid reports whether f is a recognized hash function tag.
func (f Function) Valid() bool {
	return f == FunctionMurmur3 || f == FunctionSpooky2
}

func (f Function) String() string {
	switch f {
	case FunctionMurmur3:
		return "murmur3"
	case FunctionSpooky2:
		return "spooky2"
	default:
		return fmt.Sprintf("hash.Function(%#02x)", byte(f))
	}
}

// Sum computes the digest of data under the seed keyed for function f. It
// is the single call site checkfix.Engine and importidx use to
// turn a block's bytes into the value compared against the stored hash.
func Sum(f Function, seed [16]byte, data []byte) (Digest, error) {
	switch f {
	case FunctionMurmur3:
		return Digest(MurmurHash3_128(data, seed)), nil
	case FunctionSpooky2:
		return Digest(SpookyHash128(data, seed)), nil
	default:
		return Digest{}, fmt.Errorf("hash: unknown function %v", f)
	}
}
