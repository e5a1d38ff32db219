package hash

import "encoding/binary"

// spookyNumVars is the width of SpookyHash's internal state, in uint64s.
const spookyNumVars = 12

// spookyBlockSize is the width of one mix block in bytes.
const spookyBlockSize = spookyNumVars * 8

// spookyConst seeds the state lanes that don't come from the caller's
// seed. Its only required properties are: nonzero, odd, an irregular mix
// of bits.
const spookyConst = 0xdeadbeefdeadbeef

// SpookyHash128 computes Bob Jenkins' SpookyHash V2, 128-bit variant,
// seeded with an arbitrary 16-byte value. This port deliberately omits
// SpookyV2's short-message fast path (ShortHash): every input, regardless
// of length, goes through the same long-message mix-and-fold, matching
// the original project's own "short hash disabled" derivative rather than
// upstream SpookyV2 proper, so that two implementations never need to
// agree on the 192-byte crossover point.
func SpookyHash128(data []byte, seed [16]byte) [16]byte {
	h9 := binary.LittleEndian.Uint64(seed[0:8])
	h10 := binary.LittleEndian.Uint64(seed[8:16])

	h0, h3, h6 := h9, h9, h9
	h1, h4, h7 := h10, h10, h10
	h2, h5, h8, h11 := uint64(spookyConst), uint64(spookyConst), uint64(spookyConst), uint64(spookyConst)

	length := len(data)
	nblocks := length / spookyBlockSize

	var buf [spookyNumVars]uint64
	for i := 0; i < nblocks; i++ {
		base := i * spookyBlockSize
		for j := 0; j < spookyNumVars; j++ {
			buf[j] = binary.LittleEndian.Uint64(data[base+j*8:])
		}
		h0, h1, h2, h3, h4, h5, h6, h7, h8, h9, h10, h11 =
			spookyMix(buf, h0, h1, h2, h3, h4, h5, h6, h7, h8, h9, h10, h11)
	}

	var tailBuf [spookyBlockSize]byte
	remainder := length - nblocks*spookyBlockSize
	copy(tailBuf[:], data[nblocks*spookyBlockSize:])
	tailBuf[spookyBlockSize-1] = byte(remainder)
	for j := 0; j < spookyNumVars; j++ {
		buf[j] = binary.LittleEndian.Uint64(tailBuf[j*8:])
	}

	h0, h1, h2, h3, h4, h5, h6, h7, h8, h9, h10, h11 =
		spookyEnd(buf, h0, h1, h2, h3, h4, h5, h6, h7, h8, h9, h10, h11)

	var out [16]byte
	binary.LittleEndian.PutUint64(out[0:8], h0)
	binary.LittleEndian.PutUint64(out[8:16], h1)
	return out
}

func rotl64(x uint64, r uint) uint64 {
	return (x << r) | (x >> (64 - r))
}

func spookyMix(data [spookyNumVars]uint64, s0, s1, s2, s3, s4, s5, s6, s7, s8, s9, s10, s11 uint64) (uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64) {
	s0 += data[0]
	s2 ^= s10
	s11 ^= s0
	s0 = rotl64(s0, 11)
	s11 += s1

	s1 += data[1]
	s3 ^= s11
	s0 ^= s1
	s1 = rotl64(s1, 32)
	s0 += s2

	s2 += data[2]
	s4 ^= s0
	s1 ^= s2
	s2 = rotl64(s2, 43)
	s1 += s3

	s3 += data[3]
	s5 ^= s1
	s2 ^= s3
	s3 = rotl64(s3, 31)
	s2 += s4

	s4 += data[4]
	s6 ^= s2
	s3 ^= s4
	s4 = rotl64(s4, 17)
	s3 += s5

	s5 += data[5]
	s7 ^= s3
	s4 ^= s5
	s5 = rotl64(s5, 28)
	s4 += s6

	s6 += data[6]
	s8 ^= s4
	s5 ^= s6
	s6 = rotl64(s6, 39)
	s5 += s7

	s7 += data[7]
	s9 ^= s5
	s6 ^= s7
	s7 = rotl64(s7, 57)
	s6 += s8

	s8 += data[8]
	s10 ^= s6
	s7 ^= s8
	s8 = rotl64(s8, 55)
	s7 += s9

	s9 += data[9]
	s11 ^= s7
	s8 ^= s9
	s9 = rotl64(s9, 54)
	s8 += s10

	s10 += data[10]
	s0 ^= s8
	s9 ^= s10
	s10 = rotl64(s10, 22)
	s9 += s11

	s11 += data[11]
	s1 ^= s9
	s10 ^= s11
	s11 = rotl64(s11, 46)
	s10 += s0

	return s0, s1, s2, s3, s4, s5, s6, s7, s8, s9, s10, s11
}

func spookyEndPartial(h0, h1, h2, h3, h4, h5, h6, h7, h8, h9, h10, h11 uint64) (uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64) {
	h11 += h1
	h2 ^= h11
	h1 = rotl64(h1, 44)

	h0 += h2
	h3 ^= h0
	h2 = rotl64(h2, 15)

	h1 += h3
	h4 ^= h1
	h3 = rotl64(h3, 34)

	h2 += h4
	h5 ^= h2
	h4 = rotl64(h4, 21)

	h3 += h5
	h6 ^= h3
	h5 = rotl64(h5, 38)

	h4 += h6
	h7 ^= h4
	h6 = rotl64(h6, 33)

	h5 += h7
	h8 ^= h5
	h7 = rotl64(h7, 10)

	h6 += h8
	h9 ^= h6
	h8 = rotl64(h8, 13)

	h7 += h9
	h10 ^= h7
	h9 = rotl64(h9, 38)

	h8 += h10
	h11 ^= h8
	h10 = rotl64(h10, 53)

	h9 += h11
	h0 ^= h9
	h11 = rotl64(h11, 42)

	h10 += h0
	h1 ^= h10
	h0 = rotl64(h0, 54)

	return h0, h1, h2, h3, h4, h5, h6, h7, h8, h9, h10, h11
}

func spookyEnd(data [spookyNumVars]uint64, h0, h1, h2, h3, h4, h5, h6, h7, h8, h9, h10, h11 uint64) (uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64) {
	h0 += data[0]
	h1 += data[1]
	h2 += data[2]
	h3 += data[3]
	h4 += data[4]
	h5 += data[5]
	h6 += data[6]
	h7 += data[7]
	h8 += data[8]
	h9 += data[9]
	h10 += data[10]
	h11 += data[11]
	h0, h1, h2, h3, h4, h5, h6, h7, h8, h9, h10, h11 = spookyEndPartial(h0, h1, h2, h3, h4, h5, h6, h7, h8, h9, h10, h11)
	h0, h1, h2, h3, h4, h5, h6, h7, h8, h9, h10, h11 = spookyEndPartial(h0, h1, h2, h3, h4, h5, h6, h7, h8, h9, h10, h11)
	h0, h1, h2, h3, h4, h5, h6, h7, h8, h9, h10, h11 = spookyEndPartial(h0, h1, h2, h3, h4, h5, h6, h7, h8, h9, h10, h11)
	return h0, h1, h2, h3, h4, h5, h6, h7, h8, h9, h10, h11
}
