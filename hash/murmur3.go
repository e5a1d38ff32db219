package hash

import "encoding/binary"

// MurmurHash3_128 computes the 128-bit x86 variant of MurmurHash3, seeded
// with an arbitrary 16-byte value rather than the usual uint32 seed. This
// lets every block carry an independently-chosen hash key (spec.md #4.C),
// which in turn lets a rehash pass migrate blocks one at a time without
// global coordination.
//
// Ported byte-for-byte from MurmurHash3_x86_128 in the original source,
// itself Austin Appleby's public-domain reference implementation.
func MurmurHash3_128(data []byte, seed [16]byte) [16]byte {
	const (
		c1 uint32 = 0x239b961b
		c2 uint32 = 0xab0e9789
		c3 uint32 = 0x38b34ae5
		c4 uint32 = 0xa1e38b93
	)

	h1 := binary.LittleEndian.Uint32(seed[0:4])
	h2 := binary.LittleEndian.Uint32(seed[4:8])
	h3 := binary.LittleEndian.Uint32(seed[8:12])
	h4 := binary.LittleEndian.Uint32(seed[12:16])

	length := len(data)
	nblocks := length / 16
	for i := 0; i < nblocks; i++ {
		base := i * 16
		k1 := binary.LittleEndian.Uint32(data[base:])
		k2 := binary.LittleEndian.Uint32(data[base+4:])
		k3 := binary.LittleEndian.Uint32(data[base+8:])
		k4 := binary.LittleEndian.Uint32(data[base+12:])

		k1 *= c1
		k1 = rotl32(k1, 15)
		k1 *= c2
		h1 ^= k1
		h1 = rotl32(h1, 19)
		h1 += h2
		h1 = h1*5 + 0x561ccd1b

		k2 *= c2
		k2 = rotl32(k2, 16)
		k2 *= c3
		h2 ^= k2
		h2 = rotl32(h2, 17)
		h2 += h3
		h2 = h2*5 + 0x0bcaa747

		k3 *= c3
		k3 = rotl32(k3, 17)
		k3 *= c4
		h3 ^= k3
		h3 = rotl32(h3, 15)
		h3 += h4
		h3 = h3*5 + 0x96cd1c35

		k4 *= c4
		k4 = rotl32(k4, 18)
		k4 *= c1
		h4 ^= k4
		h4 = rotl32(h4, 13)
		h4 += h1
		h4 = h4*5 + 0x32ac3b17
	}

	tail := data[nblocks*16:]
	var k1, k2, k3, k4 uint32
	switch len(tail) & 15 {
	case 15:
		k4 ^= uint32(tail[14]) << 16
		fallthrough
	case 14:
		k4 ^= uint32(tail[13]) << 8
		fallthrough
	case 13:
		k4 ^= uint32(tail[12])
		k4 *= c4
		k4 = rotl32(k4, 18)
		k4 *= c1
		h4 ^= k4
		fallthrough
	case 12:
		k3 ^= uint32(tail[11]) << 24
		fallthrough
	case 11:
		k3 ^= uint32(tail[10]) << 16
		fallthrough
	case 10:
		k3 ^= uint32(tail[9]) << 8
		fallthrough
	case 9:
		k3 ^= uint32(tail[8])
		k3 *= c3
		k3 = rotl32(k3, 17)
		k3 *= c4
		h3 ^= k3
		fallthrough
	case 8:
		k2 ^= uint32(tail[7]) << 24
		fallthrough
	case 7:
		k2 ^= uint32(tail[6]) << 16
		fallthrough
	case 6:
		k2 ^= uint32(tail[5]) << 8
		fallthrough
	case 5:
		k2 ^= uint32(tail[4])
		k2 *= c2
		k2 = rotl32(k2, 16)
		k2 *= c3
		h2 ^= k2
		fallthrough
	case 4:
		k1 ^= uint32(tail[3]) << 24
		fallthrough
	case 3:
		k1 ^= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k1 ^= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k1 ^= uint32(tail[0])
		k1 *= c1
		k1 = rotl32(k1, 15)
		k1 *= c2
		h1 ^= k1
	}

	l := uint32(length)
	h1 ^= l
	h2 ^= l
	h3 ^= l
	h4 ^= l

	h1 += h2 + h3 + h4
	h2 += h1
	h3 += h1
	h4 += h1

	h1 = fmix32(h1)
	h2 = fmix32(h2)
	h3 = fmix32(h3)
	h4 = fmix32(h4)

	h1 += h2 + h3 + h4
	h2 += h1
	h3 += h1
	h4 += h1

	var out [16]byte
	binary.LittleEndian.PutUint32(out[0:4], h1)
	binary.LittleEndian.PutUint32(out[4:8], h2)
	binary.LittleEndian.PutUint32(out[8:12], h3)
	binary.LittleEndian.PutUint32(out[12:16], h4)
	return out
}

func fmix32(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}

func rotl32(x uint32, r uint) uint32 {
	return (x << r) | (x >> (32 - r))
}
