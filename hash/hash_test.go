package hash

import (
	"bytes"
	"testing"
)

func TestMurmur3Deterministic(t *testing.T) {
	seed := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	data := bytes.Repeat([]byte("snapraid"), 17)
	a := MurmurHash3_128(data, seed)
	b := MurmurHash3_128(data, seed)
	if a != b {
		t.Fatalf("MurmurHash3_128 not deterministic: %x != %x", a, b)
	}
}

func TestMurmur3SeedSensitivity(t *testing.T) {
	data := []byte("a block of data")
	s1 := [16]byte{}
	s2 := [16]byte{1}
	if MurmurHash3_128(data, s1) == MurmurHash3_128(data, s2) {
		t.Fatalf("different seeds produced identical digests")
	}
}

func TestMurmur3LengthSensitivity(t *testing.T) {
	seed := [16]byte{}
	for n := 0; n < 200; n++ {
		data := bytes.Repeat([]byte{0x42}, n)
		d1 := MurmurHash3_128(data, seed)
		data2 := bytes.Repeat([]byte{0x42}, n+1)
		d2 := MurmurHash3_128(data2, seed)
		if d1 == d2 {
			t.Fatalf("length %d and %d collided", n, n+1)
		}
	}
}

func TestMurmur3EmptyInput(t *testing.T) {
	seed := [16]byte{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}
	d := MurmurHash3_128(nil, seed)
	var zero [16]byte
	if d == zero {
		t.Fatalf("empty input hashed to all zero digest")
	}
}

func TestSpooky2Deterministic(t *testing.T) {
	seed := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	data := bytes.Repeat([]byte("spookyhash"), 25)
	a := SpookyHash128(data, seed)
	b := SpookyHash128(data, seed)
	if a != b {
		t.Fatalf("SpookyHash128 not deterministic")
	}
}

func TestSpooky2CrossesBlockBoundary(t *testing.T) {
	seed := [16]byte{}
	// spookyBlockSize is 96 bytes; exercise lengths straddling 0, 1 and 2
	// full blocks so both the body loop and the tail buffer run.
	for _, n := range []int{0, 1, 95, 96, 97, 191, 192, 193, 500} {
		data := bytes.Repeat([]byte{0x7a}, n)
		d := SpookyHash128(data, seed)
		_ = d
	}
}

func TestSpooky2LengthSensitivity(t *testing.T) {
	seed := [16]byte{}
	for n := 0; n < 300; n++ {
		data := bytes.Repeat([]byte{0x11}, n)
		d1 := SpookyHash128(data, seed)
		data2 := bytes.Repeat([]byte{0x11}, n+1)
		d2 := SpookyHash128(data2, seed)
		if d1 == d2 {
			t.Fatalf("length %d and %d collided", n, n+1)
		}
	}
}

func TestMurmur3AndSpooky2Disagree(t *testing.T) {
	seed := [16]byte{}
	data := []byte("the quick brown fox jumps over the lazy dog, repeated enough to cross 16 bytes")
	m := MurmurHash3_128(data, seed)
	s := SpookyHash128(data, seed)
	if m == s {
		t.Fatalf("murmur3 and spooky2 produced identical digests for the same input")
	}
}

func TestFunctionSum(t *testing.T) {
	seed := [16]byte{1}
	data := []byte("block contents")
	mu, err := Sum(FunctionMurmur3, seed, data)
	if err != nil {
		t.Fatalf("Sum murmur3: %v", err)
	}
	if Digest(MurmurHash3_128(data, seed)) != mu {
		t.Fatalf("Sum(murmur3) mismatch")
	}
	sp, err := Sum(FunctionSpooky2, seed, data)
	if err != nil {
		t.Fatalf("Sum spooky2: %v", err)
	}
	if Digest(SpookyHash128(data, seed)) != sp {
		t.Fatalf("Sum(spooky2) mismatch")
	}
	if _, err := Sum(Function(0xFF), seed, data); err == nil {
		t.Fatalf("expected error for unknown function")
	}
}

func TestFunctionValidAndString(t *testing.T) {
	if !FunctionMurmur3.Valid() || !FunctionSpooky2.Valid() {
		t.Fatalf("known functions reported invalid")
	}
	if Function(0).Valid() {
		t.Fatalf("zero function reported valid")
	}
	if FunctionMurmur3.String() != "murmur3" || FunctionSpooky2.String() != "spooky2" {
		t.Fatalf("unexpected String() output")
	}
}

func TestCRC32CMatchesKnownValue(t *testing.T) {
	// "123456789" is the standard CRC32C check string; its Castagnoli
	// CRC is the well-known 0xE3069283.
	if got := CRC32C([]byte("123456789")); got != 0xE3069283 {
		t.Fatalf("CRC32C(\"123456789\") = %#x, want 0xe3069283", got)
	}
}

func TestCRC32CUpdateMatchesWholeBuffer(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	whole := CRC32C(data)
	var incremental uint32
	for i := 0; i < len(data); i += 7 {
		end := i + 7
		if end > len(data) {
			end = len(data)
		}
		incremental = CRC32CUpdate(incremental, data[i:end])
	}
	if incremental != whole {
		t.Fatalf("incremental CRC32C = %#x, whole-buffer = %#x", incremental, whole)
	}
}
