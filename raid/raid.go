// Package raid implements the erasure-coding kernel: parity generation
// and data recovery over GF(2^8) for up to gf256.MaxParity simultaneous
// parity disks, built on the generator matrices in package gf256.
package raid

import (
	"fmt"

	"github.com/snapraid-go/snapraid/gf256"
)

// Mode selects which generator matrix construction backs an Engine.
type Mode int

const (
	// ModeCauchy selects the Extended Cauchy matrix, valid for all
	// 1-6 parity levels. This is the default and the only mode that
	// should be used for anything beyond triple parity.
	ModeCauchy Mode = iota
	// ModeVandermonde selects the historical powers-of-2/2^-1
	// construction, valid only for up to 3 parities.
	ModeVandermonde
)

// Engine computes and recovers parity for a fixed number of data disks
// and parity levels. It holds no buffers of its own: Gen and Rec operate
// directly on caller-supplied block slices, matching the "buffers
// allocated once per operation and reused for every stripe" resource
// model in spec.md #5.
type Engine struct {
	mode Mode
	gen  *gf256.Generator
}

// NewEngine returns an Engine for the given mode.
func NewEngine(mode Mode) *Engine {
	g := gf256.Cauchy()
	if mode == ModeVandermonde {
		g = gf256.Vandermonde()
	}
	return &Engine{mode: mode, gen: g}
}

func (e *Engine) checkParityCount(np int) error {
	if np < 1 || np > gf256.MaxParity {
		return fmt.Errorf("raid: parity count %d out of range [1,%d]", np, gf256.MaxParity)
	}
	if e.mode == ModeVandermonde && np > 3 {
		return fmt.Errorf("raid: vandermonde mode only supports up to 3 parities, got %d", np)
	}
	return nil
}

// Gen computes np parity blocks from nd data blocks. v must have exactly
// nd+np elements: v[0:nd] are the data columns (read-only), v[nd:nd+np]
// are the parity columns (written). size must be a positive multiple of
// 64 and every block in v must have exactly that length. Parities are
// written in increasing index order 0..np-1, so callers may safely alias
// an unused parity's output buffer to an already-written one. Rec does
// not alias: it gives every unused parity its own scratch buffer.
func (e *Engine) Gen(nd, np, size int, v [][]byte) error {
	if err := e.checkParityCount(np); err != nil {
		return err
	}
	if nd < 1 || nd > gf256.MaxDisks {
		return fmt.Errorf("raid: data disk count %d out of range [1,%d]", nd, gf256.MaxDisks)
	}
	if len(v) != nd+np {
		return fmt.Errorf("raid: expected %d buffers, got %d", nd+np, len(v))
	}
	if size <= 0 || size%64 != 0 {
		return fmt.Errorf("raid: size %d must be a positive multiple of 64", size)
	}
	for i, b := range v {
		if len(b) != size {
			return fmt.Errorf("raid: buffer %d has length %d, want %d", i, len(b), size)
		}
	}

	for p := 0; p < np; p++ {
		e.genRow(p, nd, size, v)
	}
	return nil
}

// genRow computes parity row p into v[nd+p], from the nd data columns in
// v[0:nd]. Row 0 is a plain XOR and row 1 uses the doubling identity --
// the "parallel power-of-2 path" named in spec.md #4.B -- both
// mathematically equivalent to, but faster than, the generic table-driven
// path used for rows 2-5.
func (e *Engine) genRow(p, nd, size int, v [][]byte) {
	out := v[nd+p]
	switch p {
	case 0:
		copy(out, v[nd-1])
		for d := nd - 2; d >= 0; d-- {
			xorInto(out, v[d])
		}
	case 1:
		for i := range out {
			out[i] = 0
		}
		for d := nd - 1; d >= 0; d-- {
			gf256.DoubleBlock(out)
			xorInto(out, v[d])
		}
	default:
		row := e.gen.Row(p)
		for i := range out {
			out[i] = 0
		}
		for d := 0; d < nd; d++ {
			t := gf256.Table(row[d])
			data := v[d]
			for i := 0; i < size; i++ {
				out[i] ^= t[data[i]]
			}
		}
	}
}

func xorInto(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}

// Rec reconstructs the nr data columns listed in sorted id[], using the
// nr parities listed in sorted ip[] (0-indexed parity levels, not
// absolute positions in v). v must have nd+np elements exactly as in Gen;
// only the parity columns named in ip are read, and any data column not
// named in id is assumed valid and is read as input.
//
// The recovered bytes are written back into v[id[k]] for each k.
func (e *Engine) Rec(id, ip []int, nd, np, size int, v [][]byte) error {
	nr := len(id)
	if nr == 0 {
		return nil
	}
	if len(ip) != nr {
		return fmt.Errorf("raid: id/ip length mismatch: %d vs %d", len(id), len(ip))
	}
	if err := e.checkParityCount(np); err != nil {
		return err
	}
	if nr > np {
		return fmt.Errorf("raid: cannot recover %d blocks with only %d parities", nr, np)
	}
	if !isSortedDistinct(id) {
		return fmt.Errorf("raid: id indexes must be sorted and distinct")
	}
	if !isSortedDistinct(ip) {
		return fmt.Errorf("raid: ip indexes must be sorted and distinct")
	}
	for _, d := range id {
		if d < 0 || d >= nd {
			return fmt.Errorf("raid: id index %d out of range [0,%d)", d, nd)
		}
	}
	for _, p := range ip {
		if p < 0 || p >= np {
			return fmt.Errorf("raid: ip index %d out of range [0,%d)", p, np)
		}
	}

	// Build G[j,k] = A[ip[j], id[k]] and invert it -- every square
	// submatrix of the Cauchy generator is nonsingular by construction,
	// see gf256.TestCauchySubmatrixNonsingular.
	g := gf256.NewMatrix(nr, nr)
	for j, p := range ip {
		for k, d := range id {
			g.Set(j, k, e.gen.A(p, d))
		}
	}
	inv, err := g.Invert()
	if err != nil {
		return fmt.Errorf("raid: generator submatrix unexpectedly singular: %w", err)
	}

	// Recompute each used parity over the present data (zeroing the
	// missing columns), then XOR against the real stored parity to
	// obtain delta[j] -- "Pd = Pa XOR P" in spec.md #4.B step 2.
	missing := make(map[int]bool, nr)
	for _, d := range id {
		missing[d] = true
	}
	zero := make([]byte, size)
	work := make([][]byte, nd+np)
	copy(work, v[:nd])
	for _, d := range id {
		work[d] = zero
	}

	delta := make([][]byte, nr)
	scratch := make([][]byte, np-nr)
	for i := range scratch {
		scratch[i] = make([]byte, size)
	}
	si := 0
	for p := 0; p < np; p++ {
		if idx := indexOf(ip, p); idx >= 0 {
			delta[idx] = make([]byte, size)
			work[nd+p] = delta[idx]
		} else {
			work[nd+p] = scratch[si]
			si++
		}
	}
	for p := 0; p <= maxInt(ip); p++ {
		e.genRow(p, nd, size, work)
	}
	for j, p := range ip {
		xorInto(delta[j], v[nd+p])
	}
	_ = missing

	// D_id[k] = XOR_j V[k,j] * delta[j]
	for k, d := range id {
		out := v[d]
		for i := range out {
			out[i] = 0
		}
		for j := range ip {
			t := gf256.Table(inv.At(k, j))
			dj := delta[j]
			for i := 0; i < size; i++ {
				out[i] ^= t[dj[i]]
			}
		}
	}
	return nil
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func maxInt(s []int) int {
	m := s[0]
	for _, v := range s[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func isSortedDistinct(s []int) bool {
	for i := 1; i < len(s); i++ {
		if s[i] <= s[i-1] {
			return false
		}
	}
	return true
}
