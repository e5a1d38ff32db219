package gf256

// Generator is a 6-row coefficient matrix A[parity][disk] used by the
// RAID kernels: parity row p for disk column d contributes A[p][d]*D_d
// to parity p. Row 0 is always all-1s (a plain XOR) and row 1 is always
// 2^d (the doubling identity), regardless of which construction produced
// the remaining rows.
type Generator struct {
	rows [MaxParity][MaxDisks]byte
}

// A returns the coefficient for parity row p (0-indexed) and data disk d.
func (g *Generator) A(p, d int) byte {
	return g.rows[p][d]
}

// Row returns the full coefficient row for parity p, shared with callers
// that want to slice it for a Submatrix build without copying.
func (g *Generator) Row(p int) []byte {
	return g.rows[p][:]
}

// cauchyGenerator and vandermondeGenerator are built once at package init
// (by the init in gf256.go, after the multiplication tables they are
// computed from) and reused for the lifetime of the process; raid.Engine
// picks one of the two via raid.Mode, mirroring raid_mode()'s generator
// swap in the original implementation.
var cauchyGenerator Generator
var vandermondeGenerator Generator

// Cauchy returns the Extended Cauchy generator matrix: row 0 all-1s, row 1
// the powers-of-2 Vandermonde row, and rows p=2..5 built from a genuine
// Cauchy matrix 1/(2^-d + 2^(p-1)) then column-0-normalized. Every square
// submatrix of this matrix is provably nonsingular, which is what lets
// raid.Rec recover from any combination of up to MaxParity failures.
func Cauchy() *Generator {
	return &cauchyGenerator
}

// Vandermonde returns the pure powers-of-2/2^-1 matrix used historically
// for triple parity before the Cauchy extension. It is not safe beyond
// 3 parities (some submatrices become singular) but is kept available,
// selectable via raid.ModeVandermonde, because the original source
// carries both and a port should not silently drop a working mode.
func Vandermonde() *Generator {
	return &vandermondeGenerator
}

// buildCauchy implements the construction from mktables.c: row 0 is all
// 1s; row 1 is 2^d; rows 2..5 are 1/(2^-d + 2^(row-1)) for the Cauchy
// property, then each row is scaled so its first column is 1.
func buildCauchy(g *Generator) {
	const n = MaxDisks

	for d := 0; d < n; d++ {
		g.rows[0][d] = 1
	}

	invX := byte(1)
	for d := 0; d < n; d++ {
		g.rows[1][d] = invX
		invX = Mul(2, invX)
	}

	y := byte(2)
	for row := 0; row < MaxParity-2; row++ {
		invX := byte(1)
		for d := 0; d < n; d++ {
			x := Inv(invX)
			g.rows[row+2][d] = Inv(y ^ x)
			invX = Mul(2, invX)
		}
		y = Mul(2, y)
	}

	for row := 0; row < MaxParity-2; row++ {
		f := Inv(g.rows[row+2][0])
		t := Table(f)
		for d := 0; d < n; d++ {
			g.rows[row+2][d] = t[g.rows[row+2][d]]
		}
	}
}

// buildVandermonde implements the triple-parity power-coefficient scheme
// P,Q,R = sum(1), sum(2^d), sum((2^-1)^d): the approach evaluated before
// the Cauchy matrix and still useful when only up to 3 parities are
// needed and SIMD byte-shuffle paths are unavailable.
func buildVandermonde(g *Generator) {
	const n = MaxDisks

	v := byte(1)
	for d := 0; d < n; d++ {
		g.rows[0][d] = v
	}

	v = 1
	for d := 0; d < n; d++ {
		g.rows[1][d] = v
		v = Mul(2, v)
	}

	v = 1
	invOfTwo := Inv(2)
	for d := 0; d < n; d++ {
		g.rows[2][d] = v
		v = Mul(invOfTwo, v)
	}
	// rows 3-5 are intentionally left zero: the Vandermonde path is only
	// ever selected for up to 3 parities (a ModeVandermonde raid.Engine
	// returns an error above that, see raid/raid.go).
}
