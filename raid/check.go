package raid

import (
	"fmt"

	"github.com/snapraid-go/snapraid/gf256"
)

// Check validates that the failed positions listed in ir (sorted, values
// in [0, nd+np), data positions before parity positions as in Rec/raid_rec)
// are fully explained by the remaining valid parity: it recomputes the
// parity contribution of every disk not in ir and confirms every parity
// not in ir nets to zero once the (reconstructed) failed data is summed
// back in. It requires strictly more valid parities than failed data
// blocks, since one extra parity is needed purely to validate.
//
// This is the verification half of repair_step's "first matching
// combination wins" search in spec.md #4.F step 5, ported from
// raid_check/raid_validate in the original source.
func (e *Engine) Check(ir []int, nd, np, size int, v [][]byte) (bool, error) {
	if !isSortedDistinct(ir) {
		return false, fmt.Errorf("raid: ir indexes must be sorted and distinct")
	}

	var id, failedParity []int
	for _, x := range ir {
		if x < nd {
			id = append(id, x)
		} else {
			failedParity = append(failedParity, x-nd)
		}
	}

	var validParity []int
	fi := 0
	for p := 0; p < np; p++ {
		if fi < len(failedParity) && failedParity[fi] == p {
			fi++
			continue
		}
		validParity = append(validParity, p)
	}

	if len(id) >= len(validParity) {
		return false, fmt.Errorf("raid: need more valid parity (%d) than failed data (%d) to validate", len(validParity), len(id))
	}

	return e.validate(id, validParity, nd, size, v)
}

// validate implements raid_validate: nr failed data columns (id),
// explained using nv >= nr+1 valid parity columns (ip). No buffers are
// modified.
func (e *Engine) validate(id, ip []int, nd, size int, v [][]byte) (bool, error) {
	nr := len(id)
	nv := len(ip)

	g := gf256.NewMatrix(nr, nr)
	for j := 0; j < nr; j++ {
		for k := 0; k < nr; k++ {
			g.Set(j, k, e.gen.A(ip[j], id[k]))
		}
	}
	var inv *gf256.Matrix
	if nr > 0 {
		var err error
		inv, err = g.Invert()
		if err != nil {
			return false, fmt.Errorf("raid: generator submatrix unexpectedly singular: %w", err)
		}
	}

	missing := make(map[int]bool, nr)
	for _, d := range id {
		missing[d] = true
	}

	p := make([][]byte, nv)
	for j := range p {
		p[j] = append([]byte(nil), v[nd+ip[j]]...)
	}

	for d := 0; d < nd; d++ {
		if missing[d] {
			continue
		}
		data := v[d]
		for l := 0; l < nv; l++ {
			t := gf256.Table(e.gen.A(ip[l], d))
			pl := p[l]
			for i := 0; i < size; i++ {
				pl[i] ^= t[data[i]]
			}
		}
	}

	if nr == 0 {
		for l := 0; l < nv; l++ {
			for i := 0; i < size; i++ {
				if p[l][i] != 0 {
					return false, nil
				}
			}
		}
		return true, nil
	}

	recovered := make([][]byte, nr)
	for j := range recovered {
		recovered[j] = make([]byte, size)
	}
	for i := 0; i < size; i++ {
		for j := 0; j < nr; j++ {
			var b byte
			for k := 0; k < nr; k++ {
				b ^= gf256.Mul(inv.At(j, k), p[k][i])
			}
			recovered[j][i] = b
		}
	}
	for j, d := range id {
		for l := nr; l < nv; l++ {
			t := gf256.Table(e.gen.A(ip[l], d))
			pl := p[l]
			rj := recovered[j]
			for i := 0; i < size; i++ {
				pl[i] ^= t[rj[i]]
			}
		}
	}
	for l := nr; l < nv; l++ {
		for i := 0; i < size; i++ {
			if p[l][i] != 0 {
				return false, nil
			}
		}
	}
	return true, nil
}

// Scan searches for the minimum number of failed positions (data and/or
// parity, drawn from the full nd+np column space) that explains the
// current contents of v, trying r=0,1,... up to np-1 failures. It returns
// the failed positions found, or (nil, false) if even np-1 failures
// cannot explain it (at which point the caller needs external evidence --
// hashes -- to do better, see checkfix.Engine). This supplements
// spec.md #4.F with the standalone raid_scan behavior from
// original_source/raid/check.c, useful for an audit pass that wants to
// know how many disks disagree with parity without attempting a write.
func (e *Engine) Scan(nd, np, size int, v [][]byte) ([]int, bool, error) {
	if np > 0 {
		ok, err := e.Check(nil, nd, np, size, v)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return nil, true, nil
		}
	}
	for r := 1; r < np; r++ {
		it := NewCombination(r, nd+np)
		for {
			ir := it.Values()
			ok, err := e.Check(ir, nd, np, size, v)
			if err != nil {
				return nil, false, err
			}
			if ok {
				found := append([]int(nil), ir...)
				return found, true, nil
			}
			if !it.Next() {
				break
			}
		}
	}
	return nil, false, nil
}
