package checkfix

import (
	"sort"

	"github.com/snapraid-go/snapraid/disk"
	"github.com/snapraid-go/snapraid/hash"
	"github.com/snapraid-go/snapraid/logging"
	"github.com/snapraid-go/snapraid/raid"
)

// repairOutcome is what repairStep/strategy{1,2} produce: whether the
// stripe could be fully explained, and which parity levels were used to
// do it. applyFix receives usedParity but does not consult it; its
// parity-rewrite decision is made by parityFullyValid.
type repairOutcome struct {
	ok         bool
	usedParity []int
}

// strategy1 implements spec.md #4.F step 3: the post-sync assumption.
// Only is_bad blocks need reconstruction; CHG/REP/Deleted positions are
// trusted as already reflecting current parity.
func (e *Engine) strategy1(sd *stripeData) (bool, []int) {
	bad := sd.badPositions()
	if len(bad) == 0 {
		return true, nil
	}

	var remaining []int
	hashFn, seed := sd.hashFn, sd.hashSeed
	for _, pos := range bad {
		en := sd.entryForDisk(pos)
		if en == nil || en.blk == nil || !en.blk.IsReal() || e.Import == nil {
			remaining = append(remaining, pos)
			continue
		}
		hit, err := e.Import.Fetch(en.blk.Hash, hashFn, seed, en.buf)
		if err == nil && hit {
			en.isBad = false
			en.fixedVia = "import"
			e.Log.Record(logging.KindHashImport, sd.stripe, en.d.Name, subpathOf(en), nil)
			continue
		}
		remaining = append(remaining, pos)
	}
	if len(remaining) == 0 {
		return true, nil
	}

	out := e.repairStep(sd, remaining)
	if out.ok {
		for _, pos := range remaining {
			if en := sd.entryForDisk(pos); en != nil {
				en.fixedVia = "parity"
			}
		}
	}
	return out.ok, out.usedParity
}

// strategy2 implements spec.md #4.F step 4: the pre-sync assumption.
// Every unsynced position (CHG/REP/Deleted) must be re-derived from
// parity alongside any still-bad BLK position, because parity in this
// scenario encodes their pre-change content, not what is currently on
// disk.
func (e *Engine) strategy2(sd *stripeData) (bool, []int) {
	posSet := map[int]bool{}
	for _, pos := range sd.badPositions() {
		posSet[pos] = true
	}
	for _, en := range sd.entries {
		if en.blockIdx == -1 || en.blk == nil {
			posSet[en.diskIdx] = true // Deleted
			continue
		}
		if en.blk.State == disk.CHG || en.blk.State == disk.REP {
			posSet[en.diskIdx] = true
		}
	}

	for _, en := range sd.entries {
		if en.blk == nil {
			continue
		}
		switch en.blk.State {
		case disk.Deleted:
			en.isOutOfDate = true
			tryImport(e, sd, en)
		case disk.CHG:
			en.isOutOfDate = true
			if en.blk.IsZero() {
				for i := range en.buf {
					en.buf[i] = 0
				}
			}
			tryImport(e, sd, en)
		case disk.REP:
			en.isOutOfDate = true
		}
	}

	if len(posSet) == 0 {
		return true, nil
	}
	positions := make([]int, 0, len(posSet))
	for p := range posSet {
		positions = append(positions, p)
	}
	sort.Ints(positions)

	out := e.repairStep(sd, positions)
	if out.ok {
		for _, pos := range positions {
			if en := sd.entryForDisk(pos); en != nil && en.fixedVia == "" {
				en.fixedVia = "parity"
			}
		}
	}
	return out.ok, out.usedParity
}

func tryImport(e *Engine, sd *stripeData, en *failedEntry) {
	if e.Import == nil || en.blk == nil || !en.blk.IsReal() {
		return
	}
	hit, err := e.Import.Fetch(en.blk.Hash, sd.hashFn, sd.hashSeed, en.buf)
	if err == nil && hit {
		en.isBad = false
		en.fixedVia = "import"
		e.Log.Record(logging.KindHashImport, sd.stripe, en.d.Name, subpathOf(en), nil)
	}
}

func subpathOf(en *failedEntry) string {
	if en.f != nil {
		return en.f.Subpath
	}
	return ""
}

// repairStep implements spec.md #4.F step 5: repair_step(failed_count,
// parities_available). It tries every combination of usable parity
// columns, preferring the hash-oracle verification path when any
// position in ir still carries a trustworthy hash, falling back to the
// sacrifice-one-parity path otherwise.
func (e *Engine) repairStep(sd *stripeData, ir []int) repairOutcome {
	sort.Ints(ir)
	k := len(ir)
	valid := sd.validParityLevels()
	n := len(valid)

	hasOracle := false
	for _, pos := range ir {
		en := sd.entryForDisk(pos)
		if en != nil && en.blk != nil && !en.isOutOfDate && en.blk.HasUsableHash() {
			hasOracle = true
			break
		}
	}

	if hasOracle && k <= n {
		it := raid.NewCombination(k, n)
		for {
			ip := make([]int, k)
			for i, vi := range it.Values() {
				ip[i] = valid[vi]
			}
			if e.tryReconstruct(sd, ir, ip) {
				return repairOutcome{ok: true, usedParity: ip}
			}
			if !it.Next() {
				break
			}
		}
		return repairOutcome{ok: false}
	}

	if k < n {
		it := raid.NewCombination(k+1, n)
		for {
			combo := append([]int(nil), it.Values()...)
			for skip := 0; skip < len(combo); skip++ {
				ip := make([]int, 0, k)
				sacrifice := valid[combo[skip]]
				for i, vi := range combo {
					if i == skip {
						continue
					}
					ip = append(ip, valid[vi])
				}
				if e.tryReconstructSacrifice(sd, ir, ip, sacrifice) {
					used := append(append([]int(nil), ip...), sacrifice)
					sort.Ints(used)
					return repairOutcome{ok: true, usedParity: used}
				}
				e.Log.Record(logging.KindParityError, sd.stripe, "", "", map[string]interface{}{"sacrifice": sacrifice})
			}
			if !it.Next() {
				break
			}
		}
		return repairOutcome{ok: false}
	}

	return repairOutcome{ok: false}
}

// tryReconstruct recovers the positions in ir using the parity levels in
// ip, then verifies every position that still carries a trustworthy hash
// by recomputing it from the recovered bytes -- "first matching
// combination wins" (spec.md #4.F step 5a).
func (e *Engine) tryReconstruct(sd *stripeData, ir, ip []int) bool {
	v := sd.buildV()
	if err := e.RAID.Rec(ir, ip, sd.nd, sd.np, int(sd.blockSize), v); err != nil {
		return false
	}
	for _, pos := range ir {
		en := sd.entryForDisk(pos)
		if en == nil || en.blk == nil || en.isOutOfDate || !en.blk.HasUsableHash() {
			continue
		}
		got, err := hash.Sum(sd.hashFn, sd.hashSeed, v[pos])
		if err != nil || got != en.blk.Hash {
			return false
		}
	}
	return true
}

// tryReconstructSacrifice recovers ir using ip (|ip| == |ir|, no hash
// oracle available), then recomputes the single sacrificed parity level
// from the now-complete data set and accepts only if it matches the
// parity actually stored on disk (spec.md #4.F step 5b).
func (e *Engine) tryReconstructSacrifice(sd *stripeData, ir, ip []int, sacrifice int) bool {
	v := sd.buildV()
	if err := e.RAID.Rec(ir, ip, sd.nd, sd.np, int(sd.blockSize), v); err != nil {
		return false
	}
	check := make([][]byte, sd.nd+sd.np)
	copy(check, v[:sd.nd])
	for p := 0; p < sd.np; p++ {
		check[sd.nd+p] = make([]byte, sd.blockSize)
	}
	if err := e.RAID.Gen(sd.nd, sd.np, int(sd.blockSize), check); err != nil {
		return false
	}
	stored := sd.parity[sacrifice]
	if stored == nil {
		return false
	}
	recomputed := check[sd.nd+sacrifice]
	for i := range recomputed {
		if recomputed[i] != stored[i] {
			return false
		}
	}
	return true
}

// buildV assembles the nd+np buffer slice raid.Engine.Rec expects: the
// live data buffers followed by the parity buffers (nil where unusable,
// which is fine since Rec only dereferences the parity slots named in
// its ip argument).
func (sd *stripeData) buildV() [][]byte {
	v := make([][]byte, sd.nd+sd.np)
	copy(v, sd.data)
	copy(v[sd.nd:], sd.parity)
	return v
}
