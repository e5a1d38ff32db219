package content

import (
	"bufio"
	"bytes"
	"fmt"

	uuid "github.com/satori/go.uuid"
	"github.com/snapraid-go/snapraid/disk"
	"github.com/snapraid-go/snapraid/hash"
)

const (
	tagBlockSize    = 'z'
	tagBlockMax     = 'x'
	tagHash         = 'c'
	tagPrevHash     = 'C'
	tagMap          = 'M'
	tagMapLegacy    = 'm'
	tagParity       = 'P'
	tagFile         = 'f'
	tagRunBlk       = 'b'
	tagRunChg       = 'g'
	tagRunRep       = 'p'
	tagRunLegacyNew = 'n'
	tagSymlink      = 's'
	tagHardlink     = 'a'
	tagDir          = 'r'
	tagDeletedLog   = 'h'
	tagInfo         = 'i'
	tagTrailer      = 'N'

	deletedRunEntry = 'o'
	freeRunEntry    = 'O'
)

// Encode serializes s into the tagged record stream described by spec
// #4.E, ending with the 'N' trailer tag and its CRC32C footer. The CRC is
// computed over every byte written before the footer, seeded the same
// way the original format does: start at 0xFFFFFFFF, finalize with a
// final XOR of 0xFFFFFFFF (which hash.CRC32C already does internally).
func Encode(s *State) []byte {
	var buf []byte
	buf = append(buf, Magic2[:]...)

	buf = append(buf, tagBlockSize)
	buf = putUvarint(buf, uint64(s.BlockSize))

	buf = append(buf, tagBlockMax)
	buf = putUvarint(buf, uint64(s.BlockMax))

	buf = append(buf, tagHash)
	buf = append(buf, byte(s.Hash.Function))
	buf = putFixed16(buf, s.Hash.Seed)

	if s.PrevHash != nil {
		buf = append(buf, tagPrevHash)
		buf = append(buf, byte(s.PrevHash.Function))
		buf = putFixed16(buf, s.PrevHash.Seed)
	}

	for _, m := range s.Maps {
		buf = append(buf, tagMap)
		buf = putString(buf, m.Name)
		buf = putUvarint(buf, uint64(m.Slot))
		buf = putUvarint(buf, uint64(m.TotalBlocks))
		buf = putUvarint(buf, uint64(m.FreeBlocks))
		buf = putFixed16(buf, uuidBytes(m.UUID))
	}

	for _, p := range s.Parities {
		buf = append(buf, tagParity)
		buf = putUvarint(buf, uint64(p.Level))
		buf = putUvarint(buf, uint64(p.TotalBlocks))
		buf = putUvarint(buf, uint64(p.FreeBlocks))
		buf = putFixed16(buf, uuidBytes(p.UUID))
	}

	for idx, d := range s.Disks {
		for _, f := range d.Files {
			buf = encodeFile(buf, idx, f)
		}
		for _, l := range d.Links {
			buf = encodeLink(buf, idx, l)
		}
		for _, dir := range d.Dirs {
			buf = append(buf, tagDir)
			buf = putUvarint(buf, uint64(idx))
			buf = putString(buf, dir.Subpath)
		}
		buf = encodeDeletedLog(buf, idx, d)
	}

	buf = encodeInfo(buf, s.Info)

	buf = append(buf, tagTrailer)

	crc := hash.CRC32C(buf)
	buf = append(buf, byte(crc), byte(crc>>8), byte(crc>>16), byte(crc>>24))
	return buf
}

func uuidBytes(u uuid.UUID) [16]byte {
	var b [16]byte
	copy(b[:], u[:])
	return b
}

func encodeFile(buf []byte, mappingIdx int, f *disk.File) []byte {
	buf = append(buf, tagFile)
	buf = putUvarint(buf, uint64(mappingIdx))
	buf = putUvarint(buf, uint64(f.Size))
	buf = putUvarint(buf, uint64(f.MtimeSec))
	if f.MtimeNsec == disk.InvalidNsec {
		buf = putUvarint(buf, 0)
	} else {
		buf = putUvarint(buf, uint64(f.MtimeNsec)+1)
	}
	buf = putUvarint(buf, f.Inode)
	buf = putString(buf, f.Subpath)

	// Runs are grouped by contiguous global parity position and state:
	// start_pos is the block's actual par2block column, not its index
	// within this file, so the deleted-log and file runs share one
	// numbering scheme over the disk's column array.
	i := 0
	for i < len(f.Blocks) {
		j := i + 1
		state := f.Blocks[i].State
		for j < len(f.Blocks) &&
			f.Blocks[j].State == state &&
			f.Blocks[j].ParityPos == f.Blocks[j-1].ParityPos+1 {
			j++
		}
		tag, hasHash := runTagForState(state)
		buf = append(buf, tag)
		buf = putUvarint(buf, uint64(f.Blocks[i].ParityPos))
		buf = putUvarint(buf, uint64(j-i))
		if hasHash {
			for k := i; k < j; k++ {
				buf = putFixed16(buf, f.Blocks[k].Hash)
			}
		}
		i = j
	}
	return buf
}

func runTagForState(s disk.State) (tag byte, hasHash bool) {
	switch s {
	case disk.BLK:
		return tagRunBlk, true
	case disk.CHG:
		return tagRunChg, true
	case disk.REP:
		return tagRunRep, true
	default:
		return tagRunBlk, true
	}
}

func encodeLink(buf []byte, mappingIdx int, l *disk.Link) []byte {
	tag := byte(tagHardlink)
	if l.Type == disk.LinkSymlink || l.Type == disk.LinkSymdir || l.Type == disk.LinkJunction {
		tag = tagSymlink
	}
	buf = append(buf, tag)
	buf = putUvarint(buf, uint64(mappingIdx))
	buf = putString(buf, l.Subpath)
	buf = putString(buf, l.Target)
	return buf
}

// encodeDeletedLog writes the 'h' record: a per-disk ledger of runs
// covering the disk's full column range, each either a Deleted block
// (tag 'o', hash follows) or an unused/free slot (tag 'O', no hash).
// Positions owned by a live file are skipped over as implicit gaps.
func encodeDeletedLog(buf []byte, mappingIdx int, d *disk.Disk) []byte {
	blockmax := d.BlockMax()
	if blockmax == 0 {
		return buf
	}
	buf = append(buf, tagDeletedLog)
	buf = putUvarint(buf, uint64(mappingIdx))

	i := 0
	for i < blockmax {
		b := d.Par2BlockGet(i)
		owned := b != nil && b.File != nil
		if owned {
			i++
			continue
		}
		isDeleted := b != nil && b.State == disk.Deleted
		j := i + 1
		for j < blockmax {
			nb := d.Par2BlockGet(j)
			nbOwned := nb != nil && nb.File != nil
			if nbOwned {
				break
			}
			nbDeleted := nb != nil && nb.State == disk.Deleted
			if nbDeleted != isDeleted {
				break
			}
			j++
		}
		tag := byte(freeRunEntry)
		if isDeleted {
			tag = deletedRunEntry
		}
		buf = append(buf, tag)
		buf = putUvarint(buf, uint64(i))
		buf = putUvarint(buf, uint64(j-i))
		if isDeleted {
			for k := i; k < j; k++ {
				buf = putFixed16(buf, d.Par2BlockGet(k).Hash)
			}
		}
		i = j
	}
	return buf
}

// encodeInfo writes the 'i' record: an oldest timestamp followed by runs
// of (count, flags, time-delta-if-present) covering the whole array.
func encodeInfo(buf []byte, info []InfoWord) []byte {
	if len(info) == 0 {
		return buf
	}
	oldest := ^uint32(0)
	for _, w := range info {
		if w.Present && w.Time < oldest {
			oldest = w.Time
		}
	}
	if oldest == ^uint32(0) {
		oldest = 0
	}

	buf = append(buf, tagInfo)
	buf = putUvarint(buf, uint64(oldest))

	i := 0
	for i < len(info) {
		j := i + 1
		for j < len(info) && infoFlags(info[j]) == infoFlags(info[i]) && info[j].Time == info[i].Time {
			j++
		}
		flags := infoFlags(info[i])
		buf = putUvarint(buf, uint64(j-i))
		buf = append(buf, flags)
		if flags&1 != 0 {
			buf = putUvarint(buf, uint64(info[i].Time-oldest))
		}
		i = j
	}
	return buf
}

func infoFlags(w InfoWord) byte {
	var f byte
	if w.Present {
		f |= 1
	}
	if w.Bad {
		f |= 2
	}
	if w.Rehash {
		f |= 4
	}
	if w.JustSynced {
		f |= 8
	}
	return f
}

// Decode parses a record stream produced by Encode, verifying the CRC32C
// trailer before trusting any of it.
func Decode(data []byte) (*State, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("content: file too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:12], Magic2[:]) && !bytes.Equal(data[:12], Magic1[:]) {
		return nil, fmt.Errorf("content: bad magic %x", data[:12])
	}

	body := data[:len(data)-4]
	wantCRC := uint32(data[len(data)-4]) | uint32(data[len(data)-3])<<8 | uint32(data[len(data)-2])<<16 | uint32(data[len(data)-1])<<24
	if got := hash.CRC32C(body); got != wantCRC {
		return nil, fmt.Errorf("content: CRC32C mismatch at offset %d: got %#x, want %#x", len(body), got, wantCRC)
	}

	r := bufio.NewReader(bytes.NewReader(body[12:]))
	s := &State{}
	disksByIdx := map[int]*disk.Disk{}
	mapsOrder := []int{}
	var pendingFile *disk.File
	var pendingFileDiskIdx int

	// flushFile wires each decoded block into its disk's column array at
	// the ParityPos carried by its run record (set where each block is
	// appended, below), so file runs and the 'h' deleted-log share one
	// numbering scheme over the disk's column array.
	flushFile := func() {
		if pendingFile != nil {
			d := disksByIdx[pendingFileDiskIdx]
			d.AddFile(pendingFile)
			for i, b := range pendingFile.Blocks {
				b.File = pendingFile
				b.FileBlockIndex = i
				d.Par2BlockSet(b.ParityPos, b)
			}
			pendingFile = nil
		}
	}
	ensureDisk := func(idx int) *disk.Disk {
		if d, ok := disksByIdx[idx]; ok {
			return d
		}
		d := disk.New(fmt.Sprintf("disk%d", idx), "", 0)
		disksByIdx[idx] = d
		mapsOrder = append(mapsOrder, idx)
		return d
	}

	for {
		tag, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("content: unexpected end of record stream: %w", err)
		}
		if tag != tagRunBlk && tag != tagRunChg && tag != tagRunRep && tag != tagRunLegacyNew {
			flushFile()
		}
		switch tag {
		case tagBlockSize:
			v, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			s.BlockSize = uint32(v)
		case tagBlockMax:
			v, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			s.BlockMax = uint32(v)
			s.Info = make([]InfoWord, s.BlockMax)
		case tagHash, tagPrevHash:
			fn, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			seed, err := readFixed16(r)
			if err != nil {
				return nil, err
			}
			spec := HashSpec{Function: hash.Function(fn), Seed: seed}
			if tag == tagHash {
				s.Hash = spec
			} else {
				s.PrevHash = &spec
			}
		case tagMap:
			name, err := readString(r)
			if err != nil {
				return nil, err
			}
			slot, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			total, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			free, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			ub, err := readFixed16(r)
			if err != nil {
				return nil, err
			}
			u := parseUUID(ub)
			s.Maps = append(s.Maps, MapRecord{Name: name, Slot: int(slot), TotalBlocks: uint32(total), FreeBlocks: uint32(free), UUID: u})
			ensureDisk(len(s.Maps) - 1).Name = name
		case tagParity:
			level, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			total, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			free, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			ub, err := readFixed16(r)
			if err != nil {
				return nil, err
			}
			u := parseUUID(ub)
			s.Parities = append(s.Parities, ParityRecord{Level: int(level), TotalBlocks: uint32(total), FreeBlocks: uint32(free), UUID: u})
		case tagFile:
			idx, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			size, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			sec, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			nsecPlus, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			inode, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			sub, err := readString(r)
			if err != nil {
				return nil, err
			}
			nsec := int32(disk.InvalidNsec)
			if nsecPlus != 0 {
				nsec = int32(nsecPlus - 1)
			}
			ensureDisk(int(idx))
			pendingFile = &disk.File{Size: int64(size), MtimeSec: int64(sec), MtimeNsec: nsec, Inode: inode, Subpath: sub}
			pendingFileDiskIdx = int(idx)
		case tagRunBlk, tagRunChg, tagRunRep, tagRunLegacyNew:
			start, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			count, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			state := disk.BLK
			switch tag {
			case tagRunChg:
				state = disk.CHG
			case tagRunRep:
				state = disk.REP
			case tagRunLegacyNew:
				state = disk.CHG
			}
			for k := uint64(0); k < count; k++ {
				b := &disk.Block{State: state, ParityPos: int(start) + int(k)}
				if tag == tagRunLegacyNew {
					b.SetZero()
				} else {
					h, err := readFixed16(r)
					if err != nil {
						return nil, err
					}
					b.Hash = h
				}
				pendingFile.Blocks = append(pendingFile.Blocks, b)
			}
		case tagSymlink, tagHardlink:
			idx, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			sub, err := readString(r)
			if err != nil {
				return nil, err
			}
			target, err := readString(r)
			if err != nil {
				return nil, err
			}
			lt := disk.LinkHardlink
			if tag == tagSymlink {
				lt = disk.LinkSymlink
			}
			ensureDisk(int(idx)).Links = append(ensureDisk(int(idx)).Links, &disk.Link{Subpath: sub, Target: target, Type: lt})
		case tagDir:
			idx, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			sub, err := readString(r)
			if err != nil {
				return nil, err
			}
			ensureDisk(int(idx)).Dirs = append(ensureDisk(int(idx)).Dirs, &disk.Dir{Subpath: sub})
		case tagDeletedLog:
			idx, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			d := ensureDisk(int(idx))
			for {
				peek, err := r.Peek(1)
				if err != nil {
					return nil, err
				}
				if peek[0] != deletedRunEntry && peek[0] != freeRunEntry {
					break
				}
				entryTag, _ := r.ReadByte()
				start, err := readUvarint(r)
				if err != nil {
					return nil, err
				}
				count, err := readUvarint(r)
				if err != nil {
					return nil, err
				}
				for k := uint64(0); k < count; k++ {
					pos := int(start) + int(k)
					if entryTag == deletedRunEntry {
						h, err := readFixed16(r)
						if err != nil {
							return nil, err
						}
						d.AddDeleted(pos, disk.Block{Hash: h})
					}
				}
			}
		case tagInfo:
			oldest, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			pos := 0
			for pos < len(s.Info) {
				count, err := readUvarint(r)
				if err != nil {
					return nil, err
				}
				flags, err := r.ReadByte()
				if err != nil {
					return nil, err
				}
				var t uint64
				if flags&1 != 0 {
					t, err = readUvarint(r)
					if err != nil {
						return nil, err
					}
				}
				w := InfoWord{
					Present:    flags&1 != 0,
					Bad:        flags&2 != 0,
					Rehash:     flags&4 != 0,
					JustSynced: flags&8 != 0,
					Time:       uint32(oldest) + uint32(t),
				}
				for k := uint64(0); k < count && pos < len(s.Info); k++ {
					s.Info[pos] = w
					pos++
				}
			}
		case tagTrailer:
			flushFile()
			for _, idx := range mapsOrder {
				s.Disks = append(s.Disks, disksByIdx[idx])
			}
			return s, nil
		default:
			return nil, fmt.Errorf("content: unknown record tag %q", tag)
		}
	}
}
