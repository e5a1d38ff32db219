package content

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/snapraid-go/snapraid/hash"
)

// DeletedHistoryEntry is one Deleted block's hash as it existed at the
// time a disk's deleted-block ledger was archived: which disk slot it
// belonged to, its parity column, and the content hash it carried.
type DeletedHistoryEntry struct {
	DiskIndex int
	ParityPos int
	Hash      hash.Digest
}

// EncodeDeletedHistory serializes every disk's Deleted-block ledger into
// one lz4-compressed blob, independent of the main content-file record
// stream. A disk's Deleted list can grow unbounded across many syncs of
// a mostly-static array (spec #4.D); callers can archive it this way as a
// separate compressed copy. The main record stream written by Encode
// still carries every Deleted record in its 'h' records.
func EncodeDeletedHistory(s *State) ([]byte, error) {
	var raw bytes.Buffer
	for diskIdx, d := range s.Disks {
		for _, del := range d.Deleted {
			binary.Write(&raw, binary.LittleEndian, uint32(diskIdx))
			binary.Write(&raw, binary.LittleEndian, uint32(del.Block.ParityPos))
			raw.Write(del.Block.Hash[:])
		}
	}

	var out bytes.Buffer
	w := lz4.NewWriter(&out)
	if _, err := w.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("content: compressing deleted history: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("content: compressing deleted history: %w", err)
	}
	return out.Bytes(), nil
}

// DecodeDeletedHistory reverses EncodeDeletedHistory.
func DecodeDeletedHistory(blob []byte) ([]DeletedHistoryEntry, error) {
	r := lz4.NewReader(bytes.NewReader(blob))
	var raw bytes.Buffer
	if _, err := raw.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("content: decompressing deleted history: %w", err)
	}

	const recSize = 4 + 4 + 16
	data := raw.Bytes()
	if len(data)%recSize != 0 {
		return nil, fmt.Errorf("content: malformed deleted history blob (%d bytes)", len(data))
	}

	entries := make([]DeletedHistoryEntry, 0, len(data)/recSize)
	for i := 0; i < len(data); i += recSize {
		e := DeletedHistoryEntry{
			DiskIndex: int(binary.LittleEndian.Uint32(data[i:])),
			ParityPos: int(binary.LittleEndian.Uint32(data[i+4:])),
		}
		copy(e.Hash[:], data[i+8:i+8+16])
		entries = append(entries, e)
	}
	return entries, nil
}
