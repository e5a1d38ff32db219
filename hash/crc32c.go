package hash

import "hash/crc32"

// crc32cTable is the Castagnoli polynomial table. The standard library
// already picks the SSE4.2 hardware path at runtime when the table matches
// IEEE/Castagnoli on an amd64/arm64 CPU that supports it, so no separate
// hand-rolled hardware path is needed here -- see crc32.Update's internal
// dispatch in hash/crc32.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the Castagnoli CRC-32 of data, used for the content
// file's trailing checksum (spec.md #4.E).
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// CRC32CUpdate folds more bytes into a running CRC32C accumulator,
// letting the content-file writer checksum a record stream incrementally
// instead of buffering the whole file.
func CRC32CUpdate(crc uint32, data []byte) uint32 {
	return crc32.Update(crc, crc32cTable, data)
}
