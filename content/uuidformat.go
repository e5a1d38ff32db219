package content

import (
	gouuid "github.com/google/uuid"
	uuid "github.com/satori/go.uuid"
)

// parseUUID decodes a 16-byte filesystem UUID using the historic
// satori/go.uuid layout, the primary format this package has always
// written. satori's FromBytes rejects only a wrong length, so for a
// 16-byte array it always succeeds and the google/uuid fallback and the
// uuid.Nil return below are never reached.
func parseUUID(b [16]byte) uuid.UUID {
	u, err := uuid.FromBytes(b[:])
	if err == nil {
		return u
	}
	if gu, gerr := gouuid.FromBytes(b[:]); gerr == nil {
		var out uuid.UUID
		copy(out[:], gu[:])
		return out
	}
	return uuid.Nil
}
