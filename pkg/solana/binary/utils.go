package binary

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var ErrShortBuffer = errors.New("buffer too short")

func PutUint32(dst []byte, v uint32, offset *int) {
	binary.LittleEndian.PutUint32(dst[*offset:], v)
	*offset += 4
}

func PutUint64(dst []byte, v uint64, offset *int) {
	binary.LittleEndian.PutUint64(dst[*offset:], v)
	*offset += 8
}

// GetUint32 reads a little endian uint32 at offset and advances it.
func GetUint32(src []byte, dst *uint32, offset *int) error {
	if len(src) < *offset+4 {
		return errors.Wrapf(ErrShortBuffer, "need %d bytes, have %d", *offset+4, len(src))
	}
	*dst = binary.LittleEndian.Uint32(src[*offset:])
	*offset += 4
	return nil
}

// GetUint64 reads a little endian uint64 at offset and advances it.
func GetUint64(src []byte, dst *uint64, offset *int) error {
	if len(src) < *offset+8 {
		return errors.Wrapf(ErrShortBuffer, "need %d bytes, have %d", *offset+8, len(src))
	}
	*dst = binary.LittleEndian.Uint64(src[*offset:])
	*offset += 8
	return nil
}
