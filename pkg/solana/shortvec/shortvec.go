// Package shortvec implements the compact length prefix used by Solana's
// transaction wire format: a little endian base-128 varint of at most three
// bytes, limited to 16 bit values.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

const maxEncodedLen = 3

var (
	// ErrLenTooLarge is returned when encoding a length above math.MaxUint16.
	ErrLenTooLarge = errors.New("shortvec: length exceeds 65535")

	// ErrInvalidEncoding is returned when decoding a prefix that is too long,
	// overflows 16 bits, or is not minimally encoded.
	ErrInvalidEncoding = errors.New("shortvec: invalid encoding")
)

// EncodeLen writes the encoding of length to w and returns the number of
// bytes written.
func EncodeLen(w io.ByteWriter, length int) (int, error) {
	if length < 0 || length > math.MaxUint16 {
		return 0, errors.Wrapf(ErrLenTooLarge, "length %d", length)
	}

	var written int
	for {
		b := byte(length & 0x7f)
		length >>= 7
		if length != 0 {
			b |= 0x80
		}

		if err := w.WriteByte(b); err != nil {
			return written, err
		}
		written++

		if length == 0 {
			return written, nil
		}
	}
}

// DecodeLen reads an encoded length from r.
func DecodeLen(r io.ByteReader) (int, error) {
	var length int
	for i := 0; i < maxEncodedLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}

		// A trailing zero byte means the value had a shorter encoding.
		if i > 0 && b == 0 {
			return 0, errors.Wrap(ErrInvalidEncoding, "non-minimal encoding")
		}

		length |= int(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			if length > math.MaxUint16 {
				return 0, errors.Wrapf(ErrInvalidEncoding, "length %d overflows", length)
			}
			return length, nil
		}
	}

	return 0, errors.Wrapf(ErrInvalidEncoding, "more than %d bytes", maxEncodedLen)
}
