/*
DESCRIPTION
  buffer.go provides a random access buffer that can read bytes, big endian
  words, arbitrary width bit fields, nibble and byte ranges, and character set
  encoded text from a byte slice.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package bits provides a random access bit buffer over a byte slice.
//
// Positions are given as a byte index plus a bit offset (0-7) counted from the
// most significant bit of that byte.
package bits

import (
	"bytes"
	"io"

	"github.com/icza/bitio"
	"github.com/pkg/errors"

	"github.com/ausocean/tsinspect/syntax/text"
)

// ErrOutOfRange is returned when a read would run past the end of the
// underlying bytes.
var ErrOutOfRange = errors.New("read out of range")

// Buffer is a read-only view of a byte slice. Buffer is safe for concurrent
// use since it is never modified.
type Buffer struct {
	b []byte
}

// NewBuffer returns a new Buffer over b. b must not be modified while the
// Buffer is in use.
func NewBuffer(b []byte) *Buffer {
	return &Buffer{b: b}
}

// Len returns the number of bytes in the buffer.
func (b *Buffer) Len() int { return len(b.b) }

// check returns an error if n bytes from pos are not all inside the buffer.
func (b *Buffer) check(pos, n int) error {
	if pos < 0 || n < 0 || pos > len(b.b) || n > len(b.b)-pos {
		return errors.Wrapf(ErrOutOfRange, "need %d bytes at %d, have %d", n, pos, len(b.b))
	}
	return nil
}

// Uint8 returns the byte at pos.
func (b *Buffer) Uint8(pos int) (uint8, error) {
	if err := b.check(pos, 1); err != nil {
		return 0, err
	}
	return b.b[pos], nil
}

// Uint16 returns the big endian 16 bit word at pos.
func (b *Buffer) Uint16(pos int) (uint16, error) {
	if err := b.check(pos, 2); err != nil {
		return 0, err
	}
	return uint16(b.b[pos])<<8 | uint16(b.b[pos+1]), nil
}

// Bits returns n bits, 1 to 64, starting off bits into the byte at pos. The
// bits are returned in the least significant part of the result.
// For example, with a buffer of []byte{0x8f, 0xe3} (1000 1111, 1110 0011):
// Bits(0, 0, 4) = 0x8 (1000)
// Bits(0, 4, 6) = 0x3f (1111, 11)
// Bits(0, 6, 10) = 0x3e3 (11, 1110 0011)
func (b *Buffer) Bits(pos, off, n int) (uint64, error) {
	if n < 1 || n > 64 {
		return 0, errors.Errorf("invalid bit count %d", n)
	}
	if off < 0 || off > 7 {
		return 0, errors.Errorf("invalid bit offset %d", off)
	}
	l := (off + n + 7) / 8
	if err := b.check(pos, l); err != nil {
		return 0, err
	}

	r := bitio.NewReader(bytes.NewReader(b.b[pos : pos+l]))
	if off > 0 {
		if _, err := r.ReadBits(uint8(off)); err != nil {
			return 0, errors.Wrap(err, "could not skip bit offset")
		}
	}
	v, err := r.ReadBits(uint8(n))
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, errors.Wrap(err, "could not read bits")
	}
	return v, nil
}

// Nibbles returns n four bit values starting at pos, beginning with the low
// nibble of that byte when off is 4.
func (b *Buffer) Nibbles(pos, off, n int) ([]int, error) {
	if off != 0 && off != 4 {
		return nil, errors.Errorf("nibbles cannot start at bit offset %d", off)
	}
	if n < 0 || n > 2*len(b.b) {
		return nil, errors.Wrapf(ErrOutOfRange, "need %d nibbles, have %d bytes", n, len(b.b))
	}
	if err := b.check(pos, (off+4*n+7)/8); err != nil {
		return nil, err
	}
	out := make([]int, n)
	idx := pos*2 + off/4
	for i := range out {
		c := b.b[(idx+i)/2]
		if (idx+i)%2 == 0 {
			out[i] = int(c >> 4)
		} else {
			out[i] = int(c & 0x0f)
		}
	}
	return out, nil
}

// Bytes returns a copy of the n bytes at pos.
func (b *Buffer) Bytes(pos, n int) ([]byte, error) {
	if err := b.check(pos, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b.b[pos:pos+n])
	return out, nil
}

// Text decodes the n bytes at pos using the character set c.
func (b *Buffer) Text(pos, n int, c text.Charset) (string, error) {
	if err := b.check(pos, n); err != nil {
		return "", err
	}
	return text.Decode(b.b[pos:pos+n], c)
}
