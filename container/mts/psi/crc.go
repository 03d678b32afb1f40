/*
DESCRIPTION
  crc.go provides the MPEG-2 CRC-32 used to protect PSI and SI sections.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package psi provides checks on the PSI and SI sections carried by MPEG-TS.
package psi

import (
	"encoding/binary"
	"hash/crc32"
	"math/bits"
)

// CRCSize is the size of the CRC_32 field that ends a long form section.
const CRCSize = 4

// table is built once for the MPEG-2 polynomial, which is the IEEE
// polynomial without bit reversal.
var table = makeTable(bits.Reverse32(crc32.IEEE))

// CRC32 returns the MPEG-2 CRC-32 of b.
func CRC32(b []byte) uint32 {
	return update(0xffffffff, table, b)
}

// ValidCRC reports whether the section s, starting at its table_id and ending
// with its CRC_32 field, has a correct checksum.
func ValidCRC(s []byte) bool {
	if len(s) < CRCSize {
		return false
	}
	return CRC32(s) == 0
}

// AddCRC returns a copy of the section s with its CRC_32 appended.
func AddCRC(s []byte) []byte {
	t := make([]byte, len(s)+CRCSize)
	copy(t, s)
	binary.BigEndian.PutUint32(t[len(s):], CRC32(s))
	return t
}

func makeTable(poly uint32) *crc32.Table {
	var t crc32.Table
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return &t
}

func update(crc uint32, tab *crc32.Table, p []byte) uint32 {
	for _, v := range p {
		crc = tab[byte(crc>>24)^v] ^ (crc << 8)
	}
	return crc
}
