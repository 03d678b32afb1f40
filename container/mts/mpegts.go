/*
DESCRIPTION
  mpegts.go provides MPEG-TS packet constants and helpers for finding the
  PSI and SI carried by a transport stream.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package mts reassembles PSI and SI sections from MPEG-TS (mts) packets.
package mts

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ausocean/tsinspect/container/mts/psi"
)

const PacketSize = 188

// SyncByte starts every MPEG-TS packet.
const SyncByte = 0x47

// Standard program IDs for PSI and SI MPEG-TS packets.
const (
	PatPid  = 0x0000
	CatPid  = 0x0001
	NitPid  = 0x0010
	SdtPid  = 0x0011
	EitPid  = 0x0012
	TdtPid  = 0x0014 // Also carries the TOT.
	NullPid = 0x1fff
)

// DefaultPIDs are the PIDs read when none are given. PMT PIDs are found from
// the PAT.
var DefaultPIDs = []uint16{PatPid, CatPid, NitPid, SdtPid, EitPid, TdtPid}

// Section header sizes.
const (
	sectionHeadSize = 3 // table_id and the 16 bits holding section_length.
	maxSectionLen   = 4093
)

// Errors used by the section reader.
var (
	ErrInvalidLen  = errors.New("MPEG-TS data not of valid length")
	ErrSync        = errors.New("MPEG-TS packet does not start with sync byte")
	ErrSectionLen  = errors.New("section_length exceeds maximum")
	ErrShortHeader = errors.New("section too short for header")
)

// Section is a PSI or SI section reassembled from MPEG-TS packets.
type Section struct {
	PID    uint16 // PID of the packets carrying the section.
	Packet int    // Index of the packet in which the section starts.
	Data   []byte // The section from table_id to its end, including any CRC_32.
}

// TableID returns the table_id of the section.
func (s Section) TableID() uint8 { return s.Data[0] }

// Long reports whether the section has the long form syntax, and so ends with
// a CRC_32.
func (s Section) Long() bool { return s.Data[1]&0x80 != 0 }

// CRCValid reports whether the section is long form with a correct CRC_32.
func (s Section) CRCValid() bool { return s.Long() && psi.ValidCRC(s.Data) }

// sectionLen returns the full size of the section starting at b, from the
// section_length field.
func sectionLen(b []byte) (int, error) {
	if len(b) < sectionHeadSize {
		return 0, ErrShortHeader
	}
	n := int(binary.BigEndian.Uint16(b[1:]) & 0x0fff)
	if n > maxSectionLen {
		return 0, ErrSectionLen
	}
	return sectionHeadSize + n, nil
}

// Programs returns the program numbers and PMT PIDs of a PAT section. The
// network PID, given for program 0, is not included.
func Programs(pat []byte) (map[uint16]uint16, error) {
	n, err := sectionLen(pat)
	if err != nil {
		return nil, err
	}
	const first = 8 // Programs follow the long form header.
	if n > len(pat) || n < first+psi.CRCSize {
		return nil, ErrInvalidLen
	}
	m := make(map[uint16]uint16)
	for i := first; i+4 <= n-psi.CRCSize; i += 4 {
		prog := binary.BigEndian.Uint16(pat[i:])
		pid := binary.BigEndian.Uint16(pat[i+2:]) & 0x1fff
		if prog != 0 {
			m[prog] = pid
		}
	}
	return m, nil
}
