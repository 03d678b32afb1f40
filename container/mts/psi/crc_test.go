/*
DESCRIPTION
  crc_test.go provides testing for the MPEG-2 CRC-32 in crc.go.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import (
	"bytes"
	"testing"
)

// pat is the PAT written by common muxers for a single program with PMT PID
// 0x1000, CRC included.
var pat = []byte{
	0x00, 0xb0, 0x0d, 0x00, 0x01, 0xc1, 0x00, 0x00,
	0x00, 0x01, 0xf0, 0x00,
	0x2a, 0xb1, 0x04, 0xb2,
}

const errNotExpectedOut = "Unexpected output. \nGot : %x\nWant: %x\n"

func TestCRC32(t *testing.T) {
	tests := []struct {
		in   []byte
		want uint32
	}{
		{in: []byte("123456789"), want: 0x0376e6e7},
		{in: pat[:len(pat)-CRCSize], want: 0x2ab104b2},
		{in: nil, want: 0xffffffff},
	}
	for i, test := range tests {
		if got := CRC32(test.in); got != test.want {
			t.Errorf("test %d: "+errNotExpectedOut, i, got, test.want)
		}
	}
}

func TestAddCRC(t *testing.T) {
	got := AddCRC(pat[:len(pat)-CRCSize])
	if !bytes.Equal(got, pat) {
		t.Errorf(errNotExpectedOut, got, pat)
	}
}

func TestValidCRC(t *testing.T) {
	if !ValidCRC(pat) {
		t.Error("expected valid CRC")
	}

	bad := append([]byte(nil), pat...)
	bad[4] ^= 0x01
	if ValidCRC(bad) {
		t.Error("did not expect valid CRC after corrupting section")
	}

	if ValidCRC([]byte{0x00, 0x01}) {
		t.Error("did not expect valid CRC for short section")
	}
}
