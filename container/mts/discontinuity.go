/*
DESCRIPTION
  discontinuity.go provides continuity_counter tracking so that sections
  spanning lost packets are not reassembled.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mts

// Outcomes of a continuity check.
const (
	ccOK   = iota // The expected counter, or the first seen for the PID.
	ccDup         // A repeat of the previous packet.
	ccLost        // One or more packets are missing.
)

// continuity keeps the expected continuity_counter for each PID.
type continuity struct {
	expCC map[uint16]int
}

func newContinuity() *continuity {
	return &continuity{expCC: make(map[uint16]int)}
}

// check compares cc against the counter expected for pid and records the
// counter expected next. The counter only advances on packets with payload.
func (c *continuity) check(pid uint16, cc int) int {
	exp, ok := c.expCC[pid]
	if ok && cc == (exp-1)&0xf {
		return ccDup
	}
	c.expCC[pid] = (cc + 1) & 0xf
	if ok && cc != exp {
		return ccLost
	}
	return ccOK
}
