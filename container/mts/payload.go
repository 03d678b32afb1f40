/*
DESCRIPTION
  payload.go provides a SectionReader that reassembles PSI and SI sections
  from the payloads of MPEG-TS packets.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mts

import (
	"io"

	"github.com/Comcast/gots/packet"
	gotspsi "github.com/Comcast/gots/psi"
	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
)

// stuffing fills the rest of a payload once no more sections follow.
const stuffing = 0xff

// SectionReader reads sections from a stream of 188 byte MPEG-TS packets.
type SectionReader struct {
	r       io.Reader
	log     logging.Logger
	pids    map[uint16]bool
	findPMT bool // Add the PMT PIDs named by the PAT to pids.
	cc      *continuity
	pending map[uint16]*assembly
	ready   []Section
	pkt     packet.Packet
	n       int // Packets read.
	err     error
}

// assembly is a section being collected from packet payloads.
type assembly struct {
	data  []byte
	start int
}

// NewSectionReader returns a SectionReader reading the sections carried on
// pids. If no pids are given, DefaultPIDs and the PMT PIDs found in the PAT
// are read.
func NewSectionReader(r io.Reader, log logging.Logger, pids ...uint16) *SectionReader {
	s := &SectionReader{
		r:       r,
		log:     log,
		pids:    make(map[uint16]bool),
		cc:      newContinuity(),
		pending: make(map[uint16]*assembly),
	}
	if len(pids) == 0 {
		pids = DefaultPIDs
		s.findPMT = true
	}
	for _, p := range pids {
		s.pids[p] = true
	}
	return s
}

// Next returns the next complete section. It returns io.EOF once the stream
// has ended. Sections left incomplete at the end of the stream are dropped.
func (s *SectionReader) Next() (Section, error) {
	for len(s.ready) == 0 {
		if s.err != nil {
			return Section{}, s.err
		}
		s.err = s.readPacket()
	}
	sec := s.ready[0]
	s.ready = s.ready[1:]
	return sec, nil
}

// Sections returns all sections in r carried on pids, as for
// NewSectionReader.
func Sections(r io.Reader, log logging.Logger, pids ...uint16) ([]Section, error) {
	sr := NewSectionReader(r, log, pids...)
	var secs []Section
	for {
		sec, err := sr.Next()
		if err == io.EOF {
			return secs, nil
		}
		if err != nil {
			return secs, err
		}
		secs = append(secs, sec)
	}
}

func (s *SectionReader) readPacket() error {
	_, err := io.ReadFull(s.r, s.pkt[:])
	switch err {
	case nil:
	case io.EOF:
		for pid := range s.pending {
			s.log.Debug("dropping incomplete section at end of stream", "pid", pid)
		}
		return io.EOF
	case io.ErrUnexpectedEOF:
		return errors.Wrapf(ErrInvalidLen, "partial packet after %d packets", s.n)
	default:
		return errors.Wrap(err, "could not read packet")
	}
	i := s.n
	s.n++

	if s.pkt[0] != SyncByte {
		return errors.Wrapf(ErrSync, "packet %d", i)
	}
	pid := uint16(s.pkt.PID())
	if !s.pids[pid] {
		return nil
	}
	payload, err := s.pkt.Payload()
	if err != nil || len(payload) == 0 {
		return nil
	}

	switch s.cc.check(pid, s.pkt.ContinuityCounter()) {
	case ccDup:
		s.log.Debug("skipping duplicate packet", "pid", pid, "packet", i)
		return nil
	case ccLost:
		if _, ok := s.pending[pid]; ok {
			s.log.Warning("dropping section after lost packets", "pid", pid, "packet", i)
			delete(s.pending, pid)
		}
	}

	if !s.pkt.PayloadUnitStartIndicator() {
		a, ok := s.pending[pid]
		if !ok {
			return nil
		}
		s.collect(pid, a, payload)
		return nil
	}

	ptr := int(payload[0])
	if 1+ptr > len(payload) {
		s.log.Warning("pointer_field beyond payload", "pid", pid, "packet", i, "pointer", ptr)
		delete(s.pending, pid)
		return nil
	}
	if a, ok := s.pending[pid]; ok {
		s.collect(pid, a, payload[1:1+ptr])
		if _, ok := s.pending[pid]; ok {
			s.log.Warning("dropping section cut short by a new section", "pid", pid, "packet", i)
			delete(s.pending, pid)
		}
	}
	if 1+ptr == len(payload) || gotspsi.TableID(payload) == stuffing {
		return nil
	}
	s.collect(pid, &assembly{start: i}, payload[1+ptr:])
	return nil
}

// collect adds b to the section a of pid. Complete sections are made ready,
// and any sections that follow in b are started.
func (s *SectionReader) collect(pid uint16, a *assembly, b []byte) {
	for {
		rest, done, err := a.add(b)
		if err != nil {
			s.log.Warning("dropping malformed section", "pid", pid, "packet", a.start, "error", err.Error())
			delete(s.pending, pid)
			return
		}
		if !done {
			s.pending[pid] = a
			return
		}
		delete(s.pending, pid)
		s.emit(Section{PID: pid, Packet: a.start, Data: a.data})
		if len(rest) == 0 || rest[0] == stuffing {
			return
		}
		a, b = &assembly{start: s.n - 1}, rest
	}
}

// add appends b to the section and reports whether it is complete. The bytes
// of b beyond the end of the section are returned.
func (a *assembly) add(b []byte) (rest []byte, done bool, err error) {
	a.data = append(a.data, b...)
	if len(a.data) < sectionHeadSize {
		return nil, false, nil
	}
	n, err := sectionLen(a.data)
	if err != nil {
		return nil, false, err
	}
	if len(a.data) < n {
		return nil, false, nil
	}
	rest = a.data[n:]
	a.data = a.data[:n:n]
	return rest, true, nil
}

func (s *SectionReader) emit(sec Section) {
	s.ready = append(s.ready, sec)
	if !s.findPMT || sec.PID != PatPid || sec.TableID() != 0x00 {
		return
	}
	progs, err := Programs(sec.Data)
	if err != nil {
		s.log.Warning("could not get programs from PAT", "error", err.Error())
		return
	}
	for prog, pid := range progs {
		if !s.pids[pid] {
			s.log.Debug("found PMT PID", "program", prog, "pid", pid)
			s.pids[pid] = true
		}
	}
}
