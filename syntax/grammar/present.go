/*
DESCRIPTION
  present.go provides the presentation rules of template fields: labels,
  number formats and mappings from decoded values to descriptive strings.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package grammar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Format is the number format used when a value is not mapped.
type Format int

// Number formats.
const (
	Dec Format = iota
	Hex
	Bin
)

// ParseFormat returns the format with the given name; the empty name is Dec.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "dec":
		return Dec, nil
	case "hex":
		return Hex, nil
	case "bin":
		return Bin, nil
	default:
		return 0, errors.Wrapf(ErrInvalid, "unknown format %q", s)
	}
}

// Present holds the presentation rules of a field or loop. A nil *Present
// means the field is not shown.
type Present struct {
	Prefix      string
	PrefixColor string
	Label       string
	LabelColor  string
	Bold        bool
	Format      Format
	Mapper      Mapper
}

func (p *Present) validate(name string) error {
	if p == nil {
		return nil
	}
	if p.Format < Dec || p.Format > Bin {
		return invalid(name, "unknown format %d", p.Format)
	}
	if m, ok := p.Mapper.(*ValueMap); ok {
		for _, r := range m.Ranges {
			if r.From > r.To {
				return invalid(name, "mapping range %d-%d is reversed", r.From, r.To)
			}
		}
	}
	return nil
}

// LabelOr returns the label of p, or name if p has none.
func (p *Present) LabelOr(name string) string {
	if p == nil || p.Label == "" {
		return name
	}
	return p.Label
}

// Number renders v, a value of the given bit width. A mapped value renders
// as its mapping; anything else renders as a number in the field's format.
func (p *Present) Number(v uint64, bits int) string {
	if p != nil && p.Mapper != nil {
		if s, ok := p.Mapper.Map(v); ok {
			return s
		}
	}
	f := Dec
	if p != nil {
		f = p.Format
	}
	return FormatUint(v, bits, f)
}

// FormatUint renders v in format f, padding hex and binary to the width of
// a value of the given number of bits.
func FormatUint(v uint64, bits int, f Format) string {
	switch f {
	case Hex:
		return fmt.Sprintf("0x%0*X", (bits+3)/4, v)
	case Bin:
		return fmt.Sprintf("0b%0*b", bits, v)
	default:
		return strconv.FormatUint(v, 10)
	}
}

// Mapper maps a decoded value to a descriptive string.
type Mapper interface {
	Map(v uint64) (string, bool)
}

// Range maps the inclusive range From to To to Label.
type Range struct {
	From, To uint64
	Label    string
}

// ValueMap maps exact values, then ranges, to labels.
type ValueMap struct {
	Values map[uint64]string
	Ranges []Range
}

// Map implements Mapper.
func (m *ValueMap) Map(v uint64) (string, bool) {
	if s, ok := m.Values[v]; ok {
		return s, true
	}
	for _, r := range m.Ranges {
		if v >= r.From && v <= r.To {
			return r.Label, true
		}
	}
	return "", false
}

// MapperFunc adapts a function to a Mapper.
type MapperFunc func(v uint64) (string, bool)

// Map implements Mapper.
func (f MapperFunc) Map(v uint64) (string, bool) { return f(v) }

// Canned mappers.
var (
	// Duration renders 24 bits of BCD as hh:mm:ss.
	Duration Mapper = MapperFunc(duration)

	// MJDTime renders a 40 bit value of 16 bit modified Julian date followed
	// by 24 bits of BCD time as a UTC date and time.
	MJDTime Mapper = MapperFunc(mjdTime)

	// LanguageCode renders 24 bits as a three letter code such as an ISO 639
	// language code or an ISO 3166 country code.
	LanguageCode Mapper = MapperFunc(languageCode)
)

// CannedMapper returns the canned mapper with the given name.
func CannedMapper(name string) (Mapper, error) {
	switch strings.ToLower(name) {
	case "duration":
		return Duration, nil
	case "mjd", "mjd_time", "utc_time":
		return MJDTime, nil
	case "language", "language_code", "country_code":
		return LanguageCode, nil
	default:
		return nil, errors.Wrapf(ErrInvalid, "unknown mapping %q", name)
	}
}

func bcd(b uint64) (int, bool) {
	hi, lo := int(b>>4)&0x0f, int(b)&0x0f
	if hi > 9 || lo > 9 {
		return 0, false
	}
	return hi*10 + lo, true
}

func duration(v uint64) (string, bool) {
	h, ok1 := bcd(v >> 16)
	m, ok2 := bcd(v >> 8)
	s, ok3 := bcd(v)
	if !ok1 || !ok2 || !ok3 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s), true
}

// mjdEpoch is modified Julian date zero.
var mjdEpoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

func mjdTime(v uint64) (string, bool) {
	if v == 0xffffffffff {
		return "undefined", true
	}
	hms, ok := duration(v & 0xffffff)
	if !ok {
		return "", false
	}
	date := mjdEpoch.AddDate(0, 0, int(v>>24&0xffff))
	return date.Format("2006-01-02") + " " + hms + " UTC", true
}

func languageCode(v uint64) (string, bool) {
	b := []byte{byte(v >> 16), byte(v >> 8), byte(v)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return "", false
		}
	}
	return string(b), true
}
