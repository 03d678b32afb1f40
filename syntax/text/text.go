/*
DESCRIPTION
  text.go provides decoding of the character sets found in MPEG-2 and DVB
  text fields, including the DVB selector-byte scheme of EN 300 468 Annex A.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package text decodes byte strings in the character sets used by MPEG-2
// and DVB service information.
package text

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// Charset identifies the character set of a text field.
type Charset int

// Supported character sets.
const (
	DVB Charset = iota // EN 300 468 Annex A, selected by a leading byte.
	UTF16
	UTF8
	ASCII
	GB2312
	GB18030
	Big5
)

var charsetNames = map[string]Charset{
	"dvb":     DVB,
	"utf16":   UTF16,
	"utf-16":  UTF16,
	"utf8":    UTF8,
	"utf-8":   UTF8,
	"ascii":   ASCII,
	"gb2312":  GB2312,
	"gb18030": GB18030,
	"big5":    Big5,
}

// ErrUnknownCharset is returned by ParseCharset for unrecognised names.
var ErrUnknownCharset = errors.New("unknown charset")

// ParseCharset returns the Charset with the given name. Names are case
// insensitive; the empty name selects DVB.
func ParseCharset(name string) (Charset, error) {
	if name == "" {
		return DVB, nil
	}
	c, ok := charsetNames[strings.ToLower(name)]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownCharset, "%q", name)
	}
	return c, nil
}

func (c Charset) String() string {
	switch c {
	case DVB:
		return "dvb"
	case UTF16:
		return "utf16"
	case UTF8:
		return "utf8"
	case ASCII:
		return "ascii"
	case GB2312:
		return "gb2312"
	case GB18030:
		return "gb18030"
	case Big5:
		return "big5"
	default:
		return "unknown"
	}
}

// Valid reports whether c is a known character set.
func (c Charset) Valid() bool { return c >= DVB && c <= Big5 }

// Decode decodes b in the character set c.
func Decode(b []byte, c Charset) (string, error) {
	switch c {
	case DVB:
		return decodeDVB(b)
	case UTF16:
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.UseBOM), b)
	case UTF8:
		return strings.ToValidUTF8(string(b), string(utf8.RuneError)), nil
	case ASCII:
		return ascii(b), nil
	case GB2312:
		// GBK is a superset of the EUC-CN form of GB2312.
		return decodeWith(simplifiedchinese.GBK, b)
	case GB18030:
		return decodeWith(simplifiedchinese.GB18030, b)
	case Big5:
		return decodeWith(traditionalchinese.Big5, b)
	default:
		return "", errors.Wrapf(ErrUnknownCharset, "charset %d", int(c))
	}
}

func ascii(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			sb.WriteByte('.')
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func decodeWith(e encoding.Encoding, b []byte) (string, error) {
	out, err := e.NewDecoder().Bytes(b)
	if err != nil {
		return "", errors.Wrap(err, "could not decode text")
	}
	return string(out), nil
}

// Single byte tables selected by a leading byte of 0x01 to 0x0b.
var dvbTables = map[byte]encoding.Encoding{
	0x01: charmap.ISO8859_5,
	0x02: charmap.ISO8859_6,
	0x03: charmap.ISO8859_7,
	0x04: charmap.ISO8859_8,
	0x05: charmap.ISO8859_9,
	0x06: charmap.ISO8859_10,
	0x07: charmap.Windows874, // ISO/IEC 8859-11 is TIS-620 plus NBSP.
	0x09: charmap.ISO8859_13,
	0x0a: charmap.ISO8859_14,
	0x0b: charmap.ISO8859_15,
}

// Tables selected by the three byte form 0x10 0x00 n.
var iso8859 = map[byte]encoding.Encoding{
	0x01: charmap.ISO8859_1,
	0x02: charmap.ISO8859_2,
	0x03: charmap.ISO8859_3,
	0x04: charmap.ISO8859_4,
	0x05: charmap.ISO8859_5,
	0x06: charmap.ISO8859_6,
	0x07: charmap.ISO8859_7,
	0x08: charmap.ISO8859_8,
	0x09: charmap.ISO8859_9,
	0x0a: charmap.ISO8859_10,
	0x0b: charmap.Windows874,
	0x0d: charmap.ISO8859_13,
	0x0e: charmap.ISO8859_14,
	0x0f: charmap.ISO8859_15,
	0x10: charmap.ISO8859_16,
}

// decodeDVB decodes text whose first byte may select a character table.
// Without a selector the default table applies; ISO/IEC 6937 has no x/text
// implementation so Latin-1 is used, which matches it for printable ASCII.
func decodeDVB(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}

	var (
		enc       encoding.Encoding = charmap.ISO8859_1
		multiByte bool
	)
	switch sel := b[0]; {
	case sel >= 0x20:
	case sel == 0x10:
		if len(b) < 3 {
			return "", errors.New("truncated ISO/IEC 8859 selector")
		}
		e, ok := iso8859[b[2]]
		if !ok {
			return "", errors.Errorf("unsupported ISO/IEC 8859 table %d", b[2])
		}
		enc, b = e, b[3:]
	case sel == 0x11, sel == 0x14:
		enc, b, multiByte = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), b[1:], true
	case sel == 0x12:
		enc, b, multiByte = korean.EUCKR, b[1:], true
	case sel == 0x13:
		enc, b, multiByte = simplifiedchinese.GBK, b[1:], true
	case sel == 0x15:
		return strings.ToValidUTF8(string(b[1:]), string(utf8.RuneError)), nil
	case sel == 0x1f:
		// encoding_type_id follows; the encoded form is opaque to us.
		if len(b) < 2 {
			return "", nil
		}
		return ascii(b[2:]), nil
	default:
		e, ok := dvbTables[sel]
		if !ok {
			return "", errors.Errorf("reserved DVB character table selector 0x%02x", sel)
		}
		enc, b = e, b[1:]
	}

	if multiByte {
		return decodeWith(enc, b)
	}
	return decodeWith(enc, []byte(stripControl(b)))
}

// stripControl removes the DVB emphasis control codes and maps the CR/LF
// control code to a newline.
func stripControl(b []byte) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch {
		case c == 0x8a:
			out = append(out, '\n')
		case c >= 0x80 && c <= 0x9f:
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
