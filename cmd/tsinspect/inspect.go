/*
DESCRIPTION
  inspect.go provides the inspector, which decodes sections concurrently and
  writes their field trees in the order they were read.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ausocean/tsinspect/config"
	"github.com/ausocean/tsinspect/container/mts"
	"github.com/ausocean/tsinspect/syntax/bits"
	"github.com/ausocean/tsinspect/syntax/decode"
	"github.com/ausocean/tsinspect/syntax/render"
	"github.com/ausocean/tsinspect/syntax/tree"
)

// batchSize is the number of sections read before a batch is decoded.
const batchSize = 256

// inspector decodes sections and writes their field trees to out.
type inspector struct {
	dec     *decode.Decoder
	log     logging.Logger
	out     io.Writer
	opts    render.Options
	yaml    bool
	workers int

	decoded int
	failed  int
}

func newInspector(dec *decode.Decoder, log logging.Logger, out io.Writer, c *config.Config) *inspector {
	return &inspector{
		dec:     dec,
		log:     log,
		out:     out,
		opts:    renderOptions(c),
		yaml:    c.Format == config.FormatYAML,
		workers: int(c.Workers),
	}
}

// stream decodes the sections carried on pids in the MPEG-TS read from r.
func (in *inspector) stream(ctx context.Context, r io.Reader, pids []uint16) error {
	sr := mts.NewSectionReader(r, in.log, pids...)
	batch := make([]mts.Section, 0, batchSize)
	for {
		sec, err := sr.Next()
		if err != nil && err != io.EOF {
			if len(batch) != 0 {
				ferr := in.sections(ctx, batch)
				if ferr != nil {
					in.log.Error("could not output sections read before failure", "error", ferr.Error())
					return errors.Wrapf(err, "could not read sections (output of earlier sections also failed: %v)", ferr)
				}
			}
			return errors.Wrap(err, "could not read sections")
		}
		if err == nil {
			batch = append(batch, sec)
		}
		if len(batch) == batchSize || err == io.EOF && len(batch) != 0 {
			err := in.sections(ctx, batch)
			if err != nil {
				return err
			}
			batch = batch[:0]
		}
		if err == io.EOF {
			return nil
		}
	}
}

// sections decodes secs concurrently and writes the results in order. A
// section that fails to decode is logged and skipped.
func (in *inspector) sections(ctx context.Context, secs []mts.Section) error {
	outs := make([]bytes.Buffer, len(secs))
	ok := make([]bool, len(secs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)
	for i := range secs {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sec := secs[i]
			note := ""
			if sec.Long() && !sec.CRCValid() {
				in.log.Warning("section CRC mismatch", "pid", sec.PID, "packet", sec.Packet)
				note = ", CRC mismatch"
			}
			root, _, err := in.dec.Section(bits.NewBuffer(sec.Data), 0, len(sec.Data))
			if err != nil {
				in.log.Error("could not decode section", "pid", sec.PID, "packet", sec.Packet, "table_id", sec.TableID(), "error", err.Error())
				return nil
			}
			in.header(&outs[i], fmt.Sprintf("pid 0x%04x, packet %d%s", sec.PID, sec.Packet, note))
			ok[i] = true
			return in.render(&outs[i], root)
		})
	}
	err := g.Wait()
	if err != nil {
		return err
	}

	for i := range outs {
		if ok[i] {
			in.decoded++
		} else {
			in.failed++
		}
		_, err := outs[i].WriteTo(in.out)
		if err != nil {
			return errors.Wrap(err, "could not write output")
		}
	}
	return nil
}

// sectionHex decodes a single section given in hex.
func (in *inspector) sectionHex(s string) error {
	b, err := parseHex(s)
	if err != nil {
		return err
	}
	root, n, err := in.dec.Section(bits.NewBuffer(b), 0, len(b))
	if err != nil {
		return errors.Wrap(err, "could not decode section")
	}
	if n != len(b)*8 {
		in.log.Warning("bytes follow section", "section", n/8, "input", len(b))
	}
	in.decoded++
	in.header(in.out, "section")
	return in.render(in.out, root)
}

// descriptorHex decodes a loop of descriptors given in hex. Descriptors
// decoded before a failure are still written.
func (in *inspector) descriptorHex(s string) error {
	b, err := parseHex(s)
	if err != nil {
		return err
	}
	nodes, _, decErr := in.dec.Descriptors(bits.NewBuffer(b), 0, len(b))
	for i, n := range nodes {
		in.decoded++
		in.header(in.out, fmt.Sprintf("descriptor %d", i))
		err := in.render(in.out, n)
		if err != nil {
			return err
		}
	}
	if decErr != nil {
		in.failed++
		return errors.Wrap(decErr, "could not decode descriptors")
	}
	return nil
}

func (in *inspector) header(w io.Writer, s string) {
	if in.yaml {
		fmt.Fprintf(w, "---\n# %s\n", s)
		return
	}
	fmt.Fprintf(w, "# %s\n", s)
}

func (in *inspector) render(w io.Writer, n *tree.Node) error {
	if in.yaml {
		return render.YAML(w, n, in.opts)
	}
	return render.Text(w, n, in.opts)
}

// parseHex decodes hex, ignoring white space and a leading 0x.
func parseHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse hex")
	}
	return b, nil
}
