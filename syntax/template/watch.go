/*
DESCRIPTION
  watch.go provides a Watcher that reloads a registry when the files of a
  template directory change.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package template

import (
	"context"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/ausocean/tsinspect/syntax/grammar"
)

// settle is how long the directory must be quiet before a reload, so that an
// editor's write, rename and chmod cause a single reload.
const settle = 200 * time.Millisecond

// Watcher keeps a registry in step with a template directory.
type Watcher struct {
	reg       *grammar.Registry
	dir       string
	noBuiltin bool
	log       logging.Logger

	// Reloaded, if not nil, receives the outcome of each reload.
	Reloaded func(error)
}

// NewWatcher returns a Watcher that reloads reg from dir, plus the built in
// templates unless noBuiltin.
func NewWatcher(reg *grammar.Registry, dir string, noBuiltin bool, log logging.Logger) *Watcher {
	return &Watcher{reg: reg, dir: dir, noBuiltin: noBuiltin, log: log}
}

// Run watches the directory until ctx is done. A reload that fails leaves the
// registry unchanged and is logged.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "could not create file watcher")
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return errors.Wrapf(err, "could not watch %s", w.dir)
	}
	w.log.Info("watching template directory", "dir", w.dir)

	timer := time.NewTimer(settle)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isTemplate(ev.Name) || ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			w.log.Debug("template file changed", "file", ev.Name, "op", ev.Op.String())
			rearm(timer, settle)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warning("file watcher error", "error", err.Error())

		case <-timer.C:
			w.reload()
		}
	}
}

// rearm resets t to fire after d, discarding any expiry not yet received.
func rearm(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func (w *Watcher) reload() {
	err := Reload(w.reg, w.dir, w.noBuiltin)
	if err != nil {
		w.log.Error("could not reload templates, keeping previous", "error", err.Error())
	} else {
		d, s := w.reg.Snapshot().Len()
		w.log.Info("reloaded templates", "version", w.reg.Version(), "descriptors", d, "sections", s)
	}
	if w.Reloaded != nil {
		w.Reloaded(err)
	}
}
