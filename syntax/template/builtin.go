/*
DESCRIPTION
  builtin.go provides the built in templates and loading of templates from a
  directory.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package template

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/ausocean/tsinspect/syntax/grammar"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Builtin returns the built in MPEG-2 PSI and DVB SI templates.
func Builtin() (Set, error) {
	return loadFS(builtinFS, "builtin")
}

// LoadDir returns the templates in the .yaml and .yml files of dir, read in
// name order.
func LoadDir(dir string) (Set, error) {
	return loadFS(os.DirFS(dir), ".")
}

func loadFS(fsys fs.FS, dir string) (Set, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return Set{}, errors.Wrapf(err, "could not read template directory %s", dir)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && isTemplate(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var set Set
	for _, n := range names {
		b, err := fs.ReadFile(fsys, path.Join(dir, n))
		if err != nil {
			return Set{}, errors.Wrapf(err, "could not read template file %s", n)
		}
		s, err := ParseBytes(b)
		if err != nil {
			return Set{}, errors.Wrapf(err, "template file %s", n)
		}
		set.Merge(s)
	}
	return set, nil
}

func isTemplate(name string) bool {
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load builds the template set named by a configuration: the built in
// templates unless noBuiltin, then the templates in dir if dir is not empty.
func Load(dir string, noBuiltin bool) (Set, error) {
	var set Set
	if !noBuiltin {
		b, err := Builtin()
		if err != nil {
			return Set{}, errors.Wrap(err, "could not load built in templates")
		}
		set.Merge(b)
	}
	if dir != "" {
		d, err := LoadDir(dir)
		if err != nil {
			return Set{}, err
		}
		set.Merge(d)
	}
	return set, nil
}

// Reload replaces the templates of reg with those named by dir and
// noBuiltin. reg is unchanged if any template fails to load.
func Reload(reg *grammar.Registry, dir string, noBuiltin bool) error {
	set, err := Load(dir, noBuiltin)
	if err != nil {
		return err
	}
	return reg.Replace(set.Descriptors, set.Sections)
}
