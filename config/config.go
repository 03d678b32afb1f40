/*
DESCRIPTION
  config.go contains the configuration settings for tsinspect.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config contains the configuration settings for tsinspect.
package config

import (
	"github.com/ausocean/utils/logging"
)

// Output formats.
const (
	// Indicates no option has been set.
	NothingDefined = iota

	FormatText
	FormatYAML
)

// Config provides the parameters of a tsinspect run. Default values for
// these fields are defined in variables.go and applied by Validate.
type Config struct {
	// Color enables ANSI colors in text output for fields whose template
	// names a color or bold text.
	Color bool

	// Format is the output format, FormatText or FormatYAML.
	Format uint8

	// InputPath is the MPEG-TS file to read. "-" reads standard input.
	InputPath string

	// Logger holds an implementation of the Logger interface.
	// This must be set for tsinspect to work correctly.
	Logger logging.Logger

	// LogLevel is the logging verbosity level.
	// Valid values are defined by enums from the logger package: logging.Debug,
	// logging.Info, logging.Warning logging.Error, logging.Fatal.
	LogLevel int8

	// LogPath is the file that logs are also written to, rotated by size. No
	// file is written if it is empty.
	LogPath string

	NoBuiltin bool // Do not install the built in templates.
	Offsets   bool // Start each output line with the field's byte position.

	// PIDs are the PIDs whose sections are decoded. If empty, the standard
	// PSI and SI PIDs and the PMT PIDs found in the PAT are used.
	PIDs []uint16

	ShowHidden bool // Also output fields the templates do not show.
	Suppress   bool // Suppress repeated log messages.

	// TemplateDir is a directory of YAML templates installed over the built
	// in templates.
	TemplateDir string

	// Watch reloads the templates when files in TemplateDir change.
	Watch bool

	// Workers is the number of sections decoded at once.
	Workers uint
}

// Validate checks for any errors in the config fields and defaults settings
// if particular parameters have not been defined.
func (c *Config) Validate() error {
	for _, v := range Variables {
		if v.Validate != nil {
			v.Validate(c)
		}
	}
	return nil
}

// Update takes a map of configuration variable names and their corresponding
// values, parses the string values and converting into correct type, and then
// sets the config struct fields as appropriate.
func (c *Config) Update(vars map[string]string) {
	for _, value := range Variables {
		if v, ok := vars[value.Name]; ok && value.Update != nil {
			value.Update(c, v)
		}
	}
}

func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
