/*
DESCRIPTION
  variables.go contains a list of structs that provide a variable Name, type in
  a string format, a function for updating the variable in the Config struct
  from a string, and finally, a validation function to check the validity of the
  corresponding field value in the Config.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ausocean/utils/logging"
)

// Config map Keys.
const (
	KeyColor       = "Color"
	KeyFormat      = "Format"
	KeyInputPath   = "InputPath"
	KeyLogging     = "logging"
	KeyLogPath     = "LogPath"
	KeyNoBuiltin   = "NoBuiltin"
	KeyOffsets     = "Offsets"
	KeyPIDs        = "PIDs"
	KeyShowHidden  = "ShowHidden"
	KeySuppress    = "Suppress"
	KeyTemplateDir = "TemplateDir"
	KeyWatch       = "Watch"
	KeyWorkers     = "Workers"
)

// Config map parameter types.
const (
	typeString = "string"
	typeUint   = "uint"
	typeBool   = "bool"
)

// Default variable values.
const (
	defaultFormat    = FormatText
	defaultInputPath = "-"
	defaultVerbosity = logging.Warning
	defaultWorkers   = 4

	maxPID = 0x1fff
)

// Variables describes the variables that can be used for tsinspect control.
// These structs provide the name and type of variable, a function for updating
// this variable in a Config, and a function for validating the value of the variable.
var Variables = []struct {
	Name     string
	Type     string
	Update   func(*Config, string)
	Validate func(*Config)
}{
	{
		Name:   KeyColor,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.Color = parseBool(KeyColor, v, c) },
	},
	{
		Name: KeyFormat,
		Type: "enum:text,yaml",
		Update: func(c *Config, v string) {
			c.Format = parseEnum(
				KeyFormat,
				v,
				map[string]uint8{
					"text": FormatText,
					"yaml": FormatYAML,
				},
				c,
			)
		},
		Validate: func(c *Config) {
			switch c.Format {
			case FormatText, FormatYAML:
			default:
				c.LogInvalidField(KeyFormat, defaultFormat)
				c.Format = defaultFormat
			}
		},
	},
	{
		Name:   KeyInputPath,
		Type:   typeString,
		Update: func(c *Config, v string) { c.InputPath = v },
		Validate: func(c *Config) {
			if c.InputPath == "" {
				c.LogInvalidField(KeyInputPath, defaultInputPath)
				c.InputPath = defaultInputPath
			}
		},
	},
	{
		Name: KeyLogging,
		Type: "enum:Debug,Info,Warning,Error,Fatal",
		Update: func(c *Config, v string) {
			switch v {
			case "Debug":
				c.LogLevel = logging.Debug
			case "Info":
				c.LogLevel = logging.Info
			case "Warning":
				c.LogLevel = logging.Warning
			case "Error":
				c.LogLevel = logging.Error
			case "Fatal":
				c.LogLevel = logging.Fatal
			default:
				c.Logger.Warning("invalid Logging param", "value", v)
			}
		},
		Validate: func(c *Config) {
			switch c.LogLevel {
			case logging.Debug, logging.Info, logging.Warning, logging.Error, logging.Fatal:
			default:
				c.LogInvalidField("LogLevel", defaultVerbosity)
				c.LogLevel = defaultVerbosity
			}
		},
	},
	{
		Name:   KeyLogPath,
		Type:   typeString,
		Update: func(c *Config, v string) { c.LogPath = v },
	},
	{
		Name:   KeyNoBuiltin,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.NoBuiltin = parseBool(KeyNoBuiltin, v, c) },
		Validate: func(c *Config) {
			if c.NoBuiltin && c.TemplateDir == "" {
				c.Logger.Warning("no templates; every section will use the default grammar")
			}
		},
	},
	{
		Name:   KeyOffsets,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.Offsets = parseBool(KeyOffsets, v, c) },
	},
	{
		Name: KeyPIDs,
		Type: typeString,
		Update: func(c *Config, v string) {
			v = strings.Replace(v, " ", "", -1)
			pids := make([]uint16, 0)
			if v == "" {
				c.PIDs = pids
				return
			}
			for _, e := range strings.Split(v, ",") {
				p, err := strconv.ParseUint(e, 0, 16)
				if err != nil {
					c.Logger.Warning("invalid PIDs param", "value", e)
					continue
				}
				pids = append(pids, uint16(p))
			}
			c.PIDs = pids
		},
		Validate: func(c *Config) {
			var pids []uint16
			for _, p := range c.PIDs {
				if p > maxPID {
					c.Logger.Warning("ignoring PID out of range", "pid", p)
					continue
				}
				pids = append(pids, p)
			}
			if len(pids) != len(c.PIDs) {
				c.PIDs = pids
			}
		},
	},
	{
		Name:   KeyShowHidden,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.ShowHidden = parseBool(KeyShowHidden, v, c) },
	},
	{
		Name:   KeySuppress,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.Suppress = parseBool(KeySuppress, v, c) },
	},
	{
		Name:   KeyTemplateDir,
		Type:   typeString,
		Update: func(c *Config, v string) { c.TemplateDir = v },
	},
	{
		Name:   KeyWatch,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.Watch = parseBool(KeyWatch, v, c) },
		Validate: func(c *Config) {
			if c.Watch && c.TemplateDir == "" {
				c.LogInvalidField(KeyWatch, false)
				c.Watch = false
			}
		},
	},
	{
		Name:   KeyWorkers,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Workers = parseUint(KeyWorkers, v, c) },
		Validate: func(c *Config) {
			c.Workers = lessThanOrEqual(KeyWorkers, c.Workers, 0, c, defaultWorkers)
		},
	},
}

func parseUint(n, v string, c *Config) uint {
	_v, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected unsigned int for param %s", n), "value", v)
	}
	return uint(_v)
}

func parseBool(n, v string, c *Config) (b bool) {
	switch strings.ToLower(v) {
	case "true":
		b = true
	case "false":
		b = false
	default:
		c.Logger.Warning(fmt.Sprintf("expect bool for param %s", n), "value", v)
	}
	return
}

func parseEnum(n, v string, enums map[string]uint8, c *Config) uint8 {
	_v, ok := enums[strings.ToLower(v)]
	if !ok {
		c.Logger.Warning(fmt.Sprintf("invalid value for %s param", n), "value", v)
	}
	return _v
}

func lessThanOrEqual(n string, v, cmp uint, c *Config, def uint) uint {
	if v <= cmp {
		c.LogInvalidField(n, def)
		return def
	}
	return v
}
