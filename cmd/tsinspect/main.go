/*
DESCRIPTION
  tsinspect decodes the PSI and SI sections of an MPEG-TS stream, or a
  section or descriptor loop given in hex, using YAML templates, and writes
  the decoded fields as text or YAML.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/tsinspect/config"
	"github.com/ausocean/tsinspect/syntax/decode"
	"github.com/ausocean/tsinspect/syntax/grammar"
	"github.com/ausocean/tsinspect/syntax/render"
	"github.com/ausocean/tsinspect/syntax/template"
	"github.com/ausocean/utils/logging"
)

const version = "v0.1.0"

// Logging related constants.
const (
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
)

// flagKeys maps command line flags to the config variables they set.
var flagKeys = map[string]string{
	"color":      config.KeyColor,
	"format":     config.KeyFormat,
	"hidden":     config.KeyShowHidden,
	"in":         config.KeyInputPath,
	"log":        config.KeyLogPath,
	"loglevel":   config.KeyLogging,
	"no-builtin": config.KeyNoBuiltin,
	"offsets":    config.KeyOffsets,
	"pids":       config.KeyPIDs,
	"suppress":   config.KeySuppress,
	"templates":  config.KeyTemplateDir,
	"watch":      config.KeyWatch,
	"workers":    config.KeyWorkers,
}

func main() {
	showVersion := flag.Bool("version", false, "show version")
	sectionHex := flag.String("section", "", "decode a single section given in hex instead of reading MPEG-TS")
	descriptorHex := flag.String("descriptor", "", "decode a descriptor loop given in hex instead of reading MPEG-TS")
	flag.String("in", "-", "MPEG-TS file to read, - for standard input")
	flag.String("templates", "", "directory of YAML templates to install over the built in templates")
	flag.Bool("no-builtin", false, "do not install the built in templates")
	flag.String("pids", "", "comma separated PIDs to decode, default PSI and SI PIDs")
	flag.Uint("workers", 0, "number of sections decoded at once")
	flag.String("format", "text", "output format, text or yaml")
	flag.Bool("hidden", false, "also output fields the templates do not show")
	flag.Bool("offsets", false, "start each output line with the field's byte position")
	flag.Bool("color", false, "use ANSI colors in text output")
	flag.Bool("watch", false, "reload templates when the template directory changes")
	flag.String("log", "", "file to also write logs to")
	flag.String("loglevel", "Warning", "logging level: Debug, Info, Warning, Error or Fatal")
	flag.Bool("suppress", false, "suppress repeated log messages")
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	vars := make(map[string]string)
	flag.VisitAll(func(f *flag.Flag) {
		if k, ok := flagKeys[f.Name]; ok {
			vars[k] = f.Value.String()
		}
	})

	// Parse problems are reported before the configured logger exists.
	c := config.Config{Logger: logging.New(logging.Warning, os.Stderr, false)}
	c.Update(vars)
	err := c.Validate()
	if err != nil {
		c.Logger.Fatal("invalid config", "error", err.Error())
	}

	var w io.Writer = os.Stderr
	if c.LogPath != "" {
		fileLog := &lumberjack.Logger{
			Filename:   c.LogPath,
			MaxSize:    logMaxSize,
			MaxBackups: logMaxBackup,
			MaxAge:     logMaxAge,
		}
		defer fileLog.Close()
		w = io.MultiWriter(os.Stderr, fileLog)
	}
	log := logging.New(c.LogLevel, w, c.Suppress)
	c.Logger = log
	log.Info("starting tsinspect", "version", version)

	reg := grammar.NewRegistry()
	set, err := template.Load(c.TemplateDir, c.NoBuiltin)
	if err != nil {
		log.Fatal("could not load templates", "error", err.Error())
	}
	err = template.Install(reg, set)
	if err != nil {
		log.Fatal("could not install templates", "error", err.Error())
	}
	d, s := reg.Snapshot().Len()
	log.Info("installed templates", "descriptors", d, "sections", s)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if c.Watch {
		tw := template.NewWatcher(reg, c.TemplateDir, c.NoBuiltin, log)
		go func() {
			err := tw.Run(ctx)
			if err != nil {
				log.Error("template watcher stopped", "error", err.Error())
			}
		}()
	}

	in := newInspector(decode.New(reg, log), log, os.Stdout, &c)

	switch {
	case *sectionHex != "":
		err = in.sectionHex(*sectionHex)
	case *descriptorHex != "":
		err = in.descriptorHex(*descriptorHex)
	default:
		err = inspectFile(ctx, in, c.InputPath, c.PIDs)
	}
	if err != nil {
		log.Fatal("inspection failed", "error", err.Error())
	}
	log.Info("done", "sections", in.decoded, "failed", in.failed)
}

// inspectFile reads MPEG-TS from path, or standard input for "-".
func inspectFile(ctx context.Context, in *inspector, path string, pids []uint16) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	return in.stream(ctx, r, pids)
}

// renderOptions returns the render options named by c.
func renderOptions(c *config.Config) render.Options {
	return render.Options{Hidden: c.ShowHidden, Color: c.Color, Offsets: c.Offsets}
}
