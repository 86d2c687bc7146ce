/*
battery-soh - Battery state-of-health estimation from discharge logs
Copyright (C) 2024, The Cacophony Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	arg "github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	"github.com/TheCacophonyProject/battery-soh/params"
	"github.com/TheCacophonyProject/battery-soh/pipeline"
)

var version = "<not set>"

var log = logrus.New()

type Args struct {
	InputDir  string `arg:"positional,required" help:"directory containing discharge log CSV files"`
	OutputDir string `arg:"positional,required" help:"directory to receive the coefficient table"`
	Order     int    `arg:"-o,--order" help:"polynomial order for the per-cycle voltage fit"`
	Config    string `arg:"-c,--config" help:"pipeline configuration file"`
	LogLevel  string `arg:"-l,--log-level" default:"info" help:"Set the logging level (debug, info, warn, error)"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	args := Args{}
	arg.MustParse(&args)
	return args
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
		log.Warn("Unknown log level, defaulting to info")
	}
}

type customFormatter struct{}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("[%s] %s\n", strings.ToUpper(entry.Level.String()), entry.Message)), nil
}

func main() {
	if err := runMain(); err != nil {
		log.Fatal(err.Error())
	}
}

func runMain() error {
	log.SetFormatter(new(customFormatter))
	args := procArgs()
	setLogLevel(args.LogLevel)

	log.Info("Running version: ", version)

	conf, err := pipeline.ParseConfigFile(args.Config)
	if err != nil {
		return err
	}
	if args.Order > 0 {
		conf.CycleFitOrder = args.Order
	}
	log.Debugf("Fitting order %d polynomials over logs matching %q", conf.CycleFitOrder, conf.Pattern)

	result, err := pipeline.Aggregate(context.Background(), args.InputDir, conf)
	if err != nil {
		return err
	}

	for _, skipped := range result.Skipped {
		log.Warnf("Skipped %s: %v", skipped.Path, skipped.Err)
	}
	log.Infof("Fitted %d of %d discharge logs", len(result.Files), len(result.Files)+len(result.Skipped))

	outPath := filepath.Join(args.OutputDir, params.FileName)
	if err := result.Table.WriteFile(outPath); err != nil {
		return err
	}
	log.Info("Wrote coefficient table to ", outPath)
	return nil
}
