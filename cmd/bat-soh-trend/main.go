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
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	arg "github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	"github.com/TheCacophonyProject/battery-soh/degradation"
	"github.com/TheCacophonyProject/battery-soh/params"
	"github.com/TheCacophonyProject/battery-soh/pipeline"
)

var version = "<not set>"

var log = logrus.New()

type Args struct {
	ParamsFile string  `arg:"positional,required" help:"path to a previously produced coefficient table (Params.csv)"`
	Order      int     `arg:"-o,--order" help:"polynomial order for the degradation trend fit"`
	Fraction   float64 `arg:"--fraction" help:"fraction of the data span used for each local smoothing fit"`
	OutputFile string  `arg:"--out" help:"write smoothed and predicted trend points to this CSV file"`
	Config     string  `arg:"-c,--config" help:"pipeline configuration file"`
	LogLevel   string  `arg:"-l,--log-level" default:"info" help:"Set the logging level (debug, info, warn, error)"`
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
		conf.TrendFitOrder = args.Order
	}
	if args.Fraction > 0 {
		conf.LowessFraction = args.Fraction
	}

	table, err := params.ReadFile(args.ParamsFile)
	if err != nil {
		return err
	}
	log.Infof("Loaded coefficient table with %d cycles and %d coefficients", len(table.Rows), table.Order)

	result, err := degradation.Estimate(context.Background(), table, conf.TrendOptions())
	if err != nil {
		return err
	}

	for _, skipped := range result.Skipped {
		log.Warnf("Skipped w%d: %v", skipped.Column+1, skipped.Err)
	}
	for _, trend := range result.Trends {
		log.Infof("w%d: fitted over cycles 1-%d, trend %s", trend.Column+1, trend.TruncatedAt+1, formatPoly(trend.Coeffs))
	}
	log.Infof("Estimated trends for %d of %d coefficients", len(result.Trends), table.Order)

	if args.OutputFile != "" {
		if err := writeTrendPoints(args.OutputFile, result.Trends); err != nil {
			return err
		}
		log.Info("Wrote trend points to ", args.OutputFile)
	}
	return nil
}

func formatPoly(coeffs []float64) string {
	terms := make([]string, len(coeffs))
	for k, c := range coeffs {
		terms[k] = fmt.Sprintf("%.4gx^%d", c, k+1)
	}
	return strings.Join(terms, " + ")
}

// writeTrendPoints writes the diagnostic points of every trend as one
// flat CSV: coefficient, cycle, smoothed, predicted.
func writeTrendPoints(path string, trends []*degradation.Trend) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trend output: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"coefficient", "cycle", "smoothed", "predicted"}); err != nil {
		return err
	}
	for _, trend := range trends {
		name := fmt.Sprintf("w%d", trend.Column+1)
		for _, pt := range trend.Points {
			record := []string{
				name,
				strconv.Itoa(pt.Cycle),
				strconv.FormatFloat(pt.Smoothed, 'g', -1, 64),
				strconv.FormatFloat(pt.Predicted, 'g', -1, 64),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}
