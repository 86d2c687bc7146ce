package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/TheCacophonyProject/battery-soh/discharge"
	"github.com/TheCacophonyProject/battery-soh/params"
	"github.com/TheCacophonyProject/battery-soh/polyfit"
)

// SkippedFile records a discharge log that could not be processed.
type SkippedFile struct {
	Path string
	Err  error
}

// AggregateResult is the outcome of one aggregation batch. Row i of
// the table holds the coefficients fitted from Files[i].
type AggregateResult struct {
	Table   *params.Table
	Files   []string
	Skipped []SkippedFile
}

// Aggregate fits the voltage versus state-of-charge polynomial for
// every discharge log in dir matching the configured pattern and
// collects the coefficient vectors into a table, one row per cycle.
// Logs are ordered by the cycle number parsed from their file name, so
// row order is cycle order rather than directory listing order.
//
// Files are fitted concurrently but results are placed by index, so
// the table is identical regardless of completion order. A log that
// fails to parse or fit is skipped and recorded, not fatal.
func Aggregate(ctx context.Context, dir string, conf Config) (*AggregateResult, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	files, err := listCycleFiles(dir, conf.Pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no discharge logs matching %q in %s", conf.Pattern, dir)
	}

	rows := make([][]float64, len(files))
	errs := make([]error, len(files))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(conf.Workers)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			coeffs, err := fitCycle(path, conf.CycleFitOrder)
			if err != nil {
				errs[i] = err
				return nil
			}
			rows[i] = coeffs
			return nil
		})
	}
	g.Wait()

	result := &AggregateResult{Table: params.New(conf.CycleFitOrder)}
	for i, path := range files {
		if errs[i] != nil {
			result.Skipped = append(result.Skipped, SkippedFile{Path: path, Err: errs[i]})
			continue
		}
		if err := result.Table.Append(rows[i]); err != nil {
			return nil, err
		}
		result.Files = append(result.Files, path)
	}
	return result, nil
}

func fitCycle(path string, order int) ([]float64, error) {
	sample, err := discharge.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fit, err := polyfit.Solve(sample.StateOfCharge(), sample.Voltage, order)
	if err != nil {
		return nil, fmt.Errorf("fitting %s: %w", filepath.Base(path), err)
	}
	return fit.Coeffs, nil
}

var digitRuns = regexp.MustCompile(`\d+`)

// listCycleFiles globs dir for discharge logs and sorts them by cycle
// number. The cycle number is the last run of digits in the file name,
// e.g. B0005_discharge_12.csv sorts as cycle 12. Files without a
// number sort after numbered ones, by name.
func listCycleFiles(dir, pattern string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("listing discharge logs: %w", err)
	}
	sort.Slice(files, func(i, j int) bool {
		ni, oki := cycleNumber(files[i])
		nj, okj := cycleNumber(files[j])
		if oki && okj && ni != nj {
			return ni < nj
		}
		if oki != okj {
			return oki
		}
		return files[i] < files[j]
	})
	return files, nil
}

func cycleNumber(path string) (int, bool) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	runs := digitRuns.FindAllString(base, -1)
	if len(runs) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(runs[len(runs)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}
