package discharge

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const secondsPerHour = 3600

// Required columns in a discharge log.
const (
	VoltageColumn  = "Voltage_measured"
	CurrentColumn  = "Current_measured"
	TimeColumn     = "Time"
	CapacityColumn = "Capacity"
)

var (
	ErrEmptyLog      = errors.New("discharge log has no samples")
	ErrMissingColumn = errors.New("discharge log is missing a required column")
)

// Sample holds one discharge cycle's measurements. The series are
// truncated at the index of minimum measured voltage; readings after
// that point are logging artifacts and are discarded on parse.
type Sample struct {
	Time     []float64 // seconds since the start of the cycle
	Voltage  []float64
	Current  []float64
	Capacity float64 // rated capacity in Ah, constant per log
}

// ReadFile parses the discharge log at path.
func ReadFile(path string) (*Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening discharge log: %w", err)
	}
	defer file.Close()

	sample, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sample, nil
}

// Read parses a discharge log from r. The log must have a header row
// naming at least the Voltage_measured, Current_measured, Time and
// Capacity columns. The rated capacity is taken from the first data
// row.
func Read(r io.Reader) (*Sample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyLog
	}
	if err != nil {
		return nil, fmt.Errorf("reading discharge log header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, name := range []string{VoltageColumn, CurrentColumn, TimeColumn, CapacityColumn} {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	sample := &Sample{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading discharge log: %w", err)
		}

		voltage, err := parseField(record, columns[VoltageColumn], VoltageColumn)
		if err != nil {
			return nil, err
		}
		current, err := parseField(record, columns[CurrentColumn], CurrentColumn)
		if err != nil {
			return nil, err
		}
		elapsed, err := parseField(record, columns[TimeColumn], TimeColumn)
		if err != nil {
			return nil, err
		}

		// Capacity is constant per log, read it from the first row.
		if len(sample.Voltage) == 0 {
			capacity, err := parseField(record, columns[CapacityColumn], CapacityColumn)
			if err != nil {
				return nil, err
			}
			if capacity <= 0 {
				return nil, fmt.Errorf("rated capacity must be positive, got %v", capacity)
			}
			sample.Capacity = capacity
		}

		sample.Voltage = append(sample.Voltage, voltage)
		sample.Current = append(sample.Current, current)
		sample.Time = append(sample.Time, elapsed)
	}

	if len(sample.Voltage) == 0 {
		return nil, ErrEmptyLog
	}

	sample.truncateAtVoltageMinimum()
	return sample, nil
}

func parseField(record []string, index int, name string) (float64, error) {
	if index >= len(record) {
		return 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(record[index]), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s value %q: %w", name, record[index], err)
	}
	return value, nil
}

// truncateAtVoltageMinimum drops everything after the global voltage
// minimum, keeping the range [0, minIndex] inclusive.
func (s *Sample) truncateAtVoltageMinimum() {
	minIndex := 0
	for i, v := range s.Voltage {
		if v < s.Voltage[minIndex] {
			minIndex = i
		}
	}
	s.Time = s.Time[:minIndex+1]
	s.Voltage = s.Voltage[:minIndex+1]
	s.Current = s.Current[:minIndex+1]
}

// StateOfCharge derives the state-of-charge series from the measured
// current and elapsed time: 1 + I·t/(C·3600), floored at 0. Discharge
// currents are negative so the value falls from 1 towards 0 as the
// cycle progresses.
func (s *Sample) StateOfCharge() []float64 {
	soc := make([]float64, len(s.Time))
	for i := range soc {
		v := 1 + s.Current[i]*s.Time[i]/(s.Capacity*secondsPerHour)
		if v < 0 {
			v = 0
		}
		soc[i] = v
	}
	return soc
}
