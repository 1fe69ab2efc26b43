package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Params are the per-trial constants repeated on every row.
type Params struct {
	TrialNum        int
	TrialMaxTime    float64
	TrialMaxSamples int
	TargetMaxSpeed  float64
	Stiffness       float64
	DampingRatio    float64
	Damping         float64
	Offset          float64
}

// Point is a planar position.
type Point struct {
	X, Z float64
}

// Record is one sampled tick of a trial.
type Record struct {
	Params
	Time      float64
	Contained bool
	Positions []Point
}

var fixedColumns = []string{
	"TrialNum",
	"TrialMaxTime",
	"TrialMaxSamples",
	"TA_MaxSpeed",
	"HA_Stiffness",
	"HA_DampingRatio",
	"HA_Dampening",
	"HA_Offset",
	"Time",
	"Contained",
}

// Header returns the column names for agents listed in recording order.
func Header(names []string) []string {
	h := make([]string, 0, len(fixedColumns)+2*len(names))
	h = append(h, fixedColumns...)
	for _, n := range names {
		h = append(h, n+"_X", n+"_Z")
	}
	return h
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// Row formats r using the column precisions of the trial files.
func (r Record) Row() []string {
	contained := "0"
	if r.Contained {
		contained = "1"
	}
	row := make([]string, 0, len(fixedColumns)+2*len(r.Positions))
	row = append(row,
		strconv.Itoa(r.TrialNum),
		formatFloat(r.TrialMaxTime, -1),
		strconv.Itoa(r.TrialMaxSamples),
		formatFloat(r.TargetMaxSpeed, 2),
		formatFloat(r.Stiffness, 4),
		formatFloat(r.DampingRatio, 4),
		formatFloat(r.Damping, 4),
		formatFloat(r.Offset, 4),
		formatFloat(r.Time, 6),
		contained,
	)
	for _, p := range r.Positions {
		row = append(row, formatFloat(p.X, 6), formatFloat(p.Z, 6))
	}
	return row
}

// ParseRow is the inverse of Row.
func ParseRow(row []string) (Record, error) {
	if len(row) < len(fixedColumns) || (len(row)-len(fixedColumns))%2 != 0 {
		return Record{}, fmt.Errorf("storage: row has %d columns", len(row))
	}
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}

	var r Record
	var err error
	ints := []struct {
		dst *int
		col int
	}{
		{&r.TrialNum, 0},
		{&r.TrialMaxSamples, 2},
	}
	for _, f := range ints {
		if *f.dst, err = strconv.Atoi(row[f.col]); err != nil {
			return Record{}, fmt.Errorf("storage: column %s: %w", fixedColumns[f.col], err)
		}
	}

	floats := []struct {
		dst *float64
		col int
	}{
		{&r.TrialMaxTime, 1},
		{&r.TargetMaxSpeed, 3},
		{&r.Stiffness, 4},
		{&r.DampingRatio, 5},
		{&r.Damping, 6},
		{&r.Offset, 7},
		{&r.Time, 8},
	}
	for _, f := range floats {
		if *f.dst, err = strconv.ParseFloat(row[f.col], 64); err != nil {
			return Record{}, fmt.Errorf("storage: column %s: %w", fixedColumns[f.col], err)
		}
	}

	switch row[9] {
	case "1":
		r.Contained = true
	case "0":
	default:
		return Record{}, fmt.Errorf("storage: column Contained: unexpected %q", row[9])
	}

	rest := row[len(fixedColumns):]
	r.Positions = make([]Point, len(rest)/2)
	for i := range r.Positions {
		x, err := strconv.ParseFloat(rest[2*i], 64)
		if err != nil {
			return Record{}, fmt.Errorf("storage: position %d: %w", i, err)
		}
		z, err := strconv.ParseFloat(rest[2*i+1], 64)
		if err != nil {
			return Record{}, fmt.Errorf("storage: position %d: %w", i, err)
		}
		r.Positions[i] = Point{X: x, Z: z}
	}
	return r, nil
}

// Buffer accumulates the records of the running trial.
type Buffer struct {
	Names   []string
	records []Record
}

func NewBuffer(names []string) *Buffer {
	return &Buffer{Names: names}
}

func (b *Buffer) Append(r Record) { b.records = append(b.records, r) }

func (b *Buffer) Len() int { return len(b.records) }

func (b *Buffer) Records() []Record { return b.records }

func (b *Buffer) Clear() { b.records = b.records[:0] }
