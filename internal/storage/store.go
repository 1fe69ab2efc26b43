// Package storage persists herding trials: one CSV file per trial plus a
// SQLite index summarising every trial of every sweep.
package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Dir() string { return s.baseDir }

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// FileName builds the trial file name. Decimal points become underscores.
func FileName(p Params, at time.Time) string {
	name := fmt.Sprintf("TASpd-%s-HAStiff-%s-HADampRatio-%s-HAOffset-%s-TrialNum-%d-%s",
		formatFloat(p.TargetMaxSpeed, 2),
		formatFloat(p.Stiffness, 3),
		formatFloat(p.DampingRatio, 3),
		formatFloat(p.Offset, 2),
		p.TrialNum,
		at.Format("0201-150405"),
	)
	return strings.ReplaceAll(name, ".", "_") + ".csv"
}

// Flush writes the buffered records to a new trial file and clears the
// buffer. An empty buffer writes nothing and returns an empty name.
func (s *Store) Flush(buf *Buffer) (string, error) {
	if buf.Len() == 0 {
		return "", nil
	}
	name, err := s.WriteTrial(buf.Names, buf.Records())
	if err != nil {
		return "", err
	}
	buf.Clear()
	return name, nil
}

// WriteTrial writes records under the name derived from the first record's
// parameters. Existing files are never overwritten; a numeric suffix is added
// instead. A failed write leaves no file behind.
func (s *Store) WriteTrial(names []string, records []Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	if err := s.Init(); err != nil {
		return "", err
	}

	f, name, err := s.create(FileName(records[0].Params, s.now()))
	if err != nil {
		return "", err
	}
	if err := writeCSV(f, names, records); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return name, nil
}

func writeCSV(w io.Writer, names []string, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(names)); err != nil {
		return err
	}
	for i, r := range records {
		if len(r.Positions) != len(names) {
			return fmt.Errorf("record %d has %d positions for %d agents", i, len(r.Positions), len(names))
		}
		if err := cw.Write(r.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Store) create(name string) (*os.File, string, error) {
	base := strings.TrimSuffix(name, ".csv")
	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d.csv", base, i)
		}
		f, err := os.OpenFile(filepath.Join(s.baseDir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("storage: too many files named %s", name)
}

// Trial is a parsed trial file.
type Trial struct {
	Names   []string
	Records []Record
}

// ReadTrial loads a trial file. Leading spaces after commas are tolerated.
func ReadTrial(path string) (*Trial, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTrial(f)
}

func ParseTrial(r io.Reader) (*Trial, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("storage: read header: %w", err)
	}
	// a trailing comma leaves an empty last column
	if n := len(header); n > 0 && header[n-1] == "" {
		header = header[:n-1]
	}
	if len(header) < len(fixedColumns) {
		return nil, fmt.Errorf("storage: header has %d columns", len(header))
	}

	t := &Trial{}
	for i := len(fixedColumns); i+1 < len(header); i += 2 {
		t.Names = append(t.Names, strings.TrimSuffix(header[i], "_X"))
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if n := len(row); n > 0 && row[n-1] == "" {
			row = row[:n-1]
		}
		if len(row) == 0 {
			continue
		}
		rec, err := ParseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

// List returns the trial file names in the store, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".csv" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Path resolves a trial file name inside the store. Paths that already
// point at an existing file are returned as is.
func (s *Store) Path(name string) string {
	if _, err := os.Stat(name); err == nil {
		return name
	}
	return filepath.Join(s.baseDir, name)
}
