// Package results - collects per-image scores and exports them as CSV.
package results

import (
	"io"
	"os"
	"sync"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

// Record is one scored image.
type Record struct {
	// FileName is the image path as it was scanned.
	FileName string `csv:"file_name" json:"file_name"`
	// Value is the pattern quality score.
	Value float64 `csv:"value" json:"value"`
}

// Sink accumulates records from concurrent workers.
type Sink struct {
	mu      sync.Mutex
	records []Record
}

// NewSink creates an empty Sink.
func NewSink() *Sink {
	return &Sink{}
}

// Add appends a record.
func (s *Sink) Add(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

// Records returns a copy of the records in insertion order.
func (s *Sink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len is the number of records.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// WriteCSV writes a file_name,value header followed by one row per record.
func (s *Sink) WriteCSV(w io.Writer) error {
	records := s.Records()
	if len(records) == 0 {
		// Header only.
		_, err := io.WriteString(w, "file_name,value\n")
		return errors.Wrap(err, "write csv")
	}
	return errors.Wrap(gocsv.Marshal(&records, w), "write csv")
}

// WriteFile writes the CSV to path, replacing any existing file.
func (s *Sink) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := s.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// ReadCSV parses records previously written by WriteCSV.
func ReadCSV(r io.Reader) ([]Record, error) {
	var records []Record
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, errors.Wrap(err, "read csv")
	}
	return records, nil
}
