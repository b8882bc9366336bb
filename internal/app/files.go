package app

import (
	"fmt"
	"os"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
)

// ReadCandidates loads a candidate CSV.
func ReadCandidates(path string) ([]candidate.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	records, err := candidate.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// WriteCandidates writes records to path, replacing it.
func WriteCandidates(path string, records []candidate.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	if err := candidate.WriteCSV(f, records); err != nil {
		return err
	}
	return f.Close()
}
