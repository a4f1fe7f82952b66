package property

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteJSON encodes records as an indented JSON array. HTML escaping is off so
// non-ASCII and markup-bearing text is written literally.
func WriteJSON(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	for i := range records {
		records[i].Normalize()
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// ReadJSON decodes a JSON array of records and normalizes each one.
func ReadJSON(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("error decoding records: %w", err)
	}
	for i := range records {
		records[i].Normalize()
	}
	return records, nil
}

// WriteFile writes records to path via a temp file and rename, so an
// interrupted run never leaves a truncated output behind.
func WriteFile(path string, records []Record) error {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, records); err != nil {
		return err
	}
	return writeAtomic(path, buf.Bytes())
}

func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJSON(f)
}

func writeAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
