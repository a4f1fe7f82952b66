package assets

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Failure is a download that did not succeed. Path is where the file would
// have gone.
type Failure struct {
	URL  string
	Path string
}

// Report lists every localized asset by outcome, in the order they were seen.
type Report struct {
	Downloaded []string
	Skipped    []string
	Failed     []Failure
}

// WriteLog renders the report as three titled sections.
func (r *Report) WriteLog(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "==== Downloaded Files ====")
	for _, p := range r.Downloaded {
		fmt.Fprintf(bw, "Downloaded: %s\n", p)
	}
	fmt.Fprintln(bw, "\n==== Skipped Files (Already Exists) ====")
	for _, p := range r.Skipped {
		fmt.Fprintf(bw, "Skipped: %s\n", p)
	}
	fmt.Fprintln(bw, "\n==== Failed Downloads ====")
	for _, f := range r.Failed {
		fmt.Fprintf(bw, "Failed: %s -> %s\n", f.URL, f.Path)
	}
	return bw.Flush()
}

func (r *Report) WriteLogFile(path string) error {
	var buf bytes.Buffer
	if err := r.WriteLog(&buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("error writing download log: %w", err)
	}
	return nil
}

func (r *Report) LogAttrs() []any {
	return []any{
		"downloaded", len(r.Downloaded),
		"skipped", len(r.Skipped),
		"failed", len(r.Failed),
	}
}
