// Package report writes uncertainty goal results as JSON, CSV, HTML and XLSX.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/uncertainty-goals/internal/model"
)

// Format is an output file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
	FormatXLSX Format = "xlsx"
)

// ParseFormats validates format names, dropping duplicates.
func ParseFormats(names []string) ([]Format, error) {
	seen := make(map[Format]bool)
	var out []Format
	for _, n := range names {
		f := Format(strings.ToLower(strings.TrimSpace(n)))
		switch f {
		case FormatJSON, FormatCSV, FormatHTML, FormatXLSX:
		case "":
			continue
		default:
			return nil, eris.Errorf("report: unsupported format %q", n)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// FileName is the file a container is written to for a format.
func FileName(c *model.UncertaintyGoalListContainer, f Format) string {
	return c.PatientID + "_planUncertaintyGoals." + string(f)
}

// WriteJSON writes c with its exported field names. Undefined values are null.
func WriteJSON(w io.Writer, c *model.UncertaintyGoalListContainer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(c), "report: encode json")
}

// formatValue renders a value with two decimals.
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.2f", v)
}

// Writer writes a container in every configured format into Dir.
type Writer struct {
	Dir     string
	Formats []Format
	Now     func() time.Time
}

// WriteAll writes every format and returns the written paths in format order.
func (w *Writer) WriteAll(c *model.UncertaintyGoalListContainer) ([]string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create output dir %s", w.Dir)
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	var paths []string
	for _, f := range w.Formats {
		var buf bytes.Buffer
		var err error
		switch f {
		case FormatJSON:
			err = WriteJSON(&buf, c)
		case FormatCSV:
			err = WriteCSV(&buf, c)
		case FormatHTML:
			err = WriteHTML(&buf, c, now())
		case FormatXLSX:
			err = WriteXLSX(&buf, c)
		default:
			err = eris.Errorf("report: unsupported format %q", f)
		}
		if err != nil {
			return paths, err
		}

		path := filepath.Join(w.Dir, FileName(c, f))
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return paths, eris.Wrapf(err, "report: write %s", path)
		}
		zap.L().Info("report: written", zap.String("format", string(f)), zap.String("path", path))
		paths = append(paths, path)
	}
	return paths, nil
}
