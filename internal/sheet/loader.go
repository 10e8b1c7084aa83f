package sheet

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ephyslab/sortpipe/internal/config"
)

// ErrSourceUnavailable means the remote sheet could not be retrieved.
// Fatal to the whole run: nothing can proceed without the manifest.
var ErrSourceUnavailable = errors.New("session sheet unavailable")

// Fetcher retrieves the raw tabular source for a locator. The pipeline uses
// [HTTPFetcher]; tests substitute readers.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) (io.ReadCloser, error)
}

// HTTPFetcher GETs a CSV export URL (a published sheet link).
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher with a sane request timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 60 * time.Second}}
}

// Fetch implements [Fetcher]. Transport errors and non-2xx responses both
// map to [ErrSourceUnavailable].
func (f *HTTPFetcher) Fetch(ctx context.Context, locator string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrSourceUnavailable, resp.StatusCode, locator)
	}
	return resp.Body, nil
}

// Fetch retrieves and parses the sheet in one step.
func Fetch(ctx context.Context, f Fetcher, locator string) (*Sheet, error) {
	body, err := f.Fetch(ctx, locator)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return Load(body)
}

// Load parses a CSV sheet into typed records, preserving input row order.
// It fails fast with a named error on a missing required column, a bad
// channel count, or a duplicate trial name.
func Load(r io.Reader) (*Sheet, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1 // Published exports drop trailing empty cells.

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read sheet header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{ColTrialName, ColPath, ColProbeType, ColNumChannels, ColInclude} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("sheet is missing required column %q", required)
		}
	}
	areaCol, hasAreaCol := cols[ColAreas]

	s := &Sheet{}
	seen := make(map[string]bool)
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read sheet row: %w", err)
		}
		line++

		rec := TrialRecord{
			TrialName: field(row, cols[ColTrialName]),
			RelPath:   field(row, cols[ColPath]),
			Include:   field(row, cols[ColInclude]) == "Y",
		}
		if rec.TrialName == "" {
			// Trailing blank rows are common in shared sheets.
			continue
		}
		if seen[rec.TrialName] {
			return nil, fmt.Errorf("duplicate trial name %q (row %d)", rec.TrialName, line)
		}
		seen[rec.TrialName] = true

		// Probe types outside the known set survive loading; the probe
		// filter excludes them later. Keeps the enum extensible sheet-side.
		rec.ProbeType = config.ProbeType(field(row, cols[ColProbeType]))
		n, err := strconv.Atoi(field(row, cols[ColNumChannels]))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("trial %q: invalid channel count %q (row %d)",
				rec.TrialName, field(row, cols[ColNumChannels]), line)
		}
		rec.NumChannels = n

		if hasAreaCol {
			rec.Area = field(row, areaCol)
			if rec.Include && rec.Area != "" {
				s.AreaTagged = true
			}
		}
		s.Records = append(s.Records, rec)
	}
	return s, nil
}

// field returns the trimmed cell at idx, tolerating short rows (published
// CSV exports drop trailing empty cells).
func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
