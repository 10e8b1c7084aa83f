package sorter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ephyslab/sortpipe/internal/sheet"
)

// ManifestName is the provenance manifest written next to sorting output.
const ManifestName = "session.csv"

// WriteManifest snapshots the contributing trial records as session.csv in
// the sorting output directory, so a sorted session always names the exact
// rows it was built from.
func WriteManifest(dir string, records []sheet.TrialRecord) error {
	f, err := os.Create(filepath.Join(dir, ManifestName))
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		sheet.ColTrialName, sheet.ColPath, sheet.ColProbeType,
		sheet.ColNumChannels, sheet.ColInclude, sheet.ColAreas,
	}); err != nil {
		return err
	}
	for _, r := range records {
		include := "N"
		if r.Include {
			include = "Y"
		}
		if err := w.Write([]string{
			r.TrialName, r.RelPath, string(r.ProbeType),
			strconv.Itoa(r.NumChannels), include, r.Area,
		}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
