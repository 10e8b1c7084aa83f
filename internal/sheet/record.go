// Package sheet loads the remotely hosted session spreadsheet (CSV export)
// into typed trial records. Parsing is the only transformation: column names
// are matched verbatim and every required field is validated at the load
// boundary so downstream code never sees a malformed row.
package sheet

import (
	"path/filepath"

	"github.com/ephyslab/sortpipe/internal/config"
)

// Required and optional column names, matched verbatim against the header.
const (
	ColTrialName   = "trial_name"
	ColPath        = "path"
	ColProbeType   = "probe_type"
	ColNumChannels = "num_channels"
	ColInclude     = "Include"
	ColAreas       = "Areas"
)

// TrialRecord is one spreadsheet row in typed form. TrialName follows the
// lab convention <date>_<animal>_<label>[...].
type TrialRecord struct {
	TrialName   string
	RelPath     string // The sheet's path column, joined under the run root.
	ProbeType   config.ProbeType
	NumChannels int
	Include     bool   // From the Include column, "Y" means included.
	Area        string // Optional brain-area tag from the Areas column.
}

// BasePath returns the absolute directory holding this trial's recordings.
func (r *TrialRecord) BasePath(root string) string {
	return filepath.Join(root, r.RelPath)
}

// Sheet is the loaded record set plus what was learned about its shape.
type Sheet struct {
	Records []TrialRecord

	// AreaTagged reports whether the Areas column exists and is populated
	// on at least one included row. It drives the one-time key-mode choice;
	// nothing downstream re-inspects row shape.
	AreaTagged bool
}

// ResolveKeyMode turns the configured mode into a concrete one. Auto keys by
// animal/date/area exactly when the sheet carries area tags; forced modes
// pass through. Called once per run, after loading.
func (s *Sheet) ResolveKeyMode(mode config.KeyMode) config.KeyMode {
	if mode != config.KeyAuto {
		return mode
	}
	if s.AreaTagged {
		return config.KeyAnimalDateArea
	}
	return config.KeyAnimalDate
}
