// Package config holds runtime configuration: defaults, the optional YAML
// config file, CLI flag overrides, and validation. Everything the pipeline
// needs travels in one Config value; there is no process-wide mutable state.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// --- Enum types for validated string fields ---

// ProbeType identifies a supported probe family from the sheet.
type ProbeType string

const (
	ProbeNP2   ProbeType = "NP2_openephys" // Neuropixels 2.0 via open-ephys.
	ProbeAxona ProbeType = "5x12_buz"      // 5x12 Buzsaki probe recorded on Axona.
)

// KeyMode selects the session-key shape. Auto is resolved once at load time
// from the Areas column and never re-inferred mid-run.
type KeyMode string

const (
	KeyAuto           KeyMode = "auto"
	KeyAnimalDate     KeyMode = "by-animal-date"
	KeyAnimalDateArea KeyMode = "by-animal-date-area"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig],
// optionally overlaid from a YAML file by [LoadFile], then mutated by CLI
// flags before being passed (by pointer) to the packages that need it.
type Config struct {
	// Core run parameters.
	RootPath      string    `yaml:"root_path"`      // Recording root; sheet paths are joined under it.
	SheetURL      string    `yaml:"sheet_url"`      // CSV export locator of the session sheet.
	ProbeFilter   ProbeType `yaml:"probe_filter"`   // Only rows of this probe type are processed.
	SortingSuffix string    `yaml:"sorting_suffix"` // Default: "sorted". Names the sorter output dir.
	KeyMode       KeyMode   `yaml:"key_mode"`       // Default: "auto".

	// External sorter backends, one per probe family.
	NP2SorterCmd    string   `yaml:"np2_sorter_cmd"`    // Default: "kilosort4".
	NP2SorterArgs   []string `yaml:"np2_sorter_args"`   // Extra args placed before the built argv.
	AxonaSorterCmd  string   `yaml:"axona_sorter_cmd"`  // Default: "klustakwik".
	AxonaSorterArgs []string `yaml:"axona_sorter_args"` // Extra args placed before the built argv.

	// Behavior flags.
	DryRun            bool `yaml:"dry_run"`
	SkipExisting      bool `yaml:"skip_existing"`      // Default: true. Cleared by --force.
	StrictFingerprint bool `yaml:"strict_fingerprint"` // Fail a session on fingerprint mismatch instead of warning.

	// Display and logging.
	Verbose   bool      `yaml:"verbose"`
	ColorMode ColorMode `yaml:"color"`    // Default: "auto".
	LogFile   string    `yaml:"log_file"` // Optional log file path.
}

// DefaultConfig returns a Config with the defaults the lab runs with.
// Used as the base before config file and CLI overrides apply.
func DefaultConfig() Config {
	return Config{
		ProbeFilter:    ProbeNP2,
		SortingSuffix:  "sorted",
		KeyMode:        KeyAuto,
		NP2SorterCmd:   "kilosort4",
		AxonaSorterCmd: "klustakwik",
		SkipExisting:   true,
		ColorMode:      ColorAuto,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields and required run parameters. checkOnly (the
// check subcommand) skips the root/sheet requirement so diagnostics can run
// on a partial config.
func (c *Config) Validate(checkOnly bool) error {
	switch c.ProbeFilter {
	case ProbeNP2, ProbeAxona:
		// valid
	default:
		return fmt.Errorf("invalid probe filter %q (use %q or %q)", c.ProbeFilter, ProbeNP2, ProbeAxona)
	}

	switch c.KeyMode {
	case KeyAuto, KeyAnimalDate, KeyAnimalDateArea:
		// valid
	default:
		return errors.New("invalid key mode (use 'auto', 'by-animal-date' or 'by-animal-date-area')")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	if c.SortingSuffix == "" {
		return errors.New("sorting suffix must not be empty")
	}
	if strings.ContainsAny(c.SortingSuffix, "/\\") {
		return fmt.Errorf("sorting suffix %q must not contain path separators", c.SortingSuffix)
	}

	if checkOnly {
		return nil
	}
	if c.RootPath == "" {
		return errors.New("root path is required")
	}
	if c.SheetURL == "" {
		return errors.New("sheet locator is required")
	}
	c.RootPath = NormalizeDirArg(c.RootPath)
	return nil
}

// SorterCommand returns the configured external sorter command and extra
// args for a probe family. Unknown types report an error rather than
// silently falling back to one backend.
func (c *Config) SorterCommand(probe ProbeType) (string, []string, error) {
	switch probe {
	case ProbeNP2:
		return c.NP2SorterCmd, c.NP2SorterArgs, nil
	case ProbeAxona:
		return c.AxonaSorterCmd, c.AxonaSorterArgs, nil
	default:
		return "", nil, fmt.Errorf("no sorter backend for probe type %q", probe)
	}
}
