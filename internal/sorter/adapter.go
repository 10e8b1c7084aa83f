// Package sorter is the external-collaborator boundary to the probe-specific
// spike-sorting backends. Adapters build an argv for the configured sorter
// binary and run it; sorting internals (filtering, drift correction,
// template matching) live entirely on the other side of that boundary.
package sorter

import (
	"context"
	"fmt"
	"os"

	"github.com/ephyslab/sortpipe/internal/config"
)

// Logger is the minimal logging interface the adapters need. Defined here
// (rather than importing the logging package) so sorter stays
// dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Debug(string, ...interface{})
}

// Params carries the probe electrode/channel parameters a backend needs.
type Params struct {
	ProbeType   config.ProbeType
	NumChannels int
}

// Request describes one sorting job.
type Request struct {
	StreamPath  string // The concatenated artifact.
	SessionName string // Human-readable session/recording name.
	DestDir     string // Sorter output directory (created by the adapter).
	Suffix      string // Output-naming suffix, for the backend's own files.
	Params      Params
}

// ResultRef points at an on-disk sorting result.
type ResultRef struct {
	Dir    string
	Loaded bool // True when an existing result was reused instead of recomputed.
}

// Sorter is implemented per probe family.
type Sorter interface {
	Name() string
	Sort(ctx context.Context, req Request) (ResultRef, error)
}

// ForProbe selects the adapter for a probe type from the configured backend
// commands.
func ForProbe(cfg *config.Config, log Logger, probe config.ProbeType) (Sorter, error) {
	cmd, extra, err := cfg.SorterCommand(probe)
	if err != nil {
		return nil, err
	}
	switch probe {
	case config.ProbeNP2:
		return &np2Sorter{cmd: cmd, extraArgs: extra, verbose: cfg.Verbose, log: log}, nil
	case config.ProbeAxona:
		return &axonaSorter{cmd: cmd, extraArgs: extra, verbose: cfg.Verbose, log: log}, nil
	default:
		return nil, fmt.Errorf("no sorter adapter for probe type %q", probe)
	}
}

// resultExists reports whether dir already holds sorter output. Existence of
// a non-empty output directory is the backend's idempotency marker.
func resultExists(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// np2Sorter drives the Kilosort4 runner for Neuropixels 2.0 streams.
type np2Sorter struct {
	cmd       string
	extraArgs []string
	verbose   bool
	log       Logger
}

func (s *np2Sorter) Name() string { return s.cmd }

func (s *np2Sorter) Sort(ctx context.Context, req Request) (ResultRef, error) {
	if resultExists(req.DestDir) {
		s.log.Info("Sorting loaded from file: %s", req.DestDir)
		return ResultRef{Dir: req.DestDir, Loaded: true}, nil
	}
	if err := os.MkdirAll(req.DestDir, 0o755); err != nil {
		return ResultRef{}, err
	}

	argv := append([]string{s.cmd}, s.extraArgs...)
	argv = append(argv,
		"--data", req.StreamPath,
		"--results-dir", req.DestDir,
		"--n-channels", fmt.Sprint(req.Params.NumChannels),
		"--session", req.SessionName,
		"--suffix", req.Suffix,
	)
	s.log.Debug("sorter argv: %v", argv)
	if err := execute(ctx, argv, s.verbose); err != nil {
		return ResultRef{}, err
	}
	return ResultRef{Dir: req.DestDir}, nil
}

// axonaSorter drives the KlustaKwik runner for Axona tetrode streams.
type axonaSorter struct {
	cmd       string
	extraArgs []string
	verbose   bool
	log       Logger
}

func (s *axonaSorter) Name() string { return s.cmd }

func (s *axonaSorter) Sort(ctx context.Context, req Request) (ResultRef, error) {
	if resultExists(req.DestDir) {
		s.log.Info("Sorting loaded from file: %s", req.DestDir)
		return ResultRef{Dir: req.DestDir, Loaded: true}, nil
	}
	if err := os.MkdirAll(req.DestDir, 0o755); err != nil {
		return ResultRef{}, err
	}

	argv := append([]string{s.cmd}, s.extraArgs...)
	argv = append(argv,
		"-data", req.StreamPath,
		"-out", req.DestDir,
		"-channels", fmt.Sprint(req.Params.NumChannels),
		"-name", req.SessionName+"_"+req.Suffix,
	)
	s.log.Debug("sorter argv: %v", argv)
	if err := execute(ctx, argv, s.verbose); err != nil {
		return ResultRef{}, err
	}
	return ResultRef{Dir: req.DestDir}, nil
}
