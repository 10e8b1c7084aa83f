// Package pipeline orchestrates one batch run: load the session sheet,
// partition trials into sessions, and for each session concatenate the
// recordings and dispatch the probe-specific sorter, reusing work already
// present on disk. One session's failure never aborts the others.
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ephyslab/sortpipe/internal/concat"
	"github.com/ephyslab/sortpipe/internal/config"
	"github.com/ephyslab/sortpipe/internal/display"
	"github.com/ephyslab/sortpipe/internal/logging"
	"github.com/ephyslab/sortpipe/internal/recording"
	"github.com/ephyslab/sortpipe/internal/session"
	"github.com/ephyslab/sortpipe/internal/sheet"
	"github.com/ephyslab/sortpipe/internal/sorter"
)

// Run is the top-level batch entry point. It fetches the sheet, resolves the
// key mode once, builds the session groups, and processes them strictly
// sequentially. The returned error is non-nil only for run-fatal conditions
// (sheet unavailable, malformed rows, heterogeneous groups); per-session
// failures land in the stats and the summary instead.
func Run(ctx context.Context, cfg *config.Config, log *logging.Logger, fetcher sheet.Fetcher) (RunStats, error) {
	var stats RunStats

	sh, err := sheet.Fetch(ctx, fetcher, cfg.SheetURL)
	if err != nil {
		return stats, err
	}

	mode := sh.ResolveKeyMode(cfg.KeyMode)
	groups, err := session.Partition(sh.Records, cfg.ProbeFilter, mode, cfg.RootPath)
	if err != nil {
		return stats, err
	}
	stats.Total = len(groups)

	runID := uuid.NewString()[:8]
	log.Info("=== Run %s ===", runID)
	log.Info("Sheet rows: %d, probe filter: %s, key mode: %s", len(sh.Records), cfg.ProbeFilter, mode)
	log.Info("Sessions to process: %d, sorting suffix: %q", stats.Total, cfg.SortingSuffix)
	if cfg.DryRun {
		log.Warn("DRY RUN")
	}

	for _, g := range groups {
		if ctx.Err() != nil {
			log.Warn("Interrupted")
			break
		}
		stats.Current++
		processSession(ctx, cfg, log, g, &stats)
	}

	logSummary(log, &stats, runID)
	return stats, nil
}

// processSession handles one session: resolve -> concatenate (or reuse) ->
// sort (or reuse) -> provenance manifest. Any stage error is recorded and
// the loop moves on.
func processSession(ctx context.Context, cfg *config.Config, log *logging.Logger, g *session.Group, stats *RunStats) {
	name := g.Name()
	log.Info("[%d/%d] %s (%d trial(s), %s)", stats.Current, stats.Total, name, len(g.Records), g.ProbeType)

	fail := func(stage Stage, err error) {
		log.Error("Session %s failed at %s: %v", name, stage, err)
		stats.Failures = append(stats.Failures, SessionFailure{Session: name, Stage: stage, Err: err})
	}

	// --- Resolve every trial before touching anything ---
	handles := make([]recording.Handle, 0, len(g.Records))
	for _, rec := range g.Records {
		h, err := recording.Resolve(rec.TrialName, g.BasePath, g.ProbeType)
		if err != nil {
			fail(StageResolve, err)
			return
		}
		handles = append(handles, h)
	}

	artifact := concat.ArtifactPath(g.BasePath, g.Key.Area)
	fp, err := concat.NewFingerprint(name, g.ArtifactName(), handles)
	if err != nil {
		fail(StageConcat, err)
		return
	}

	// --- Concatenate, or reuse the existing artifact ---
	if cfg.SkipExisting && exists(artifact) {
		log.Warn("Skip concat (exists): %s", filepath.Base(artifact))
		stats.ConcatSkipped++
		if err := checkFingerprint(cfg, log, artifact, fp); err != nil {
			fail(StageConcat, err)
			return
		}
	} else if cfg.DryRun {
		log.Info("[DRY] Would concatenate %d segment(s) into %s", len(handles), artifact)
	} else {
		n, err := concat.Write(ctx, handles, artifact)
		if err != nil {
			fail(StageConcat, err)
			return
		}
		if err := concat.WriteSidecar(artifact, fp); err != nil {
			fail(StageConcat, err)
			return
		}
		stats.BytesWritten += n
		log.Success("Concatenated %d segment(s) into %s (%s)",
			len(handles), filepath.Base(artifact), display.FormatBytes(n))
	}

	// --- Sort ---
	srt, err := sorter.ForProbe(cfg, log, g.ProbeType)
	if err != nil {
		fail(StageSort, err)
		return
	}
	destDir := filepath.Join(g.BasePath, g.OutputDirName(cfg.SortingSuffix))

	if cfg.DryRun {
		log.Info("[DRY] Would sort with %s into %s", srt.Name(), destDir)
		stats.Sorted++
		return
	}

	ref, err := srt.Sort(ctx, sorter.Request{
		StreamPath:  artifact,
		SessionName: name,
		DestDir:     destDir,
		Suffix:      cfg.SortingSuffix,
		Params:      sorter.Params{ProbeType: g.ProbeType, NumChannels: g.NumChannels()},
	})
	if err != nil {
		fail(StageSort, err)
		return
	}
	if ref.Loaded {
		stats.SortLoaded++
	} else {
		log.Success("Sorted %s with %s", name, srt.Name())
	}

	// --- Provenance manifest ---
	if err := sorter.WriteManifest(ref.Dir, g.Records); err != nil {
		fail(StageManifest, err)
		return
	}
	stats.Sorted++
}

// checkFingerprint verifies a reused artifact against the current trial
// list. A missing sidecar and a mismatch both warn; the mismatch becomes a
// session failure under strict_fingerprint.
func checkFingerprint(cfg *config.Config, log *logging.Logger, artifact string, fp concat.Fingerprint) error {
	err := concat.CheckExisting(artifact, fp)
	switch {
	case err == nil:
		log.Debug("Fingerprint verified: %s", filepath.Base(artifact))
		return nil
	case errors.Is(err, concat.ErrNoSidecar):
		log.Warn("Existing artifact has no fingerprint, contents unverified: %s", artifact)
		return nil
	case errors.Is(err, concat.ErrStaleArtifact):
		if cfg.StrictFingerprint {
			return err
		}
		log.Warn("%v (continuing; re-run with --force to rebuild)", err)
		return nil
	default:
		return err
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func logSummary(log *logging.Logger, stats *RunStats, runID string) {
	log.Info("==============================")
	log.Info("Run %s done: %d sorted, %d failed of %d session(s)", runID, stats.Sorted, stats.FailedCount(), stats.Total)
	if stats.ConcatSkipped > 0 {
		log.Info("  Reused artifacts: %d", stats.ConcatSkipped)
	}
	if stats.SortLoaded > 0 {
		log.Info("  Reused sorting results: %d", stats.SortLoaded)
	}
	if stats.BytesWritten > 0 {
		log.Info("  Concatenated: %s", display.FormatBytes(stats.BytesWritten))
	}
	for _, f := range stats.Failures {
		log.Error("  FAILED %s at %s: %v", f.Session, f.Stage, f.Err)
	}
	if stats.FailedCount() == 0 && stats.Total > 0 && stats.Current == stats.Total {
		log.Success("All sessions completed")
	}
}
