// Package recording resolves trials to their on-disk raw recordings. All
// checks are read-only; the returned handle is consumed by the
// concatenation step and the artifact fingerprint.
package recording

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ephyslab/sortpipe/internal/config"
)

// ErrRecordingNotFound means a trial's expected path is missing or holds no
// raw data payload. Recoverable at session granularity: the driver skips
// the session and continues.
var ErrRecordingNotFound = errors.New("recording not found")

// Handle is an opaque reference to one trial's raw recording.
type Handle struct {
	TrialName string
	DataPath  string // Raw continuous signal payload, in concatenation order.
	SizeBytes int64
}

// Resolve locates the raw recording for a trial under its base path.
// Layout convention is <base>/<trial_name>; what counts as the raw payload
// depends on the probe family:
//
//   - NP2_openephys: a recording directory containing a continuous.dat
//     somewhere below it (open-ephys nests it per record node).
//   - 5x12_buz: an Axona <trial_name>.bin with its sibling .set file.
func Resolve(trialName, basePath string, probe config.ProbeType) (Handle, error) {
	switch probe {
	case config.ProbeNP2:
		return resolveOpenEphys(trialName, basePath)
	case config.ProbeAxona:
		return resolveAxona(trialName, basePath)
	default:
		return Handle{}, fmt.Errorf("no recording layout for probe type %q", probe)
	}
}

func resolveOpenEphys(trialName, basePath string) (Handle, error) {
	dir := filepath.Join(basePath, trialName)
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return Handle{}, fmt.Errorf("%w: %s", ErrRecordingNotFound, dir)
	}

	var dataPath string
	var size int64
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "continuous.dat" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		dataPath = path
		size = info.Size()
		return fs.SkipAll
	})
	if err != nil {
		return Handle{}, fmt.Errorf("scan %s: %w", dir, err)
	}
	if dataPath == "" {
		return Handle{}, fmt.Errorf("%w: no continuous.dat under %s", ErrRecordingNotFound, dir)
	}
	return Handle{TrialName: trialName, DataPath: dataPath, SizeBytes: size}, nil
}

func resolveAxona(trialName, basePath string) (Handle, error) {
	bin := filepath.Join(basePath, trialName+".bin")
	fi, err := os.Stat(bin)
	if err != nil || fi.IsDir() {
		return Handle{}, fmt.Errorf("%w: %s", ErrRecordingNotFound, bin)
	}
	// The .set file carries the recording parameters; a .bin without it is
	// an incomplete transfer.
	set := filepath.Join(basePath, trialName+".set")
	if _, err := os.Stat(set); err != nil {
		return Handle{}, fmt.Errorf("%w: missing %s", ErrRecordingNotFound, set)
	}
	return Handle{TrialName: trialName, DataPath: bin, SizeBytes: fi.Size()}, nil
}
