// Package concat materializes a session's ordered recording segments as one
// continuous binary artifact and maintains the fingerprint sidecar that
// makes the artifact's provenance checkable on later runs.
package concat

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ephyslab/sortpipe/internal/recording"
)

// ArtifactPath is the deterministic location of a session's concatenated
// stream: <base_path>/concat[_<area>].dat. Existence of this file is the
// idempotency marker the driver consults.
func ArtifactPath(basePath, area string) string {
	if area != "" {
		return filepath.Join(basePath, "concat_"+area+".dat")
	}
	return filepath.Join(basePath, "concat.dat")
}

// Write streams the handles' raw payloads end-to-end into path and returns
// the bytes written. The data goes through a temp file renamed into place,
// so a partial write never satisfies a later existence check. The context
// is honored between segments; a segment itself is one uninterrupted copy.
func Write(ctx context.Context, handles []recording.Handle, path string) (int64, error) {
	tmp := path + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}

	var written int64
	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			f.Close()
			os.Remove(tmp)
			return written, err
		}
		n, err := appendSegment(f, h.DataPath)
		written += n
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return written, fmt.Errorf("append %s: %w", h.TrialName, err)
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return written, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return written, err
	}
	return written, nil
}

func appendSegment(dst io.Writer, srcPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	return io.Copy(dst, src)
}
