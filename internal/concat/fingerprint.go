package concat

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/gowebpki/jcs"
	"github.com/kaptinlin/jsonschema"

	"github.com/ephyslab/sortpipe/internal/recording"
)

// ErrStaleArtifact means an existing concatenated artifact does not match
// the trial list the current sheet describes. Default handling is a
// warning; strict_fingerprint promotes it to a session failure.
var ErrStaleArtifact = errors.New("stale concatenated artifact")

// ErrNoSidecar means the artifact predates fingerprinting; its contents
// cannot be verified against the current trial list.
var ErrNoSidecar = errors.New("artifact has no fingerprint sidecar")

//go:embed fingerprint_schema.json
var sidecarSchema []byte

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.NewCompiler().Compile(sidecarSchema)
})

// TrialEntry is one contributing recording in concatenation order.
type TrialEntry struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
}

// Fingerprint records what went into a concatenated artifact. The digest is
// a sha256 over the RFC 8785 canonical JSON of the other fields, so it is
// stable under key ordering and whitespace.
type Fingerprint struct {
	Session  string       `json:"session"`
	Artifact string       `json:"artifact"`
	Trials   []TrialEntry `json:"trials"`
	Digest   string       `json:"digest,omitempty"`
}

// NewFingerprint builds the fingerprint for a session's handle sequence,
// digest included.
func NewFingerprint(sessionName, artifactName string, handles []recording.Handle) (Fingerprint, error) {
	fp := Fingerprint{
		Session:  sessionName,
		Artifact: artifactName,
		Trials:   make([]TrialEntry, len(handles)),
	}
	for i, h := range handles {
		fp.Trials[i] = TrialEntry{Name: h.TrialName, SizeBytes: h.SizeBytes}
	}
	digest, err := fp.computeDigest()
	if err != nil {
		return Fingerprint{}, err
	}
	fp.Digest = digest
	return fp, nil
}

// computeDigest canonicalizes the fingerprint body (digest excluded) per
// RFC 8785 and returns its sha256 hex.
func (f Fingerprint) computeDigest() (string, error) {
	f.Digest = ""
	raw, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize fingerprint: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// SidecarPath is where an artifact's fingerprint lives.
func SidecarPath(artifactPath string) string {
	return artifactPath + ".json"
}

// WriteSidecar persists the fingerprint next to its artifact.
func WriteSidecar(artifactPath string, fp Fingerprint) error {
	data, err := json.MarshalIndent(fp, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(SidecarPath(artifactPath), append(data, '\n'), 0o644)
}

// ReadSidecar loads and schema-validates an artifact's fingerprint.
// A missing sidecar reports [ErrNoSidecar].
func ReadSidecar(artifactPath string) (Fingerprint, error) {
	data, err := os.ReadFile(SidecarPath(artifactPath))
	if err != nil {
		if os.IsNotExist(err) {
			return Fingerprint{}, fmt.Errorf("%w: %s", ErrNoSidecar, artifactPath)
		}
		return Fingerprint{}, err
	}

	schema, err := compileSchema()
	if err != nil {
		return Fingerprint{}, fmt.Errorf("compile sidecar schema: %w", err)
	}
	if result := schema.ValidateJSON(data); !result.IsValid() {
		return Fingerprint{}, fmt.Errorf("invalid sidecar %s: %v", SidecarPath(artifactPath), result.Errors)
	}

	var fp Fingerprint
	if err := json.Unmarshal(data, &fp); err != nil {
		return Fingerprint{}, err
	}
	return fp, nil
}

// CheckExisting compares an existing artifact's sidecar against the
// fingerprint of the current handle sequence. It returns nil when they
// match, [ErrNoSidecar] when the artifact cannot be verified, and
// [ErrStaleArtifact] when the trial lists diverge.
func CheckExisting(artifactPath string, current Fingerprint) error {
	prior, err := ReadSidecar(artifactPath)
	if err != nil {
		return err
	}
	if prior.Digest != current.Digest {
		return fmt.Errorf("%w: %s was built from %d trial(s) that no longer match the sheet",
			ErrStaleArtifact, artifactPath, len(prior.Trials))
	}
	return nil
}
