package session

import (
	"errors"
	"fmt"

	"github.com/ephyslab/sortpipe/internal/config"
	"github.com/ephyslab/sortpipe/internal/sheet"
)

// ErrHeterogeneousGroup means trials sharing one session key disagree on
// base path or probe type. Reported before any I/O, never silently merged.
var ErrHeterogeneousGroup = errors.New("heterogeneous session group")

// Group is an ordered set of trials forming one session. Record order is the
// input row order and fixes the concatenation order of recordings.
type Group struct {
	Key       Key
	Records   []sheet.TrialRecord
	BasePath  string // Resolved <root>/<path>, identical across the group.
	ProbeType config.ProbeType

	root string
}

// Name is the human-readable session name, <date>_<animal>[_<area>].
func (g *Group) Name() string {
	return g.Key.String()
}

// ArtifactName is the concatenated-stream filename for this session.
func (g *Group) ArtifactName() string {
	if g.Key.Area != "" {
		return "concat_" + g.Key.Area + ".dat"
	}
	return "concat.dat"
}

// OutputDirName names the sorter output directory: a six-character date
// prefix, the optional area, and the run's sorting suffix.
func (g *Group) OutputDirName(suffix string) string {
	date := g.Key.Date
	if len(date) > 6 {
		date = date[:6]
	}
	if g.Key.Area != "" {
		return date + "_" + g.Key.Area + "_" + suffix
	}
	return date + "_" + suffix
}

// NumChannels is the channel count of the session's recordings, taken from
// the first trial of the validated group.
func (g *Group) NumChannels() int {
	if len(g.Records) == 0 {
		return 0
	}
	return g.Records[0].NumChannels
}

// Validate checks that every trial in the group agrees on base path and
// probe type. Runs before any filesystem work.
func (g *Group) Validate() error {
	for i := range g.Records {
		rec := &g.Records[i]
		if base := rec.BasePath(g.root); base != g.BasePath {
			return fmt.Errorf("%w %s: base path %q vs %q",
				ErrHeterogeneousGroup, g.Key, g.BasePath, base)
		}
		if rec.ProbeType != g.ProbeType {
			return fmt.Errorf("%w %s: probe type %q vs %q",
				ErrHeterogeneousGroup, g.Key, g.ProbeType, rec.ProbeType)
		}
	}
	return nil
}

// Partition filters records to included rows of the requested probe type and
// groups them by derived session key. Within a group the input row order is
// preserved; group iteration order is the first-appearance order of each key
// in the filtered input, so run logs stay comparable between runs with the
// same sheet ordering. Each group must resolve to exactly one base path and
// probe type; divergence surfaces as [ErrHeterogeneousGroup].
func Partition(records []sheet.TrialRecord, probeFilter config.ProbeType, mode config.KeyMode, root string) ([]*Group, error) {
	byKey := make(map[Key]*Group)
	var order []*Group

	for _, rec := range records {
		if !rec.Include || rec.ProbeType != probeFilter {
			continue
		}
		key, err := DeriveKey(rec.TrialName, rec.Area, mode)
		if err != nil {
			return nil, err
		}

		g, ok := byKey[key]
		if !ok {
			g = &Group{
				Key:       key,
				BasePath:  rec.BasePath(root),
				ProbeType: rec.ProbeType,
				root:      root,
			}
			byKey[key] = g
			order = append(order, g)
		}
		g.Records = append(g.Records, rec)
	}

	for _, g := range order {
		if err := g.Validate(); err != nil {
			return nil, err
		}
	}
	return order, nil
}
