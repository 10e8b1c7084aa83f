// Package session derives session identities from trial names and partitions
// trial records into the groups the pipeline concatenates and sorts. Pure
// logic, no filesystem access.
package session

import (
	"fmt"
	"strings"

	"github.com/ephyslab/sortpipe/internal/config"
)

// Key identifies a session: one animal, one day, optionally one brain area.
// Comparable; two trials belong to the same session iff their keys are equal.
type Key struct {
	Animal string
	Date   string
	Area   string // Empty unless the run keys by area.
}

func (k Key) String() string {
	if k.Area != "" {
		return k.Date + "_" + k.Animal + "_" + k.Area
	}
	return k.Date + "_" + k.Animal
}

// DeriveKey computes the session key for a trial. Pure function of the trial
// name, the area tag, and the run-wide key mode; row order never enters.
// Trial names follow <date>_<animal>_<label>[...], so the first two
// components are the date and the animal.
func DeriveKey(trialName, area string, mode config.KeyMode) (Key, error) {
	parts := strings.Split(trialName, "_")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Key{}, fmt.Errorf("trial name %q does not follow <date>_<animal>_<label>", trialName)
	}
	k := Key{Date: parts[0], Animal: parts[1]}
	if mode == config.KeyAnimalDateArea {
		k.Area = area
	}
	return k, nil
}
