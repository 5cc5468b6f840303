package fan

import (
	"fmt"
	"strings"
)

// Profile is a named fan behavior
type Profile int

const (
	Auto Profile = iota
	Silent
	Balanced
	Gaming
	Max
)

var profileNames = map[Profile]string{
	Auto:     "auto",
	Silent:   "silent",
	Balanced: "balanced",
	Gaming:   "gaming",
	Max:      "max",
}

var profilePercents = map[Profile]int{
	Silent:   30,
	Balanced: 50,
	Gaming:   80,
	Max:      100,
}

func (p Profile) String() string {
	if name, ok := profileNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Profile(%d)", int(p))
}

// Percent returns the fixed manual percentage of p. Auto has none and defers to firmware.
func (p Profile) Percent() (int, bool) {
	pct, ok := profilePercents[p]
	return pct, ok
}

// Profiles lists every profile in order
func Profiles() []Profile {
	return []Profile{Auto, Silent, Balanced, Gaming, Max}
}

// ParseProfile converts a case-insensitive name into a Profile
func ParseProfile(s string) (Profile, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for p, n := range profileNames {
		if n == name {
			return p, nil
		}
	}
	return Auto, fmt.Errorf("unknown fan profile %q (want auto, silent, balanced, gaming or max)", s)
}
