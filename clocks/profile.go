package clocks

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

// Profile is a named memory clock policy.
type Profile string

const (
	Performance Profile = "performance"
	Balanced    Profile = "balanced"
	Powersaver  Profile = "powersaver"
	Auto        Profile = "auto"
)

var (
	ErrEmpty    = errors.New("no supported clocks")
	ErrNoTarget = errors.New("profile has no clock target")
)

var profiles = []Profile{Performance, Balanced, Powersaver, Auto}

// ParseProfile accepts a saved profile token. Surrounding whitespace is
// ignored; anything other than a known lowercase token is rejected.
func ParseProfile(token string) (Profile, bool) {
	token = strings.TrimSpace(token)

	for _, p := range profiles {
		if string(p) == token {
			return p, true
		}
	}

	return "", false
}

// Label is the profile name with its first letter upper-cased.
func (p Profile) Label() string {
	if p == "" {
		return ""
	}

	s := string(p)
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}

	return s
}

// Locks reports whether applying the profile pins the memory clock.
func (p Profile) Locks() bool {
	return p == Performance || p == Balanced || p == Powersaver
}

// Target picks the lock value for p from a descending clock list:
// the highest for performance, the element at len/2 for balanced and the
// lowest for powersaver.
func Target[T constraints.Integer](descending []T, p Profile) (T, error) {
	if !p.Locks() {
		return 0, fmt.Errorf("%w: %q", ErrNoTarget, p)
	}

	if len(descending) == 0 {
		return 0, ErrEmpty
	}

	switch p {
	case Performance:
		return highest(descending...), nil
	case Powersaver:
		return lowest(descending...), nil
	default:
		return descending[len(descending)/2], nil
	}
}

func highest[T constraints.Integer](values ...T) T {
	result := values[0]

	for _, v := range values {
		if v > result {
			result = v
		}
	}

	return result
}

func lowest[T constraints.Integer](values ...T) T {
	result := values[0]

	for _, v := range values {
		if v < result {
			result = v
		}
	}

	return result
}
