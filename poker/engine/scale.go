package engine

import (
	"errors"
	"slices"
)

// Scale names a voting scale.
type Scale string

const (
	Fibonacci Scale = "fibonacci"
	PowersOf2 Scale = "powersOf2"

	// DefaultScale is used for every new room.
	DefaultScale = Fibonacci
)

// Sentinel tokens shared by every scale.
const (
	UnknownVote = "?"
	BreakVote   = "🍺"
)

var (
	ErrInvalidScale   = errors.New("invalid voting scale")
	ErrInvalidVote    = errors.New("invalid vote value")
	ErrScaleLocked    = errors.New("scale cannot change while votes are revealed")
	ErrNotParticipant = errors.New("not a participant of this room")
)

// ScaleInfo describes a scale and its permitted tokens in display order.
type ScaleInfo struct {
	Name   Scale    `json:"name"`
	Values []string `json:"values"`
}

// scales is ordered; the first entry is the default.
var scales = []ScaleInfo{
	{Name: Fibonacci, Values: []string{"1", "2", "3", "5", "8", "13", "21", UnknownVote, BreakVote}},
	{Name: PowersOf2, Values: []string{"1", "2", "4", "8", "16", "32", "64", UnknownVote, BreakVote}},
}

// Scales returns every supported scale.
func Scales() []ScaleInfo {
	out := make([]ScaleInfo, len(scales))
	for i, s := range scales {
		out[i] = ScaleInfo{Name: s.Name, Values: slices.Clone(s.Values)}
	}
	return out
}

// ParseScale returns the scale with the given name.
func ParseScale(name string) (Scale, error) {
	s := Scale(name)
	if !s.Valid() {
		return "", ErrInvalidScale
	}
	return s, nil
}

// Valid reports whether s is a supported scale.
func (s Scale) Valid() bool {
	return s.values() != nil
}

// Values returns the tokens of s, or nil for an unknown scale.
func (s Scale) Values() []string {
	return slices.Clone(s.values())
}

// Allows reports whether value is a token of s.
func (s Scale) Allows(value string) bool {
	return slices.Contains(s.values(), value)
}

func (s Scale) values() []string {
	for _, info := range scales {
		if info.Name == s {
			return info.Values
		}
	}
	return nil
}
