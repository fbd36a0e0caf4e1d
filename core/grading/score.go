package grading

import (
	"math"
	"strconv"
	"strings"
)

// ScoreKind tells whether a raw form value holds a usable score.
type ScoreKind int

const (
	ScoreAbsent  ScoreKind = iota // nothing entered yet
	ScoreOK                       // numeric value
	ScoreInvalid                  // something was entered but it is not a number
)

func (k ScoreKind) String() string {
	switch k {
	case ScoreOK:
		return "ok"
	case ScoreInvalid:
		return "invalid"
	default:
		return "absent"
	}
}

// Score is the typed result of parsing a raw score value.
// Value is only meaningful when Kind is ScoreOK.
type Score struct {
	Kind  ScoreKind
	Value float64
}

func Absent() Score { return Score{Kind: ScoreAbsent} }

func Value(v float64) Score {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Score{Kind: ScoreInvalid}
	}
	return Score{Kind: ScoreOK, Value: v}
}

// FromPtr maps a stored (nullable) score to a Score.
func FromPtr(v *float64) Score {
	if v == nil {
		return Absent()
	}
	return Value(*v)
}

func (s Score) OK() bool { return s.Kind == ScoreOK }

// Ptr returns the stored form of the score: nil unless OK.
func (s Score) Ptr() *float64 {
	if !s.OK() {
		return nil
	}
	v := s.Value
	return &v
}

// ParseScore parses a raw form value. Blank input is Absent; anything that does not
// parse as a finite decimal number is Invalid. A decimal comma ("7,5") is accepted.
func ParseScore(raw string) Score {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Absent()
	}
	if strings.ContainsAny(raw, "xXpP") {
		return Score{Kind: ScoreInvalid}
	}
	if strings.Count(raw, ",") == 1 && !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Score{Kind: ScoreInvalid}
	}
	return Value(v)
}
