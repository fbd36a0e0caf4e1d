package grading

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/anquinko/academia/core"
)

// Grading scale is 0-10.
const (
	PassMark      = 5.0
	ExcellentMark = 8.0
	GoodMark      = 6.5
	AverageMark   = 5.0
)

var errInvalidWeights = errors.New("invalid score weights")

type Verdict string

const (
	Failed Verdict = "FAILED"
	Passed Verdict = "PASSED"
)

// Label is the human readable form of the verdict.
func (v Verdict) Label() string {
	if v == Passed {
		return "Passed"
	}
	return "Failed"
}

type Tier string

const (
	Weak      Tier = "Weak"
	Average   Tier = "Average"
	Good      Tier = "Good"
	Excellent Tier = "Excellent"
)

// ScoreEntry is one weighted assessment score of a learner.
type ScoreEntry struct {
	Weight float64
	Score  Score
}

// RawEntry is a score entry as submitted by a form: the value is not parsed yet.
type RawEntry struct {
	Weight float64 `json:"weight"`
	Value  string  `json:"value"`
}

type Result struct {
	Average   float64 `json:"-"` // full precision, used for every comparison
	Rounded   float64 `json:"rounded_average"`
	Verdict   Verdict `json:"verdict_code"`
	Tier      Tier    `json:"tier"`
	WeightSum float64 `json:"weight_sum"`
	Graded    int     `json:"graded"` // number of entries that contributed
}

// HasScores is false for the display default returned while nothing has been entered.
func (r Result) HasScores() bool { return r.Graded > 0 }

// Labels returns the texts displayed next to a learner's scores.
func (r Result) Labels() map[string]string {
	return map[string]string{
		"average": fmt.Sprintf("%.2f", r.Rounded),
		"verdict": r.Verdict.Label(),
		"tier":    string(r.Tier),
	}
}

// Evaluate computes the weighted average of entries and classifies it.
//
// Entries whose score is not OK are skipped (they contribute neither value nor weight);
// negative scores count as 0. A weight that is not a finite number > 0 is a caller
// error and yields a *core.ValidationError. With no usable score the result is the
// zero average, Failed and Weak.
func Evaluate(entries []ScoreEntry) (Result, error) {
	if err := checkWeights(entries); err != nil {
		return Result{}, err
	}

	var total, weightSum float64
	var graded int
	for _, e := range entries {
		if !e.Score.OK() {
			continue
		}
		val := math.Max(e.Score.Value, 0)
		total += val * e.Weight
		weightSum += e.Weight
		graded++
	}

	var avg float64
	if weightSum > 0 {
		avg = total / weightSum
	}
	return Result{
		Average:   avg,
		Rounded:   core.Round(avg, 2),
		Verdict:   VerdictOf(avg),
		Tier:      TierOf(avg),
		WeightSum: weightSum,
		Graded:    graded,
	}, nil
}

// EvaluateRaw parses the raw values with ParseScore and evaluates them.
func EvaluateRaw(raw []RawEntry) (Result, error) {
	entries := make([]ScoreEntry, 0, len(raw))
	for _, r := range raw {
		entries = append(entries, ScoreEntry{Weight: r.Weight, Score: ParseScore(r.Value)})
	}
	return Evaluate(entries)
}

func VerdictOf(avg float64) Verdict {
	if avg >= PassMark {
		return Passed
	}
	return Failed
}

func TierOf(avg float64) Tier {
	switch {
	case avg >= ExcellentMark:
		return Excellent
	case avg >= GoodMark:
		return Good
	case avg >= AverageMark:
		return Average
	default:
		return Weak
	}
}

func checkWeights(entries []ScoreEntry) error {
	var flds []core.FieldError
	for i, e := range entries {
		if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) || e.Weight <= 0 {
			flds = append(flds, core.FieldError{
				Field: fmt.Sprintf("entries[%d].weight", i),
				Error: "weight must be a positive number",
			})
		}
	}
	if flds != nil {
		return core.NewValidationError(errInvalidWeights, flds...)
	}
	return nil
}
