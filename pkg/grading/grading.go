// Package grading holds the score arithmetic shared by grade entry, report
// cards, promotions and BECE aggregates.
package grading

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// MaxScore is the upper bound of raw class and exam scores.
const MaxScore = 100.0

var (
	// ErrScoreOutOfRange is returned for raw scores outside 0..MaxScore.
	ErrScoreOutOfRange = errors.New("score must be between 0 and 100")
	// ErrInvalidWeights is returned when weights are negative or do not sum to 100.
	ErrInvalidWeights  = errors.New("class and exam weights must be non-negative and sum to 100")
)

// Weights are the percentage contributions of class and exam scores to the total.
type Weights struct {
	ClassScore float64 `json:"class_score"`
	ExamScore  float64 `json:"exam_score"`
}

// DefaultWeights is the 30/70 split used for terminal reports.
var DefaultWeights = Weights{ClassScore: 30, ExamScore: 70}

// Validate checks that the weights are usable.
func (w Weights) Validate() error {
	if w.ClassScore < 0 || w.ExamScore < 0 {
		return ErrInvalidWeights
	}
	if math.Abs(w.ClassScore+w.ExamScore-100) > 1e-9 {
		return ErrInvalidWeights
	}
	return nil
}

// ComputeTotal weights raw class and exam scores (each 0..100) into a total
// out of 100 rounded to two decimals.
func ComputeTotal(classScore, examScore float64, w Weights) (float64, error) {
	if err := w.Validate(); err != nil {
		return 0, err
	}
	if !inRange(classScore) || !inRange(examScore) {
		return 0, ErrScoreOutOfRange
	}
	total := classScore*w.ClassScore/100 + examScore*w.ExamScore/100
	return Round2(total), nil
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func inRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= MaxScore
}

// Band is one row of the grading lookup table. Totals >= Min map to this band.
type Band struct {
	Min    float64 `json:"min"`
	Grade  string  `json:"grade"`
	Remark string  `json:"remark"`
}

// Scale is a validated lookup table of bands ordered by descending Min.
type Scale struct {
	bands []Band
}

// DefaultBands is the nine-point scale used for basic school terminal reports.
var DefaultBands = []Band{
	{Min: 80, Grade: "1", Remark: "Highest"},
	{Min: 70, Grade: "2", Remark: "Higher"},
	{Min: 60, Grade: "3", Remark: "High"},
	{Min: 55, Grade: "4", Remark: "High Average"},
	{Min: 50, Grade: "5", Remark: "Average"},
	{Min: 45, Grade: "6", Remark: "Low Average"},
	{Min: 40, Grade: "7", Remark: "Low"},
	{Min: 35, Grade: "8", Remark: "Lower"},
	{Min: 0, Grade: "9", Remark: "Lowest"},
}

// NewScale validates and copies the bands. Bands are sorted by descending Min;
// minimums must be unique and the lowest band must start at 0 so every total
// resolves to a band.
func NewScale(bands []Band) (*Scale, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("grading scale requires at least one band")
	}
	sorted := make([]Band, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Min > sorted[j].Min })
	for i, b := range sorted {
		if b.Grade == "" {
			return nil, fmt.Errorf("band with min %.2f has no grade", b.Min)
		}
		if b.Min < 0 || b.Min > MaxScore {
			return nil, fmt.Errorf("band %s min %.2f out of range", b.Grade, b.Min)
		}
		if i > 0 && sorted[i-1].Min == b.Min {
			return nil, fmt.Errorf("duplicate band minimum %.2f", b.Min)
		}
	}
	if sorted[len(sorted)-1].Min != 0 {
		return nil, fmt.Errorf("lowest band must start at 0")
	}
	return &Scale{bands: sorted}, nil
}

// MustDefaultScale returns the default nine-point scale.
func MustDefaultScale() *Scale {
	s, err := NewScale(DefaultBands)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the band for a total.
func (s *Scale) Lookup(total float64) Band {
	for _, b := range s.bands {
		if total >= b.Min {
			return b
		}
	}
	return s.bands[len(s.bands)-1]
}

// Bands returns a copy of the table in descending order.
func (s *Scale) Bands() []Band {
	out := make([]Band, len(s.bands))
	copy(out, s.bands)
	return out
}

// Result is a computed total with its band.
type Result struct {
	Total  float64 `json:"total"`
	Grade  string  `json:"grade"`
	Remark string  `json:"remark"`
}

// Calculator combines weights and a scale.
type Calculator struct {
	Weights Weights
	Scale   *Scale
}

// NewCalculator validates weights; a nil scale uses the default table.
func NewCalculator(w Weights, scale *Scale) (*Calculator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if scale == nil {
		scale = MustDefaultScale()
	}
	return &Calculator{Weights: w, Scale: scale}, nil
}

// Compute derives total, grade and remark from raw scores.
func (c *Calculator) Compute(classScore, examScore float64) (Result, error) {
	total, err := ComputeTotal(classScore, examScore, c.Weights)
	if err != nil {
		return Result{}, err
	}
	band := c.Scale.Lookup(total)
	return Result{Total: total, Grade: band.Grade, Remark: band.Remark}, nil
}
