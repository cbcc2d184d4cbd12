package grading

import (
	"fmt"
	"sort"
)

const (
	// BECECoreCount is the number of core subjects counted in the aggregate.
	BECECoreCount     = 4
	// BECEElectiveCount is the number of best electives counted in the aggregate.
	BECEElectiveCount = 2
	// BECEMinGrade and BECEMaxGrade bound a BECE subject grade; 1 is best.
	BECEMinGrade      = 1
	BECEMaxGrade      = 9
)

// BECESubjectGrade is one subject result used to compute an aggregate.
type BECESubjectGrade struct {
	SubjectID string `json:"subject_id"`
	Core      bool   `json:"core"`
	Grade     int    `json:"grade"`
}

// BECEAggregate is the outcome of aggregating a candidate's results.
type BECEAggregate struct {
	Aggregate int                `json:"aggregate"`
	Complete  bool               `json:"complete"`
	Counted   []BECESubjectGrade `json:"counted"`
	Missing   string             `json:"missing,omitempty"`
}

// ValidBECEGrade reports whether g is a legal subject grade.
func ValidBECEGrade(g int) bool {
	return g >= BECEMinGrade && g <= BECEMaxGrade
}

// ComputeBECEAggregate sums the best four core and best two elective grades.
// Lower is better, so the aggregate ranges from 6 to 54. When fewer than the
// required core or elective grades exist the aggregate covers what is
// available and Complete is false.
func ComputeBECEAggregate(results []BECESubjectGrade) (BECEAggregate, error) {
	var core, electives []BECESubjectGrade
	for _, r := range results {
		if !ValidBECEGrade(r.Grade) {
			return BECEAggregate{}, fmt.Errorf("subject %s has invalid grade %d", r.SubjectID, r.Grade)
		}
		if r.Core {
			core = append(core, r)
		} else {
			electives = append(electives, r)
		}
	}
	best := func(items []BECESubjectGrade, n int) []BECESubjectGrade {
		sort.SliceStable(items, func(i, j int) bool { return items[i].Grade < items[j].Grade })
		if len(items) > n {
			return items[:n]
		}
		return items
	}
	counted := append(best(core, BECECoreCount), best(electives, BECEElectiveCount)...)

	agg := BECEAggregate{Counted: counted, Complete: true}
	for _, r := range counted {
		agg.Aggregate += r.Grade
	}
	switch {
	case len(core) < BECECoreCount && len(electives) < BECEElectiveCount:
		agg.Complete = false
		agg.Missing = fmt.Sprintf("%d core and %d elective results required", BECECoreCount, BECEElectiveCount)
	case len(core) < BECECoreCount:
		agg.Complete = false
		agg.Missing = fmt.Sprintf("%d core results required, found %d", BECECoreCount, len(core))
	case len(electives) < BECEElectiveCount:
		agg.Complete = false
		agg.Missing = fmt.Sprintf("%d elective results required, found %d", BECEElectiveCount, len(electives))
	}
	return agg, nil
}
