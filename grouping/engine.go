// Package grouping partitions a weight-sorted roster into size- and
// spread-bounded groups.
//
// The engine is a sort followed by one linear bucketing pass. It holds no
// state between calls and is safe for concurrent use with distinct inputs.
package grouping

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"

	"grouping-server-go/models"
)

// Result is the output of BuildGroups.
type Result struct {
	Groups []models.Group `json:"groups"`
	// Dropped holds, in segregated mode, the records whose sex label matches
	// neither configured label. They appear in no group.
	Dropped []models.Student `json:"dropped"`
	Options Options          `json:"options"`
}

// SortByWeight converts every weight to a float and returns the students in
// ascending weight order. Equal weights keep their input order.
//
// If any weight is not a finite number, a *ConversionError naming every bad
// row is returned and no students are.
func SortByWeight(entries []models.RosterEntry) ([]models.Student, error) {
	students := make([]models.Student, 0, len(entries))
	var invalid []InvalidWeight

	for _, e := range entries {
		w, ok := parseWeight(e.Weight)
		if !ok {
			invalid = append(invalid, InvalidWeight{Row: e.Row, Name: e.Name, Value: e.Weight})
			continue
		}
		students = append(students, models.Student{Name: e.Name, Sex: e.Sex, Weight: w})
	}
	if len(invalid) > 0 {
		return nil, &ConversionError{Invalid: invalid}
	}

	slices.SortStableFunc(students, func(a, b models.Student) int {
		return cmp.Compare(a.Weight, b.Weight)
	})
	return students, nil
}

func parseWeight(s string) (float64, bool) {
	w, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(w) || math.IsInf(w, 0) {
		return 0, false
	}
	return w, true
}

// BuildGroups validates opts, sorts the entries by weight and buckets them.
//
// In mixed mode the whole sorted roster is bucketed once. Otherwise the roster
// is split by opts.Labels and each subset is bucketed on its own, first label's
// groups first. Records with any other label are reported in Result.Dropped.
func BuildGroups(entries []models.RosterEntry, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	sorted, err := SortByWeight(entries)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Groups:  []models.Group{},
		Dropped: []models.Student{},
		Options: opts,
	}

	var buckets [][]models.Student
	if opts.Mixed {
		buckets = bucket(sorted, opts.GroupSize, opts.MaxSpread)
	} else {
		subsets := [2][]models.Student{}
		for _, s := range sorted {
			switch s.Sex {
			case opts.Labels[0]:
				subsets[0] = append(subsets[0], s)
			case opts.Labels[1]:
				subsets[1] = append(subsets[1], s)
			default:
				res.Dropped = append(res.Dropped, s)
			}
		}
		for _, subset := range subsets {
			buckets = append(buckets, bucket(subset, opts.GroupSize, opts.MaxSpread)...)
		}
	}

	for i, members := range buckets {
		res.Groups = append(res.Groups, models.Group{Index: i + 1, Members: members})
	}
	return res, nil
}

// bucket walks a weight-sorted slice and cuts it into groups. A group closes
// when it is full or when the next record is more than maxSpread away from the
// group's first member (its anchor).
//
// Input is ascending, so the anchor is also the lightest member and the bound
// holds between any two members of a group.
func bucket(sorted []models.Student, size int, maxSpread float64) [][]models.Student {
	var groups [][]models.Student
	var current []models.Student

	for _, s := range sorted {
		if len(current) < size {
			if len(current) == 0 || math.Abs(s.Weight-current[0].Weight) <= maxSpread {
				current = append(current, s)
				continue
			}
		}
		groups = append(groups, current)
		current = []models.Student{s}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}
