package history

import "sort"

// Drift summarizes what changed between two runs over the same evidence.
type Drift struct {
	NewExecutables  []string
	GoneExecutables []string
	ParsedDelta     int
	SkippedDelta    int
}

// Diff compares two snapshots, previous first.
func Diff(prev, cur Snapshot) Drift {
	prevSet := make(map[string]bool, len(prev.Executables))
	for _, e := range prev.Executables {
		prevSet[e] = true
	}
	curSet := make(map[string]bool, len(cur.Executables))
	for _, e := range cur.Executables {
		curSet[e] = true
	}

	d := Drift{
		ParsedDelta:  cur.Parsed - prev.Parsed,
		SkippedDelta: cur.Skipped - prev.Skipped,
	}
	for e := range curSet {
		if !prevSet[e] {
			d.NewExecutables = append(d.NewExecutables, e)
		}
	}
	for e := range prevSet {
		if !curSet[e] {
			d.GoneExecutables = append(d.GoneExecutables, e)
		}
	}
	sort.Strings(d.NewExecutables)
	sort.Strings(d.GoneExecutables)
	return d
}
