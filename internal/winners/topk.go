package winners

// Standing is one participant's final (score, time) tuple.
type Standing struct {
	Participant string
	Correct     int
	TimeSpent   int64
}

// beats reports whether a ranks strictly ahead of b: more correct answers,
// or equal correct answers in fewer cumulative time units.
func (a Standing) beats(b Standing) bool {
	if a.Correct != b.Correct {
		return a.Correct > b.Correct
	}
	return a.TimeSpent < b.TimeSpent
}

// top selects the k best standings in a single linear pass, shifting lower
// ranks down on each insertion. Equivalent to a bounded priority structure;
// k is small so the shift is cheap.
func top(standings []Standing, k int) []Standing {
	best := make([]Standing, 0, k)

	for _, s := range standings {
		i := len(best)
		for i > 0 && s.beats(best[i-1]) {
			i--
		}
		if i == k {
			continue
		}

		if len(best) < k {
			best = append(best, Standing{})
		}
		copy(best[i+1:], best[i:])
		best[i] = s
	}

	return best
}
