package winners

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTop(t *testing.T) {
	tests := map[string]struct {
		standings []Standing
		want      []Standing
	}{
		"equal scores rank by fewer time units": {
			standings: []Standing{
				{Participant: "participant-1", Correct: 5, TimeSpent: 100},
				{Participant: "participant-2", Correct: 5, TimeSpent: 50},
				{Participant: "participant-3", Correct: 3, TimeSpent: 200},
			},
			want: []Standing{
				{Participant: "participant-2", Correct: 5, TimeSpent: 50},
				{Participant: "participant-1", Correct: 5, TimeSpent: 100},
				{Participant: "participant-3", Correct: 3, TimeSpent: 200},
			},
		},

		"more correct answers outrank faster times": {
			standings: []Standing{
				{Participant: "slow", Correct: 4, TimeSpent: 900},
				{Participant: "fast", Correct: 1, TimeSpent: 10},
			},
			want: []Standing{
				{Participant: "slow", Correct: 4, TimeSpent: 900},
				{Participant: "fast", Correct: 1, TimeSpent: 10},
			},
		},

		"fewer than k standings returns them all ranked": {
			standings: []Standing{
				{Participant: "only", Correct: 2, TimeSpent: 30},
			},
			want: []Standing{
				{Participant: "only", Correct: 2, TimeSpent: 30},
			},
		},

		"more than k standings keeps only the best k": {
			standings: []Standing{
				{Participant: "a", Correct: 1, TimeSpent: 10},
				{Participant: "b", Correct: 4, TimeSpent: 40},
				{Participant: "c", Correct: 2, TimeSpent: 20},
				{Participant: "d", Correct: 3, TimeSpent: 30},
				{Participant: "e", Correct: 5, TimeSpent: 50},
			},
			want: []Standing{
				{Participant: "e", Correct: 5, TimeSpent: 50},
				{Participant: "b", Correct: 4, TimeSpent: 40},
				{Participant: "d", Correct: 3, TimeSpent: 30},
			},
		},

		"empty input returns empty": {
			standings: nil,
			want:      []Standing{},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, top(tt.standings, 3))
		})
	}
}

func TestStandingBeats(t *testing.T) {
	a := Standing{Correct: 5, TimeSpent: 100}
	b := Standing{Correct: 5, TimeSpent: 100}

	assert.False(t, a.beats(b), "identical standings must not beat each other so insertion order holds")
}
