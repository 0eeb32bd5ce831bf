package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status of a trivia session. Transitions are monotonic: a session never
// moves back to an earlier status.
type Status string

const (
	StatusRegistrationOpen Status = "registration_open"
	StatusInProgress       Status = "in_progress"
	StatusCompleted        Status = "completed"
)

var statusOrder = map[Status]int{
	StatusRegistrationOpen: 0,
	StatusInProgress:       1,
	StatusCompleted:        2,
}

// After reports whether s is a later lifecycle stage than o.
func (s Status) After(o Status) bool { return statusOrder[s] > statusOrder[o] }

// Session represents one run of the trivia competition.
type Session struct {
	SessionID            uint64
	Name                 string
	Description          string
	RegistrationDeadline time.Time
	StartTime            time.Time
	MinParticipants      int
	TotalRounds          int
	CurrentRound         int
	Status               Status
	CreateTime           time.Time
}

// PrizeConfig holds the escrow parameters of a session. Pool and
// Participants grow with each successful deposit.
type PrizeConfig struct {
	SessionID    uint64
	EntryFee     decimal.Decimal
	FirstPct     uint32
	SecondPct    uint32
	ThirdPct     uint32
	Participants int
	Pool         decimal.Decimal
}

// SplitTotal is the sum of the three percentages.
func (p PrizeConfig) SplitTotal() uint32 { return p.FirstPct + p.SecondPct + p.ThirdPct }

// Question is one scored round. Immutable once created.
type Question struct {
	SessionID uint64
	Number    int
	Text      string
	Options   [4]string
	Correct   string
}

// ParticipantRecord tracks one participant within a session. Balance zero
// means the entry fee is not held in escrow for them: either never paid,
// refunded, or released on distribution.
type ParticipantRecord struct {
	SessionID   uint64
	Participant string
	Balance     decimal.Decimal
	Correct     int
	// TimeSpent accumulates the submit timestamps (unix ms) of correct
	// answers. Fewer units wins score ties.
	TimeSpent   int64
	AnswerTimes map[int]time.Time
}

// WinnerSet is the ordered top-three of a session, cached once computed.
type WinnerSet struct {
	SessionID uint64
	First     string
	Second    string
	Third     string
}

// Ranked returns the winners in prize order.
func (w WinnerSet) Ranked() [3]string { return [3]string{w.First, w.Second, w.Third} }

// Distribution records the prize amounts released to the winners. Written
// exactly once per session.
type Distribution struct {
	SessionID uint64
	Prizes    [3]decimal.Decimal
	Winners   [3]string
	PayTime   time.Time
}

// Leaderboard is the live spectator view of a session, sorted best first.
type Leaderboard struct {
	SessionID uint64
	Entries   []LeaderboardEntry
}

type LeaderboardEntry struct {
	Participant string
	Correct     int
	TimeSpent   int64
}
