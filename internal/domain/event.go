package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventNameSessionCreated     = "session.created"
	EventNameQuestionAdded      = "question.added"
	EventNameSessionStarted     = "session.started"
	EventNameRoundAdvanced      = "round.advanced"
	EventNameSessionCompleted   = "session.completed"
	EventNameAnswerSubmitted    = "answer.submitted"
	EventNameFeeDeposited       = "fee.deposited"
	EventNameFeeRefunded        = "fee.refunded"
	EventNameWinnersDeclared    = "winners.declared"
	EventNameRewardDistributed  = "reward.distributed"
	EventNameScoreUpdated       = "score.updated"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventSessionCreated struct {
	Session Session
}

func (EventSessionCreated) Name() string { return EventNameSessionCreated }

type EventQuestionAdded struct {
	SessionID uint64
	Number    int
}

func (EventQuestionAdded) Name() string { return EventNameQuestionAdded }

type EventSessionStarted struct {
	SessionID    uint64
	Participants int
}

func (EventSessionStarted) Name() string { return EventNameSessionStarted }

type EventRoundAdvanced struct {
	SessionID uint64
	Round     int
}

func (EventRoundAdvanced) Name() string { return EventNameRoundAdvanced }

type EventSessionCompleted struct {
	SessionID uint64
}

func (EventSessionCompleted) Name() string { return EventNameSessionCompleted }

type EventAnswerSubmitted struct {
	SessionID   uint64
	Participant string
	Question    int
	Correct     bool
	SubmitTime  time.Time
}

func (EventAnswerSubmitted) Name() string { return EventNameAnswerSubmitted }

type EventFeeDeposited struct {
	ReferenceID string
	SessionID   uint64
	Participant string
	Amount      decimal.Decimal
	Pool        decimal.Decimal
}

func (EventFeeDeposited) Name() string { return EventNameFeeDeposited }

type EventFeeRefunded struct {
	ReferenceID string
	SessionID   uint64
	Participant string
	Amount      decimal.Decimal
}

func (EventFeeRefunded) Name() string { return EventNameFeeRefunded }

type EventWinnersDeclared struct {
	Winners WinnerSet
}

func (EventWinnersDeclared) Name() string { return EventNameWinnersDeclared }

type EventRewardDistributed struct {
	ReferenceID  string
	Distribution Distribution
}

func (EventRewardDistributed) Name() string { return EventNameRewardDistributed }

// EventScoreUpdated feeds the live leaderboard view.
type EventScoreUpdated struct {
	SessionID   uint64
	Participant string
	Correct     int
	TimeSpent   int64
	UpdateTime  time.Time
}

func (EventScoreUpdated) Name() string { return EventNameScoreUpdated }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
