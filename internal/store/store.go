// Package store is the persistence boundary of the trivia core. Every
// entity is read and written whole; callers never observe a partially
// written record.
package store

import (
	"context"
	"errors"

	"github.com/victornm/triviapot/internal/domain"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrAlreadyExists is returned when a record with the same key exists.
var ErrAlreadyExists = errors.New("store: already exists")

type Store interface {
	// CreateSession assigns the next sequential session id (starting at 1)
	// and persists the session together with its prize configuration.
	CreateSession(ctx context.Context, s *domain.Session, p *domain.PrizeConfig) error
	GetSession(ctx context.Context, sessionID uint64) (domain.Session, error)
	UpdateSession(ctx context.Context, s domain.Session) error

	GetPrizeConfig(ctx context.Context, sessionID uint64) (domain.PrizeConfig, error)
	UpdatePrizeConfig(ctx context.Context, p domain.PrizeConfig) error

	AddQuestion(ctx context.Context, q domain.Question) error
	GetQuestion(ctx context.Context, sessionID uint64, number int) (domain.Question, error)

	PutParticipant(ctx context.Context, r domain.ParticipantRecord) error
	GetParticipant(ctx context.Context, sessionID uint64, participant string) (domain.ParticipantRecord, error)
	// ListParticipants returns the records in registration order.
	ListParticipants(ctx context.Context, sessionID uint64) ([]domain.ParticipantRecord, error)

	PutWinners(ctx context.Context, w domain.WinnerSet) error
	GetWinners(ctx context.Context, sessionID uint64) (domain.WinnerSet, error)

	PutDistribution(ctx context.Context, d domain.Distribution) error
	GetDistribution(ctx context.Context, sessionID uint64) (domain.Distribution, error)
}
