package store

import (
	"context"
	"sync"
	"time"

	"github.com/victornm/triviapot/internal/domain"
)

// Memory is an in-process Store for tests and local development.
type Memory struct {
	mu sync.RWMutex

	nextID        uint64
	sessions      map[uint64]domain.Session
	prizes        map[uint64]domain.PrizeConfig
	questions     map[uint64]map[int]domain.Question
	participants  map[uint64]map[string]domain.ParticipantRecord
	order         map[uint64][]string
	winners       map[uint64]domain.WinnerSet
	distributions map[uint64]domain.Distribution
}

func NewMemory() *Memory {
	return &Memory{
		nextID:        1,
		sessions:      make(map[uint64]domain.Session),
		prizes:        make(map[uint64]domain.PrizeConfig),
		questions:     make(map[uint64]map[int]domain.Question),
		participants:  make(map[uint64]map[string]domain.ParticipantRecord),
		order:         make(map[uint64][]string),
		winners:       make(map[uint64]domain.WinnerSet),
		distributions: make(map[uint64]domain.Distribution),
	}
}

func (m *Memory) CreateSession(_ context.Context, s *domain.Session, p *domain.PrizeConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.SessionID = m.nextID
	p.SessionID = m.nextID
	m.nextID++

	m.sessions[s.SessionID] = *s
	m.prizes[p.SessionID] = *p
	return nil
}

func (m *Memory) GetSession(_ context.Context, sessionID uint64) (domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return domain.Session{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) UpdateSession(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.SessionID]; !ok {
		return ErrNotFound
	}
	m.sessions[s.SessionID] = s
	return nil
}

func (m *Memory) GetPrizeConfig(_ context.Context, sessionID uint64) (domain.PrizeConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.prizes[sessionID]
	if !ok {
		return domain.PrizeConfig{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) UpdatePrizeConfig(_ context.Context, p domain.PrizeConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.prizes[p.SessionID]; !ok {
		return ErrNotFound
	}
	m.prizes[p.SessionID] = p
	return nil
}

func (m *Memory) AddQuestion(_ context.Context, q domain.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	qs, ok := m.questions[q.SessionID]
	if !ok {
		qs = make(map[int]domain.Question)
		m.questions[q.SessionID] = qs
	}
	if _, ok := qs[q.Number]; ok {
		return ErrAlreadyExists
	}
	qs[q.Number] = q
	return nil
}

func (m *Memory) GetQuestion(_ context.Context, sessionID uint64, number int) (domain.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.questions[sessionID][number]
	if !ok {
		return domain.Question{}, ErrNotFound
	}
	return q, nil
}

func (m *Memory) PutParticipant(_ context.Context, r domain.ParticipantRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ps, ok := m.participants[r.SessionID]
	if !ok {
		ps = make(map[string]domain.ParticipantRecord)
		m.participants[r.SessionID] = ps
	}
	if _, ok := ps[r.Participant]; !ok {
		m.order[r.SessionID] = append(m.order[r.SessionID], r.Participant)
	}
	ps[r.Participant] = copyRecord(r)
	return nil
}

func (m *Memory) GetParticipant(_ context.Context, sessionID uint64, participant string) (domain.ParticipantRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.participants[sessionID][participant]
	if !ok {
		return domain.ParticipantRecord{}, ErrNotFound
	}
	return copyRecord(r), nil
}

func (m *Memory) ListParticipants(_ context.Context, sessionID uint64) ([]domain.ParticipantRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rs := make([]domain.ParticipantRecord, 0, len(m.order[sessionID]))
	for _, p := range m.order[sessionID] {
		rs = append(rs, copyRecord(m.participants[sessionID][p]))
	}
	return rs, nil
}

func (m *Memory) PutWinners(_ context.Context, w domain.WinnerSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.winners[w.SessionID]; ok {
		return ErrAlreadyExists
	}
	m.winners[w.SessionID] = w
	return nil
}

func (m *Memory) GetWinners(_ context.Context, sessionID uint64) (domain.WinnerSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.winners[sessionID]
	if !ok {
		return domain.WinnerSet{}, ErrNotFound
	}
	return w, nil
}

func (m *Memory) PutDistribution(_ context.Context, d domain.Distribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.distributions[d.SessionID]; ok {
		return ErrAlreadyExists
	}
	m.distributions[d.SessionID] = d
	return nil
}

func (m *Memory) GetDistribution(_ context.Context, sessionID uint64) (domain.Distribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.distributions[sessionID]
	if !ok {
		return domain.Distribution{}, ErrNotFound
	}
	return d, nil
}

// copyRecord detaches the AnswerTimes map so callers cannot alias stored state.
func copyRecord(r domain.ParticipantRecord) domain.ParticipantRecord {
	if r.AnswerTimes == nil {
		return r
	}
	times := make(map[int]time.Time, len(r.AnswerTimes))
	for k, v := range r.AnswerTimes {
		times[k] = v
	}
	r.AnswerTimes = times
	return r
}
