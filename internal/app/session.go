package service

import (
	"sync"
	"time"

	"github.com/okian/fetalhealth/internal/domain/model"
)

// Session is the per-login context: who is working, the dataset snapshot
// they see and the patient they classified last.
type Session struct {
	ID        string    `json:"session_id"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"created_at"`

	mu             sync.RWMutex
	dataset        model.Table
	currentPatient *model.Observation
}

func newSession(id, user string, dataset model.Table, now time.Time) *Session {
	return &Session{ID: id, User: user, CreatedAt: now, dataset: dataset}
}

// Dataset returns the snapshot loaded at login or at the last reload.
func (s *Session) Dataset() model.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset
}

func (s *Session) setDataset(t model.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset = t
}

// CurrentPatient returns the last classified observation, if any.
func (s *Session) CurrentPatient() (model.Observation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentPatient == nil {
		return model.Observation{}, false
	}
	return *s.currentPatient, true
}

func (s *Session) setCurrentPatient(o model.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPatient = &o
}
