package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/domain"
)

// State is the per-browser session. It starts empty; the weather sample is
// only ever written by a successful fetch and is read by the analysis step.
type State struct {
	ID string

	mu       sync.RWMutex
	weather  *domain.WeatherSample
	analysis *domain.Analysis
}

func NewState(id string) *State {
	return &State{ID: id}
}

func (s *State) Weather() (domain.WeatherSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.weather == nil {
		return domain.WeatherSample{}, false
	}
	return *s.weather, true
}

func (s *State) SetWeather(w domain.WeatherSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weather = &w
}

func (s *State) LastAnalysis() (domain.Analysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.analysis == nil {
		return domain.Analysis{}, false
	}
	return *s.analysis, true
}

func (s *State) SetLastAnalysis(a domain.Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysis = &a
}

const (
	DefaultMaxSessions = 1024
	DefaultIdleTimeout = 24 * time.Hour
)

// New returns an empty state with a fresh random ID. It is not stored until
// passed to Store.Add.
func New() *State {
	return NewState(uuid.NewString())
}

// Store keeps at most a fixed number of sessions. The least recently used
// one is evicted when full, and a session idle for longer than the timeout
// expires.
type Store struct {
	sessions *expirable.LRU[string, *State]
}

// NewStore falls back to the defaults for non-positive limits.
func NewStore(maxSessions int, idle time.Duration) *Store {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Store{sessions: expirable.NewLRU[string, *State](maxSessions, nil, idle)}
}

// Get returns the live session for id. A hit restarts its idle timer.
func (s *Store) Get(id string) (*State, bool) {
	if id == "" {
		return nil, false
	}
	st, ok := s.sessions.Get(id)
	if !ok {
		return nil, false
	}
	s.sessions.Add(id, st)
	return st, true
}

func (s *Store) Add(st *State) {
	s.sessions.Add(st.ID, st)
}

func (s *Store) Len() int {
	return s.sessions.Len()
}
