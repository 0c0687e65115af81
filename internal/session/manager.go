package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kalambet/motivate/internal/motivation"
	"github.com/kalambet/motivate/internal/storage"
)

// ErrUnknownUser is returned when no engine exists for the requested user.
var ErrUnknownUser = errors.New("unknown user")

const defaultCacheSize = 1024

// Journal records completed runs. Implemented by storage.Store.
type Journal interface {
	SaveRun(r storage.Run) error
}

// Observer receives the outcome of every Generate call.
type Observer interface {
	ObserveRun(result string, d time.Duration)
	SetActiveEngines(n int)
}

// Factory builds a new engine for a user. Tests inject deterministic sources here.
type Factory func(userID string, seed motivation.Seed) (*motivation.Engine, error)

// Config wires a Manager. Journal, Observer and Factory are optional.
type Config struct {
	CacheSize int
	Journal   Journal
	Observer  Observer
	Factory   Factory
	Clock     motivation.Clock
}

type entry struct {
	mu     sync.Mutex
	engine *motivation.Engine
	// forgotten is set under mu once Forget has removed the entry.
	forgotten bool
}

// Manager owns one engine per user and serializes calls per user. Engines
// are held in a bounded LRU; an evicted user starts over from a fresh seed.
type Manager struct {
	journal  Journal
	observer Observer
	factory  Factory
	clock    motivation.Clock

	// mu guards lookups and inserts so two first calls for the same user
	// share an engine.
	mu      sync.Mutex
	engines *lru.Cache[string, *entry]
}

// NewManager creates a Manager from cfg.
func NewManager(cfg Config) (*Manager, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	m := &Manager{
		journal:  cfg.Journal,
		observer: cfg.Observer,
		factory:  cfg.Factory,
		clock:    cfg.Clock,
	}
	if m.factory == nil {
		m.factory = motivation.New
	}
	if m.clock == nil {
		m.clock = wallClock{}
	}

	cache, err := lru.NewWithEvict[string, *entry](size, func(userID string, _ *entry) {
		slog.Debug("session evicted", "user_id", userID)
	})
	if err != nil {
		return nil, fmt.Errorf("creating engine cache: %w", err)
	}
	m.engines = cache
	return m, nil
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (m *Manager) lookup(userID string) (*entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engines.Get(userID)
}

func (m *Manager) getOrCreate(userID string, seed motivation.Seed) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.engines.Get(userID); ok {
		return e, nil
	}
	eng, err := m.factory(userID, seed)
	if err != nil {
		return nil, err
	}
	e := &entry{engine: eng}
	m.engines.Add(userID, e)
	m.reportActive()
	return e, nil
}

func (m *Manager) reportActive() {
	if m.observer != nil {
		m.observer.SetActiveEngines(m.engines.Len())
	}
}

// Generate runs the pipeline for userID. seed is always validated but only
// applied when the user's engine is created by this call.
func (m *Manager) Generate(userID string, seed motivation.Seed, u motivation.Update) (motivation.State, error) {
	start := m.clock.Now()
	state, err := m.generate(userID, seed, u)
	if m.observer != nil {
		m.observer.ObserveRun(resultLabel(err), m.clock.Now().Sub(start))
	}
	return state, err
}

func (m *Manager) generate(userID string, seed motivation.Seed, u motivation.Update) (motivation.State, error) {
	if userID == "" {
		return motivation.State{}, &motivation.ValidationError{Field: "userId", Value: userID}
	}
	if err := motivation.ValidateSeed(seed); err != nil {
		return motivation.State{}, err
	}

	for {
		e, err := m.getOrCreate(userID, seed)
		if err != nil {
			return motivation.State{}, err
		}

		e.mu.Lock()
		if e.forgotten {
			// Lost a race with Forget; start over on a fresh engine.
			e.mu.Unlock()
			continue
		}
		state, err := e.engine.Generate(u)
		if err == nil {
			m.record(state)
		}
		e.mu.Unlock()
		return state, err
	}
}

func (m *Manager) record(s motivation.State) {
	if m.journal == nil {
		return
	}
	in := motivation.Summarize(s)

	techniques := make([]string, len(s.Strategies))
	for i, st := range s.Strategies {
		techniques[i] = string(st.Technique)
	}
	techJSON, err := json.Marshal(techniques)
	if err != nil {
		slog.Warn("journal: failed to marshal techniques", "user_id", s.UserID, "error", err)
		techJSON = []byte("[]")
	}

	effectiveness := 0
	if n := len(s.RecentInteractions); n > 0 {
		effectiveness = s.RecentInteractions[n-1]
	}

	r := storage.Run{
		ID:             uuid.NewString(),
		UserID:         s.UserID,
		CreatedAt:      s.AnalysisDate,
		MotivationType: string(in.MotivationType),
		Mood:           string(in.Mood),
		EnergyLevel:    string(in.EnergyLevel),
		StressLevel:    string(in.StressLevel),
		StrategyCount:  in.StrategyCount,
		MessageCount:   in.MessageCount,
		Effectiveness:  effectiveness,
		Techniques:     string(techJSON),
	}
	if err := m.journal.SaveRun(r); err != nil {
		slog.Warn("journal: failed to record run", "user_id", s.UserID, "error", err)
	}
}

// State returns the latest state for userID.
func (m *Manager) State(userID string) (motivation.State, error) {
	e, ok := m.lookup(userID)
	if !ok {
		return motivation.State{}, ErrUnknownUser
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.forgotten {
		return motivation.State{}, ErrUnknownUser
	}
	return e.engine.State(), nil
}

// Explain returns the explainability summary for userID.
func (m *Manager) Explain(userID string) (string, error) {
	e, ok := m.lookup(userID)
	if !ok {
		return "", ErrUnknownUser
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.forgotten {
		return "", ErrUnknownUser
	}
	return e.engine.ExplainabilitySummary(), nil
}

// Forget drops the engine for userID. It reports whether one existed. A run
// already in flight for the user, including its journal write, completes
// before Forget returns.
func (m *Manager) Forget(userID string) bool {
	m.mu.Lock()
	e, ok := m.engines.Peek(userID)
	if ok {
		m.engines.Remove(userID)
	}
	m.reportActive()
	m.mu.Unlock()

	if !ok {
		return false
	}
	e.mu.Lock()
	e.forgotten = true
	e.mu.Unlock()
	return true
}

// Len returns the number of live engines.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engines.Len()
}

func resultLabel(err error) string {
	var ve *motivation.ValidationError
	var pe *motivation.PipelineError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &pe):
		return "pipeline_error"
	default:
		return "error"
	}
}
