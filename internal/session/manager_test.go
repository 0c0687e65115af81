package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/motivate/internal/motivation"
	"github.com/kalambet/motivate/internal/storage"
)

// --- Mocks ---

type mockJournal struct {
	mu   sync.Mutex
	runs []storage.Run
	err  error
}

func (j *mockJournal) SaveRun(r storage.Run) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.runs = append(j.runs, r)
	return nil
}

// blockingJournal holds SaveRun until release is closed and supports
// deleting a user's rows the way storage.Store.DeleteRuns does.
type blockingJournal struct {
	mockJournal
	entered chan struct{}
	release chan struct{}
}

func newBlockingJournal() *blockingJournal {
	return &blockingJournal{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (j *blockingJournal) SaveRun(r storage.Run) error {
	j.entered <- struct{}{}
	<-j.release
	return j.mockJournal.SaveRun(r)
}

func (j *blockingJournal) deleteRuns(userID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	kept := j.runs[:0]
	for _, r := range j.runs {
		if r.UserID != userID {
			kept = append(kept, r)
		}
	}
	j.runs = kept
}

func (j *blockingJournal) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.runs)
}

type mockObserver struct {
	mu      sync.Mutex
	results []string
	active  int
}

func (o *mockObserver) ObserveRun(result string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

func (o *mockObserver) SetActiveEngines(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = n
}

type firstRand struct{}

func (firstRand) IntN(int) int { return 0 }

func deterministicFactory(userID string, seed motivation.Seed) (*motivation.Engine, error) {
	return motivation.NewWithOptions(userID, seed, motivation.Options{Rand: firstRand{}})
}

func newTestManager(t *testing.T, cacheSize int) (*Manager, *mockJournal, *mockObserver) {
	t.Helper()
	j := &mockJournal{}
	o := &mockObserver{}
	m, err := NewManager(Config{CacheSize: cacheSize, Journal: j, Observer: o, Factory: deterministicFactory})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, j, o
}

// --- Tests ---

func TestGenerate_CreatesEngineWithSeed(t *testing.T) {
	m, _, o := newTestManager(t, 10)

	s, err := m.Generate("u1", motivation.Seed{MotivationType: motivation.Freedom}, motivation.Update{Mood: motivation.Motivated})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if s.Profile.MotivationType != motivation.Freedom {
		t.Errorf("MotivationType = %s, want freedom", s.Profile.MotivationType)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
	if o.active != 1 {
		t.Errorf("observer active = %d, want 1", o.active)
	}

	// Seed is ignored once the engine exists.
	s, err = m.Generate("u1", motivation.Seed{MotivationType: motivation.Growth}, motivation.Update{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if s.Profile.MotivationType != motivation.Freedom {
		t.Errorf("MotivationType = %s, want freedom after reseed attempt", s.Profile.MotivationType)
	}
	if len(s.RecentInteractions) != 2 {
		t.Errorf("RecentInteractions = %v, want 2 entries", s.RecentInteractions)
	}
}

func TestGenerate_JournalsRun(t *testing.T) {
	m, j, _ := newTestManager(t, 10)

	if _, err := m.Generate("u1", motivation.Seed{}, motivation.Update{Mood: motivation.Frustrated, StressLevel: motivation.StressHigh}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(j.runs) != 1 {
		t.Fatalf("journaled %d runs, want 1", len(j.runs))
	}
	r := j.runs[0]
	if r.UserID != "u1" || r.MotivationType != "security" || r.Mood != "frustrated" {
		t.Errorf("unexpected run: %+v", r)
	}
	if r.StrategyCount != 2 || r.MessageCount != 3 {
		t.Errorf("counts = %d/%d, want 2/3", r.StrategyCount, r.MessageCount)
	}
	if r.Effectiveness != 88 {
		t.Errorf("Effectiveness = %d, want 88", r.Effectiveness)
	}
	if r.Techniques != `["reframing","chunking"]` {
		t.Errorf("Techniques = %s", r.Techniques)
	}
	if r.ID == "" {
		t.Error("run ID is empty")
	}
}

func TestGenerate_JournalFailureDoesNotFailRun(t *testing.T) {
	m, j, _ := newTestManager(t, 10)
	j.err = errors.New("disk full")

	if _, err := m.Generate("u1", motivation.Seed{}, motivation.Update{}); err != nil {
		t.Fatalf("Generate should succeed when journaling fails, got %v", err)
	}
}

func TestGenerate_ValidationErrors(t *testing.T) {
	m, j, o := newTestManager(t, 10)

	_, err := m.Generate("u1", motivation.Seed{}, motivation.Update{Mood: "ecstatic"})
	var ve *motivation.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(j.runs) != 0 {
		t.Error("rejected run must not be journaled")
	}

	_, err = m.Generate("u2", motivation.Seed{CurrentMood: "sleepy"}, motivation.Update{})
	if !errors.As(err, &ve) {
		t.Fatalf("invalid seed error = %v, want ValidationError", err)
	}
	if _, err := m.State("u2"); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("engine should not be created for invalid seed, got %v", err)
	}

	if _, err := m.Generate("", motivation.Seed{}, motivation.Update{}); !errors.As(err, &ve) {
		t.Errorf("empty user id error = %v, want ValidationError", err)
	}

	want := []string{"invalid", "invalid", "invalid"}
	if fmt.Sprint(o.results) != fmt.Sprint(want) {
		t.Errorf("observer results = %v, want %v", o.results, want)
	}
}

func TestStateAndExplain(t *testing.T) {
	m, _, _ := newTestManager(t, 10)

	if _, err := m.State("nobody"); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("State error = %v, want ErrUnknownUser", err)
	}
	if _, err := m.Explain("nobody"); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Explain error = %v, want ErrUnknownUser", err)
	}

	generated, err := m.Generate("u1", motivation.Seed{}, motivation.Update{Mood: motivation.Overwhelmed})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	s, err := m.State("u1")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if len(s.Messages) != len(generated.Messages) || s.Messages[0].ID != generated.Messages[0].ID {
		t.Error("State does not match the last generated state")
	}

	summary, err := m.Explain("u1")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if summary == "" {
		t.Error("empty explainability summary")
	}
}

func TestForget(t *testing.T) {
	m, _, o := newTestManager(t, 10)

	if _, err := m.Generate("u1", motivation.Seed{}, motivation.Update{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !m.Forget("u1") {
		t.Error("Forget returned false for existing user")
	}
	if m.Forget("u1") {
		t.Error("Forget returned true for already removed user")
	}
	if o.active != 0 {
		t.Errorf("observer active = %d, want 0", o.active)
	}
	if _, err := m.State("u1"); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("State after Forget error = %v, want ErrUnknownUser", err)
	}
}

func TestEviction(t *testing.T) {
	m, _, _ := newTestManager(t, 2)

	for _, id := range []string{"a", "b", "c"} {
		if _, err := m.Generate(id, motivation.Seed{}, motivation.Update{}); err != nil {
			t.Fatalf("Generate(%s): %v", id, err)
		}
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d, want 2", m.Len())
	}
	if _, err := m.State("a"); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("least recently used user should be evicted, got %v", err)
	}
}

func TestGenerate_ConcurrentCallsSerialized(t *testing.T) {
	m, j, _ := newTestManager(t, 10)

	const calls = 50
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Generate("u1", motivation.Seed{}, motivation.Update{}); err != nil {
				t.Errorf("Generate: %v", err)
			}
		}()
	}
	wg.Wait()

	s, err := m.State("u1")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if len(s.RecentInteractions) != calls {
		t.Errorf("RecentInteractions has %d entries, want %d", len(s.RecentInteractions), calls)
	}
	if len(j.runs) != calls {
		t.Errorf("journaled %d runs, want %d", len(j.runs), calls)
	}
}

func TestGenerate_InvalidSeedRejectedForExistingUser(t *testing.T) {
	m, j, _ := newTestManager(t, 10)

	if _, err := m.Generate("u1", motivation.Seed{}, motivation.Update{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	_, err := m.Generate("u1", motivation.Seed{MotivationType: "bogus"}, motivation.Update{})
	var ve *motivation.ValidationError
	if !errors.As(err, &ve) || ve.Field != "motivationType" {
		t.Fatalf("error = %v, want ValidationError on motivationType", err)
	}
	s, err := m.State("u1")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if len(s.RecentInteractions) != 1 {
		t.Errorf("rejected call changed state: %d interactions", len(s.RecentInteractions))
	}
	if len(j.runs) != 1 {
		t.Errorf("journaled %d runs, want 1", len(j.runs))
	}
}

func TestForget_WaitsForInFlightRun(t *testing.T) {
	j := newBlockingJournal()
	m, err := NewManager(Config{CacheSize: 10, Journal: j, Factory: deterministicFactory})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	genDone := make(chan error, 1)
	go func() {
		_, err := m.Generate("u1", motivation.Seed{}, motivation.Update{})
		genDone <- err
	}()
	<-j.entered

	forgetDone := make(chan bool, 1)
	go func() {
		forgot := m.Forget("u1")
		j.deleteRuns("u1")
		forgetDone <- forgot
	}()

	select {
	case <-forgetDone:
		t.Fatal("Forget returned while a run was still being journaled")
	case <-time.After(50 * time.Millisecond):
	}

	close(j.release)
	if err := <-genDone; err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !<-forgetDone {
		t.Error("Forget returned false for existing user")
	}
	if n := j.count(); n != 0 {
		t.Errorf("%d runs left after forget, want 0", n)
	}
	if _, err := m.State("u1"); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("State after Forget error = %v, want ErrUnknownUser", err)
	}
}
