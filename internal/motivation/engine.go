package motivation

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EngineVersion is reported in every State.
const EngineVersion = "1.0.0"

// goalPhrase is the literal replaced by the user's first goal in primary templates.
const goalPhrase = "målet ditt"

const (
	primaryConfidence      = 85
	anchorConfidence       = 90
	futurePacingConfidence = 80
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Rand is the source of template choices. *rand.Rand from math/rand/v2
// satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// NewSeededRand returns a deterministic Rand for reproducible runs.
func NewSeededRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// Options overrides the engine's content and sources of non-determinism.
// Zero fields fall back to the built-in catalog, wall clock, global random
// source and random UUIDs.
type Options struct {
	Catalog *Catalog
	Clock   Clock
	Rand    Rand
	NewID   func() string
}

// Engine runs the Sense, Reason, Plan, Act, Learn pipeline for a single user.
// It is not safe for concurrent use; callers serialize calls per user.
type Engine struct {
	catalog *Catalog
	clock   Clock
	rnd     Rand
	newID   func() string

	profile      Profile
	state        State
	interactions []int
}

// New creates an Engine for userID seeded from seed.
func New(userID string, seed Seed) (*Engine, error) {
	return NewWithOptions(userID, seed, Options{})
}

// NewWithOptions creates an Engine with injected catalog, clock, random
// source or ID generator (for testing and reproducible CLI runs).
func NewWithOptions(userID string, seed Seed, opts Options) (*Engine, error) {
	if err := ValidateSeed(seed); err != nil {
		return nil, err
	}

	e := &Engine{
		catalog: opts.Catalog,
		clock:   opts.Clock,
		rnd:     opts.Rand,
		newID:   opts.NewID,
	}
	if e.catalog == nil {
		e.catalog = DefaultCatalog()
	}
	if e.clock == nil {
		e.clock = realClock{}
	}
	if e.rnd == nil {
		e.rnd = globalRand{}
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}

	e.profile = seedProfile(userID, seed, e.clock.Now())
	e.interactions = []int{}
	e.state = State{
		UserID:             userID,
		AnalysisDate:       e.profile.LastUpdated,
		Profile:            deepCopyProfile(e.profile),
		Messages:           []Message{},
		Strategies:         []Strategy{},
		RecentInteractions: []int{},
		EngineVersion:      EngineVersion,
	}
	return e, nil
}

func seedProfile(userID string, seed Seed, now time.Time) Profile {
	p := Profile{
		UserID:         userID,
		MotivationType: Achievement,
		CurrentMood:    Neutral,
		EnergyLevel:    EnergyMedium,
		StressLevel:    StressMedium,
		Goals:          []string{},
		Challenges:     []string{},
		Strengths:      []string{},
		LastUpdated:    now,
	}
	if seed.MotivationType != "" {
		p.MotivationType = seed.MotivationType
	}
	if seed.CurrentMood != "" {
		p.CurrentMood = seed.CurrentMood
	}
	if seed.EnergyLevel != "" {
		p.EnergyLevel = seed.EnergyLevel
	}
	if seed.StressLevel != "" {
		p.StressLevel = seed.StressLevel
	}
	if seed.Goals != nil {
		p.Goals = copyStrings(seed.Goals)
	}
	if seed.Challenges != nil {
		p.Challenges = copyStrings(seed.Challenges)
	}
	if seed.Strengths != nil {
		p.Strengths = copyStrings(seed.Strengths)
	}
	return p
}

// ValidateSeed rejects seed fields outside their enums. Empty fields are allowed.
func ValidateSeed(s Seed) error {
	if s.MotivationType != "" && !s.MotivationType.Valid() {
		return &ValidationError{Field: "motivationType", Value: string(s.MotivationType)}
	}
	return validateUpdate(Update{Mood: s.CurrentMood, EnergyLevel: s.EnergyLevel, StressLevel: s.StressLevel})
}

func validateUpdate(u Update) error {
	if u.Mood != "" && !u.Mood.Valid() {
		return &ValidationError{Field: "mood", Value: string(u.Mood)}
	}
	if u.EnergyLevel != "" && !u.EnergyLevel.Valid() {
		return &ValidationError{Field: "energyLevel", Value: string(u.EnergyLevel)}
	}
	if u.StressLevel != "" && !u.StressLevel.Valid() {
		return &ValidationError{Field: "stressLevel", Value: string(u.StressLevel)}
	}
	return nil
}

// Profile returns a copy of the stored profile.
func (e *Engine) Profile() Profile {
	return deepCopyProfile(e.profile)
}

// State returns a copy of the state produced by the last successful run.
func (e *Engine) State() State {
	return deepCopyState(e.state)
}

// ExplainabilitySummary describes the current state in one sentence of at
// most MaxExplanationChars characters.
func (e *Engine) ExplainabilitySummary() string {
	return summarize(e.state)
}

// run holds the working copy the stages operate on. Nothing in it is
// visible to the engine until every stage has succeeded.
type run struct {
	profile    Profile
	techniques []Technique
	strategies []Strategy
	messages   []Message
}

// Generate runs all five stages against u and returns the new state.
// A ValidationError means u was rejected before anything changed. A
// PipelineError means a later stage failed; the engine keeps its previous
// profile and state in both cases.
func (e *Engine) Generate(u Update) (State, error) {
	r := &run{}
	if err := e.sense(r, u); err != nil {
		return State{}, err
	}

	stages := []struct {
		name string
		fn   func(*run) error
	}{
		{"reason", e.reason},
		{"plan", e.plan},
		{"act", e.act},
		{"learn", e.learn},
	}
	for _, st := range stages {
		if err := runStage(st.name, r, st.fn); err != nil {
			return State{}, err
		}
	}

	e.profile = r.profile
	e.interactions = append(e.interactions, meanEffectiveness(r.strategies))
	e.state = State{
		UserID:             e.profile.UserID,
		AnalysisDate:       e.profile.LastUpdated,
		Profile:            deepCopyProfile(e.profile),
		Messages:           r.messages,
		Strategies:         r.strategies,
		RecentInteractions: append([]int(nil), e.interactions...),
		EngineVersion:      EngineVersion,
	}
	return deepCopyState(e.state), nil
}

func runStage(name string, r *run, fn func(*run) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PipelineError{Stage: name, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	if err := fn(r); err != nil {
		return &PipelineError{Stage: name, Err: err}
	}
	return nil
}

// sense validates u and merges it into a copy of the stored profile.
func (e *Engine) sense(r *run, u Update) error {
	if err := validateUpdate(u); err != nil {
		return err
	}

	p := deepCopyProfile(e.profile)
	if u.Mood != "" {
		p.CurrentMood = u.Mood
	}
	if u.EnergyLevel != "" {
		p.EnergyLevel = u.EnergyLevel
	}
	if u.StressLevel != "" {
		p.StressLevel = u.StressLevel
	}
	if u.Goals != nil {
		p.Goals = copyStrings(u.Goals)
	}
	if u.Challenges != nil {
		p.Challenges = copyStrings(u.Challenges)
	}
	p.LastUpdated = e.clock.Now()

	r.profile = p
	return nil
}

func (e *Engine) reason(r *run) error {
	r.profile.MotivationType = DeriveMotivationType(r.profile)
	return nil
}

// DeriveMotivationType applies the Reason rules to p: distress forces
// security, low energy forces achievement, otherwise p's type is kept.
func DeriveMotivationType(p Profile) MotivationType {
	switch {
	case p.CurrentMood.distressed(), p.StressLevel == StressHigh, p.StressLevel == StressCritical:
		return Security
	case p.EnergyLevel == EnergyLow:
		return Achievement
	default:
		return p.MotivationType
	}
}

// PlanTechniques returns the techniques chosen for p, in order.
func PlanTechniques(p Profile) []Technique {
	switch {
	case p.CurrentMood == Frustrated:
		return []Technique{Reframing, Chunking}
	case p.CurrentMood == Overwhelmed:
		return []Technique{Chunking, Visualization}
	case p.EnergyLevel == EnergyLow:
		return []Technique{Anchoring, FuturePacing}
	default:
		return []Technique{FuturePacing, Anchoring}
	}
}

func (e *Engine) plan(r *run) error {
	r.techniques = PlanTechniques(r.profile)
	r.strategies = make([]Strategy, 0, len(r.techniques))
	for _, t := range r.techniques {
		tmpl, ok := e.catalog.strategy(t)
		if !ok {
			return fmt.Errorf("no strategy template for technique %q", t)
		}
		r.strategies = append(r.strategies, Strategy{
			ID:              e.newID(),
			Name:            tmpl.Name,
			Description:     tmpl.Description,
			Technique:       t,
			TargetMood:      tmpl.TargetMood,
			Effectiveness:   tmpl.Effectiveness,
			Explanation:     strategyExplanation(tmpl, r.profile),
			Steps:           copyStrings(tmpl.Steps),
			ExpectedOutcome: tmpl.ExpectedOutcome,
		})
	}
	return nil
}

// primaryKind maps the current mood to the primary message type and tone.
func primaryKind(m Mood) (MessageType, Tone) {
	switch m {
	case Frustrated, Overwhelmed:
		return Guidance, Calm
	case Excited, Motivated:
		return Challenge, Energetic
	default:
		return Encouragement, Supportive
	}
}

var errEmptyPool = errors.New("empty template pool")

func (e *Engine) pick(pool []string) (string, error) {
	if len(pool) == 0 {
		return "", errEmptyPool
	}
	return pool[e.rnd.IntN(len(pool))], nil
}

func (e *Engine) act(r *run) error {
	p := r.profile
	firstGoal := first(p.Goals)

	mt, tone := primaryKind(p.CurrentMood)
	pool := e.catalog.primary[mt]
	text, err := e.pick(pool.Templates)
	if err != nil {
		return fmt.Errorf("primary %s message: %w", mt, err)
	}
	if firstGoal != "" {
		text = strings.ReplaceAll(text, goalPhrase, firstGoal)
	}

	var elements []string
	if firstGoal != "" {
		elements = append(elements, firstGoal)
	}
	if s := first(p.Strengths); s != "" {
		elements = append(elements, s)
	}
	elements = append(elements, string(p.MotivationType))

	r.messages = append(r.messages, Message{
		ID:                   e.newID(),
		Type:                 mt,
		Title:                pool.Title,
		Message:              text,
		Tone:                 tone,
		ActionPrompt:         pool.ActionPrompt,
		Explanation:          primaryExplanation(p, mt),
		Confidence:           primaryConfidence,
		PersonalizedElements: elements,
	})

	anchor, err := e.pick(e.catalog.anchors.Phrases[p.MotivationType])
	if err != nil {
		return fmt.Errorf("anchor phrases for %s: %w", p.MotivationType, err)
	}
	r.messages = append(r.messages, Message{
		ID:                   e.newID(),
		Type:                 Reminder,
		Title:                e.catalog.anchors.Title,
		Message:              anchor,
		Tone:                 Supportive,
		Explanation:          anchorExplanation(p),
		Confidence:           anchorConfidence,
		PersonalizedElements: []string{string(p.MotivationType)},
	})

	if p.CurrentMood != Overwhelmed {
		fp := e.catalog.futurePacing
		goal := firstGoal
		if goal == "" {
			goal = fp.DefaultGoal
		}
		r.messages = append(r.messages, Message{
			ID:                   e.newID(),
			Type:                 Challenge,
			Title:                fp.Title,
			Message:              strings.ReplaceAll(fp.Template, goalPlaceholder, goal),
			Tone:                 Energetic,
			ActionPrompt:         fp.ActionPrompt,
			Explanation:          futurePacingExplanation(goal),
			Confidence:           futurePacingConfidence,
			PersonalizedElements: []string{goal},
		})
	}
	return nil
}

func (e *Engine) learn(r *run) error {
	in := newInsight(r.profile, len(r.strategies), len(r.messages))
	slog.Debug("motivation pipeline complete",
		"user_id", in.UserID,
		"motivation_type", in.MotivationType,
		"mood", in.Mood,
		"energy_level", in.EnergyLevel,
		"stress_level", in.StressLevel,
		"strategies", in.StrategyCount,
		"messages", in.MessageCount,
	)
	return nil
}

// Summarize builds the Learn-stage insight for a state.
func Summarize(s State) Insight {
	return newInsight(s.Profile, len(s.Strategies), len(s.Messages))
}

func newInsight(p Profile, strategies, messages int) Insight {
	return Insight{
		UserID:         p.UserID,
		MotivationType: p.MotivationType,
		Mood:           p.CurrentMood,
		EnergyLevel:    p.EnergyLevel,
		StressLevel:    p.StressLevel,
		StrategyCount:  strategies,
		MessageCount:   messages,
	}
}

// meanEffectiveness is the score appended to recentInteractions for a run.
func meanEffectiveness(strategies []Strategy) int {
	if len(strategies) == 0 {
		return 0
	}
	sum := 0
	for _, s := range strategies {
		sum += s.Effectiveness
	}
	n := len(strategies)
	return (sum + n/2) / n
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
