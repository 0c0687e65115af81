package motivation

import "time"

// MotivationType is the user's dominant motivation orientation.
type MotivationType string

const (
	Achievement  MotivationType = "achievement"
	Security     MotivationType = "security"
	Freedom      MotivationType = "freedom"
	Growth       MotivationType = "growth"
	Contribution MotivationType = "contribution"
)

// MotivationTypes lists every valid MotivationType in catalog order.
var MotivationTypes = []MotivationType{Achievement, Security, Freedom, Growth, Contribution}

func (m MotivationType) Valid() bool {
	switch m {
	case Achievement, Security, Freedom, Growth, Contribution:
		return true
	}
	return false
}

// Mood is the user's current emotional state.
type Mood string

const (
	Excited     Mood = "excited"
	Motivated   Mood = "motivated"
	Neutral     Mood = "neutral"
	Frustrated  Mood = "frustrated"
	Overwhelmed Mood = "overwhelmed"
)

// Moods lists every valid Mood.
var Moods = []Mood{Excited, Motivated, Neutral, Frustrated, Overwhelmed}

func (m Mood) Valid() bool {
	switch m {
	case Excited, Motivated, Neutral, Frustrated, Overwhelmed:
		return true
	}
	return false
}

// distressed reports whether the mood calls for a calming approach.
func (m Mood) distressed() bool {
	return m == Frustrated || m == Overwhelmed
}

type EnergyLevel string

const (
	EnergyHigh   EnergyLevel = "high"
	EnergyMedium EnergyLevel = "medium"
	EnergyLow    EnergyLevel = "low"
)

var EnergyLevels = []EnergyLevel{EnergyHigh, EnergyMedium, EnergyLow}

func (e EnergyLevel) Valid() bool {
	switch e {
	case EnergyHigh, EnergyMedium, EnergyLow:
		return true
	}
	return false
}

type StressLevel string

const (
	StressLow      StressLevel = "low"
	StressMedium   StressLevel = "medium"
	StressHigh     StressLevel = "high"
	StressCritical StressLevel = "critical"
)

var StressLevels = []StressLevel{StressLow, StressMedium, StressHigh, StressCritical}

func (s StressLevel) Valid() bool {
	switch s {
	case StressLow, StressMedium, StressHigh, StressCritical:
		return true
	}
	return false
}

type MessageType string

const (
	Encouragement MessageType = "encouragement"
	Challenge     MessageType = "challenge"
	Celebration   MessageType = "celebration"
	Guidance      MessageType = "guidance"
	Reminder      MessageType = "reminder"
)

type Tone string

const (
	Supportive  Tone = "supportive"
	Energetic   Tone = "energetic"
	Calm        Tone = "calm"
	Urgent      Tone = "urgent"
	Celebratory Tone = "celebratory"
)

// Technique identifies one of the coaching techniques in the strategy catalog.
type Technique string

const (
	Anchoring     Technique = "anchoring"
	FuturePacing  Technique = "future_pacing"
	Reframing     Technique = "reframing"
	Chunking      Technique = "chunking"
	Visualization Technique = "visualization"
)

var Techniques = []Technique{Anchoring, FuturePacing, Reframing, Chunking, Visualization}

// Profile is the per-user state the pipeline reads and mutates.
type Profile struct {
	UserID         string         `json:"userId"`
	MotivationType MotivationType `json:"motivationType"`
	CurrentMood    Mood           `json:"currentMood"`
	EnergyLevel    EnergyLevel    `json:"energyLevel"`
	StressLevel    StressLevel    `json:"stressLevel"`
	Goals          []string       `json:"goals"`
	Challenges     []string       `json:"challenges"`
	Strengths      []string       `json:"strengths"`
	LastUpdated    time.Time      `json:"lastUpdated"`
}

// Message is one generated piece of motivational text.
type Message struct {
	ID                   string      `json:"id"`
	Type                 MessageType `json:"type"`
	Title                string      `json:"title"`
	Message              string      `json:"message"`
	Tone                 Tone        `json:"tone"`
	ActionPrompt         string      `json:"actionPrompt,omitempty"`
	Explanation          string      `json:"explanation"`
	Confidence           int         `json:"confidence"`
	PersonalizedElements []string    `json:"personalizedElements"`
}

// Strategy is a coaching technique instantiated for the current run.
type Strategy struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Technique       Technique `json:"technique"`
	TargetMood      Mood      `json:"targetMood"`
	Effectiveness   int       `json:"effectiveness"`
	Explanation     string    `json:"explanation"`
	Steps           []string  `json:"steps"`
	ExpectedOutcome string    `json:"expectedOutcome"`
}

// State is the snapshot returned by every pipeline run.
type State struct {
	UserID             string     `json:"userId"`
	AnalysisDate       time.Time  `json:"analysisDate"`
	Profile            Profile    `json:"profile"`
	Messages           []Message  `json:"messages"`
	Strategies         []Strategy `json:"strategies"`
	RecentInteractions []int      `json:"recentInteractions"`
	EngineVersion      string     `json:"engineVersion"`
}

// Update carries the caller's partial context for one run. Empty enum
// fields and nil slices leave the stored profile untouched; a non-nil empty
// slice clears the list.
type Update struct {
	Mood        Mood        `json:"mood,omitempty"`
	EnergyLevel EnergyLevel `json:"energyLevel,omitempty"`
	StressLevel StressLevel `json:"stressLevel,omitempty"`
	Goals       []string    `json:"goals,omitempty"`
	Challenges  []string    `json:"challenges,omitempty"`
}

// Seed is the optional initial profile given at construction. Zero fields
// take the documented defaults.
type Seed struct {
	MotivationType MotivationType `json:"motivationType,omitempty"`
	CurrentMood    Mood           `json:"currentMood,omitempty"`
	EnergyLevel    EnergyLevel    `json:"energyLevel,omitempty"`
	StressLevel    StressLevel    `json:"stressLevel,omitempty"`
	Goals          []string       `json:"goals,omitempty"`
	Challenges     []string       `json:"challenges,omitempty"`
	Strengths      []string       `json:"strengths,omitempty"`
}

// Insight is the loggable summary produced by the Learn stage.
type Insight struct {
	UserID         string         `json:"userId"`
	MotivationType MotivationType `json:"motivationType"`
	Mood           Mood           `json:"mood"`
	EnergyLevel    EnergyLevel    `json:"energyLevel"`
	StressLevel    StressLevel    `json:"stressLevel"`
	StrategyCount  int            `json:"strategyCount"`
	MessageCount   int            `json:"messageCount"`
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	cp := make([]string, len(s))
	copy(cp, s)
	return cp
}

func deepCopyProfile(p Profile) Profile {
	cp := p
	cp.Goals = copyStrings(p.Goals)
	cp.Challenges = copyStrings(p.Challenges)
	cp.Strengths = copyStrings(p.Strengths)
	return cp
}

func deepCopyState(s State) State {
	cp := s
	cp.Profile = deepCopyProfile(s.Profile)
	if s.Messages != nil {
		cp.Messages = make([]Message, len(s.Messages))
		for i, m := range s.Messages {
			m.PersonalizedElements = copyStrings(m.PersonalizedElements)
			cp.Messages[i] = m
		}
	}
	if s.Strategies != nil {
		cp.Strategies = make([]Strategy, len(s.Strategies))
		for i, st := range s.Strategies {
			st.Steps = copyStrings(st.Steps)
			cp.Strategies[i] = st
		}
	}
	if s.RecentInteractions != nil {
		cp.RecentInteractions = make([]int, len(s.RecentInteractions))
		copy(cp.RecentInteractions, s.RecentInteractions)
	}
	return cp
}
