package motivation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxExplanationChars caps every explanation and the explainability summary.
const MaxExplanationChars = 240

const ellipsis = "…"

// clampExplanation shortens s to at most MaxExplanationChars runes, cutting
// at the last word boundary when one exists.
func clampExplanation(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxExplanationChars {
		return s
	}

	limit := MaxExplanationChars - utf8.RuneCountInString(ellipsis)
	runes := []rune(s)
	cut := string(runes[:limit])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,.;:") + ellipsis
}

func primaryExplanation(p Profile, mt MessageType) string {
	return clampExplanation(fmt.Sprintf(
		"Valgt som %s fordi humøret ditt er %s, energinivået %s og stressnivået %s. Tilnærmingen bygger på %s-motivasjon.",
		mt, p.CurrentMood, p.EnergyLevel, p.StressLevel, p.MotivationType,
	))
}

func anchorExplanation(p Profile) string {
	return clampExplanation(fmt.Sprintf(
		"Ankring minner deg om det som driver deg: %s. Det gjør det lettere å holde kursen når humøret er %s.",
		p.MotivationType, p.CurrentMood,
	))
}

func futurePacingExplanation(goal string) string {
	return clampExplanation(fmt.Sprintf(
		"Fremtidsbilder gjør målet (%s) konkret og kobler dagens handlinger til resultatet du ønsker.",
		goal,
	))
}

func strategyExplanation(t strategyTemplate, p Profile) string {
	return clampExplanation(fmt.Sprintf("%s Tilpasset humør %s og energi %s.", t.Explanation, p.CurrentMood, p.EnergyLevel))
}

func summarize(s State) string {
	if len(s.Messages) == 0 {
		return clampExplanation(fmt.Sprintf(
			"Ingen meldinger generert ennå for humør %s med %s-motivasjon.",
			s.Profile.CurrentMood, s.Profile.MotivationType,
		))
	}
	return clampExplanation(fmt.Sprintf(
		"Humøret ditt er %s, og tilnærmingen bygger på %s-motivasjon, derfor fikk du %d meldinger og %d strategier.",
		s.Profile.CurrentMood, s.Profile.MotivationType, len(s.Messages), len(s.Strategies),
	))
}
