package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kalambet/motivate/internal/motivation"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func toneColor(t motivation.Tone) string {
	switch t {
	case motivation.Energetic:
		return colorYellow
	case motivation.Calm:
		return colorCyan
	default:
		return colorGreen
	}
}

// renderState writes the messages and strategies of s in a human-readable form.
func renderState(w io.Writer, s motivation.State) {
	fmt.Fprintf(w, "%s %s · %s · energi %s · stress %s\n",
		colorize(colorBold, s.UserID),
		s.Profile.MotivationType, s.Profile.CurrentMood, s.Profile.EnergyLevel, s.Profile.StressLevel)

	for _, m := range s.Messages {
		fmt.Fprintf(w, "\n%s %s\n", colorize(toneColor(m.Tone), "["+string(m.Type)+"]"), colorize(colorBold, m.Title))
		fmt.Fprintf(w, "  %s\n", m.Message)
		if m.ActionPrompt != "" {
			fmt.Fprintf(w, "  → %s\n", m.ActionPrompt)
		}
		fmt.Fprintf(w, "  %s\n", colorize(colorDim, fmt.Sprintf("%s (%d%%)", m.Explanation, m.Confidence)))
	}

	if len(s.Strategies) > 0 {
		fmt.Fprintf(w, "\n%s\n", colorize(colorBold, "Strategier"))
	}
	for _, st := range s.Strategies {
		fmt.Fprintf(w, "\n  %s %s\n", colorize(colorCyan, st.Name), colorize(colorDim, fmt.Sprintf("(%s, %d%%)", st.Technique, st.Effectiveness)))
		for i, step := range st.Steps {
			fmt.Fprintf(w, "    %d. %s\n", i+1, step)
		}
		fmt.Fprintf(w, "    %s\n", colorize(colorDim, st.Explanation))
	}
}
