package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPass   = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	colorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}

	passStyle    = lipgloss.NewStyle().Foreground(colorPass)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarn)
	failStyle    = lipgloss.NewStyle().Foreground(colorFail)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
)

const (
	iconPass = "✓"
	iconWarn = "⚠"
	iconFail = "✗"
)

func renderPass(s string) string    { return passStyle.Render(s) }
func renderWarn(s string) string    { return warnStyle.Render(s) }
func renderFail(s string) string    { return failStyle.Render(s) }
func renderMuted(s string) string   { return mutedStyle.Render(s) }
func renderHeading(s string) string { return headingStyle.Render(s) }

// statusMark renders a pass or fail marker followed by label.
func statusMark(ok bool, label string) string {
	if ok {
		return renderPass(iconPass + " " + label)
	}
	return renderFail(iconFail + " " + label)
}

// scoreText formats an optional score to three decimals.
func scoreText(score *float64) string {
	if score == nil {
		return renderMuted("n/a")
	}
	return fmt.Sprintf("%.3f", *score)
}
