package style

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette. Adaptive colors pick the light or dark value from the terminal
// background.
var (
	headingColor = lipgloss.AdaptiveColor{Light: "#1F2328", Dark: "#E6EDF3"}
	subjectColor = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#58A6FF"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#656D76", Dark: "#8B949E"}
	errorColor   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#FF7B72"}
	dryRunColor  = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}
	messageColor = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
)

var (
	// TitleStyle heads a view and its sections
	TitleStyle = lipgloss.NewStyle().Foreground(headingColor).Bold(true)

	// SubjectStyle shows what a view is about: a target, profile or snapshot
	SubjectStyle = lipgloss.NewStyle().Foreground(subjectColor).Italic(true)

	// DryRunStyle marks output that describes changes not yet made
	DryRunStyle = lipgloss.NewStyle().Foreground(dryRunColor).Bold(true)

	// MutedStyle is for footers, empty-section notes and error details
	MutedStyle = lipgloss.NewStyle().Foreground(mutedColor)

	ErrorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	MessageStyle = lipgloss.NewStyle().Foreground(messageColor)
)
