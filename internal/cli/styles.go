// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/sievefin/tradesift/internal/model"
)

var (
	// PrimaryColor is the main theme color.
	PrimaryColor = lipgloss.Color("#5FAFD7")
	// SuccessColor indicates successful operations.
	SuccessColor = lipgloss.Color("#4ECDC4")
	// WarningColor indicates warnings or caution messages.
	WarningColor = lipgloss.Color("#FFE66D")
	// ErrorColor indicates errors or failure messages.
	ErrorColor = lipgloss.Color("#FF6B6B")
	// SubtleColor indicates less prominent output.
	SubtleColor = lipgloss.Color("#666666")

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// TableHeaderStyle is used for table headers.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(lipgloss.Color("#333"))
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render("✓ " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render("✗ " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render("⚠ " + message)
}

// FormatTitle formats a section title.
func FormatTitle(title string) string {
	return TitleStyle.Render(title)
}

// PriorityStyle colors a review priority for queue listings.
func PriorityStyle(p model.ReviewPriority) string {
	switch p {
	case model.PriorityUrgent:
		return ErrorStyle.Render(string(p))
	case model.PriorityHigh:
		return WarningStyle.Render(string(p))
	case model.PriorityMedium:
		return SuccessStyle.Render(string(p))
	default:
		return SubtleStyle.Render(string(p))
	}
}

// RecommendationStyle colors a detection verdict.
func RecommendationStyle(r model.Recommendation) string {
	switch r {
	case model.RecommendReject:
		return ErrorStyle.Render(string(r))
	case model.RecommendReview:
		return WarningStyle.Render(string(r))
	default:
		return SuccessStyle.Render(string(r))
	}
}

// FormatConfidence renders a confidence with its risk level.
func FormatConfidence(confidence float64, risk model.RiskLevel) string {
	text := fmt.Sprintf("%.2f (%s)", confidence, risk)
	switch risk {
	case model.RiskCritical, model.RiskHigh:
		return ErrorStyle.Render(text)
	case model.RiskMedium:
		return WarningStyle.Render(text)
	default:
		return SubtleStyle.Render(text)
	}
}
