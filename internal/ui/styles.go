// internal/ui/styles.go

package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Kolory
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	errColor  = lipgloss.AdaptiveColor{Light: "#FF0000", Dark: "#FF5555"}

	// Tytuł
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight).
			MarginLeft(2)

	// Opisy i informacje
	DescriptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginLeft(2)

	// Pola wejściowe
	InputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(highlight).
			Padding(0, 1)

	// Przyciski / skróty klawiszowe
	ButtonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Padding(0, 1)

	// Statusy
	SuccessStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(errColor).
			Bold(true)

	// Kontenery
	WindowStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(1, 2)
)
