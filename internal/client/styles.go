package client

import "github.com/charmbracelet/lipgloss"

var (
	purple = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	cyan   = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	green  = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
	rose   = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}
	amber  = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
	gray   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(purple)

	channelStyle        = lipgloss.NewStyle().Foreground(gray)
	currentChannelStyle = lipgloss.NewStyle().Bold(true).Foreground(cyan)

	usernameStyle  = lipgloss.NewStyle().Bold(true).Foreground(cyan)
	timestampStyle = lipgloss.NewStyle().Foreground(gray)

	connectedStyle    = lipgloss.NewStyle().Foreground(green)
	connectingStyle   = lipgloss.NewStyle().Foreground(amber)
	disconnectedStyle = lipgloss.NewStyle().Foreground(rose)

	errorStyle = lipgloss.NewStyle().Foreground(rose)
	hintStyle  = lipgloss.NewStyle().Foreground(gray)
)
