package ui

import "github.com/charmbracelet/lipgloss"

// Dashboard palette
var (
	ColorBase       = lipgloss.Color("#C7463E")
	ColorAccent     = lipgloss.Color("#7B68EE")
	ColorText       = lipgloss.Color("#DDDDDD")
	ColorMuted      = lipgloss.Color("#9E9E9E")
	ColorDim        = lipgloss.Color("#333333")
	ColorBackground = lipgloss.Color("#141414")
	ColorBar        = lipgloss.Color("#1E1E1E")
	ColorLive       = lipgloss.Color("#3FB950")
	ColorWarning    = lipgloss.Color("#FFAA00")
	ColorError      = lipgloss.Color("#FF3300")
	ColorBorder     = lipgloss.Color("#3A3A3A")
	ColorBorderHot  = lipgloss.Color("#C7463E")
)

// Pre-built styles
var (
	StyleHeader = lipgloss.NewStyle().
			Background(ColorBar).
			Foreground(ColorText).
			Padding(0, 1)

	StyleLogo = lipgloss.NewStyle().
			Foreground(ColorBase).
			Bold(true)

	StyleHeaderKey = lipgloss.NewStyle().
			Foreground(ColorBase).
			Bold(true)

	StyleHeaderLabel = lipgloss.NewStyle().
				Foreground(ColorMuted)

	StyleServerURL = lipgloss.NewStyle().
			Foreground(ColorText).
			Underline(true)

	StyleStatusBar = lipgloss.NewStyle().
			Background(ColorBar).
			Foreground(ColorMuted).
			Padding(0, 1)

	StyleStatusLive = lipgloss.NewStyle().
			Foreground(ColorLive).
			Bold(true)

	StyleStatusPaused = lipgloss.NewStyle().
				Foreground(ColorWarning).
				Bold(true)

	StyleStatusDown = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	StylePanelBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorBorder)

	StylePanelTitle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	StylePanelToggle = lipgloss.NewStyle().
				Foreground(ColorBase)

	StyleLabel = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StyleValue = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	StyleHelp = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StyleTableHeader = lipgloss.NewStyle().
				Foreground(ColorMuted).
				Bold(true)

	StyleCursorLine = lipgloss.NewStyle().
			Foreground(ColorBackground).
			Background(ColorBase).
			Bold(true)

	StyleFilterActive = lipgloss.NewStyle().
				Foreground(ColorBase).
				Bold(true)

	StyleFilterInactive = lipgloss.NewStyle().
				Foreground(ColorMuted)

	StyleGaugeEmpty = lipgloss.NewStyle().
			Foreground(ColorDim)

	StyleOverlay = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorderHot).
			Padding(1, 3)

	StyleOverlayTitle = lipgloss.NewStyle().
				Foreground(ColorBase).
				Bold(true)
)
