package tui

// Color is the primary signal; icon shape reinforces it.
const (
	IconCheck   = "✔" // ✔ success
	IconCross   = "✖" // ✖ error
	IconWarning = "⚠" // ⚠ warning
	IconInfo    = "ℹ" // ℹ info
	IconDot     = "●" // ● running
	IconCircle  = "○" // ○ stopped
	IconBlock   = "⊘" // ⊘ denied
)
