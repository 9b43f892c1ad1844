package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Operation completed successfully
	SymbolFail     = "✗" // Operation failed
	SymbolPending  = "○" // Not yet started
	SymbolProgress = "◐" // In progress
	SymbolComplete = "●" // Done (alternative to success)
	SymbolSkipped  = "⊘" // Skipped, e.g. nothing to send
	SymbolWarning  = "⚠"
)
