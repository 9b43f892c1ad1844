// Package ui renders sshwrap's terminal output: the neon palette and status
// symbols, a spinner for connects and transfers, tables for host listings and
// checks, a Bubble Tea host picker, and Huh prompts for secrets.
//
// Styles go through lipgloss's default renderer, so SetColorMode and
// DisableColors (for --no-color) apply everywhere at once.
package ui
