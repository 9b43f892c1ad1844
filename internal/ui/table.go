package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a new Bubbles table with default styling.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{
			Title: c.Title,
			Width: c.Width,
		}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorGlassBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorNeonCyan)
	s.Cell = s.Cell.
		Foreground(ColorPrimary)
	// Unfocused tables still style the cursor row; keep it plain.
	s.Selected = s.Selected.
		Foreground(ColorPrimary).
		Bold(false)

	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders a non-interactive table string for CLI output.
// Column widths grow to fit the widest cell.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	cols := make([]TableColumn, len(columns))
	copy(cols, columns)
	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		for j, cell := range row {
			if j < len(cols) && lipgloss.Width(cell) > cols[j].Width {
				cols[j].Width = lipgloss.Width(cell)
			}
		}
		tableRows[i] = table.Row(row)
	}

	return NewTable(cols, tableRows).View()
}

// HostRow is one line of the hosts listing.
type HostRow struct {
	Name        string
	Destination string
	Source      string
	Dir         string
	Tags        []string
	Default     bool
}

// RenderHostsTable renders configured hosts, marking the default.
func RenderHostsTable(rows []HostRow) string {
	if len(rows) == 0 {
		return "No hosts configured"
	}

	columns := []TableColumn{
		{Title: "HOST", Width: 12},
		{Title: "DESTINATION", Width: 20},
		{Title: "DIR", Width: 10},
		{Title: "TAGS", Width: 8},
	}
	cells := make([][]string, len(rows))
	for i, r := range rows {
		name := r.Name
		if r.Default {
			name += " *"
		}
		dest := r.Destination
		if r.Source == "ssh_config" {
			dest += " (ssh config)"
		}
		cells[i] = []string{name, dest, r.Dir, strings.Join(r.Tags, ",")}
	}
	return RenderSimpleTable(columns, cells)
}

// CheckRow is one result of a connectivity or tooling check.
type CheckRow struct {
	Status     string // "pass", "warn", "fail"
	Category   string
	Message    string
	Suggestion string // Shown for anything that didn't pass
}

// RenderCheckTable renders check results grouped by category, in the order
// categories first appear.
func RenderCheckTable(rows []CheckRow) string {
	if len(rows) == 0 {
		return "No checks to display"
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorNeonCyan)

	var output strings.Builder

	categories := make(map[string][]CheckRow)
	var categoryOrder []string
	for _, row := range rows {
		if _, exists := categories[row.Category]; !exists {
			categoryOrder = append(categoryOrder, row.Category)
		}
		categories[row.Category] = append(categories[row.Category], row)
	}

	for _, cat := range categoryOrder {
		output.WriteString(headerStyle.Render(cat) + "\n")

		for _, row := range categories[cat] {
			var statusIcon string
			switch row.Status {
			case "pass":
				statusIcon = SuccessStyle().Render(SymbolSuccess)
			case "warn":
				statusIcon = WarningStyle().Render(SymbolWarning)
			case "fail":
				statusIcon = ErrorStyle().Render(SymbolFail)
			default:
				statusIcon = MutedStyle().Render(SymbolPending)
			}

			output.WriteString("  " + statusIcon + " " + row.Message + "\n")

			if row.Suggestion != "" && row.Status != "pass" {
				output.WriteString("    " + MutedStyle().Render(row.Suggestion) + "\n")
			}
		}
		output.WriteString("\n")
	}

	return output.String()
}
