package ui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/sshwrap/internal/errors"
)

// HostInfo is one row of the host picker.
type HostInfo struct {
	Name        string // config name or ssh_config alias
	Destination string // [user@]host[:port]
	Source      string // "config" or "ssh_config"
	Dir         string
	Tags        []string
	Default     bool
}

type hostItem struct {
	host HostInfo
}

func (i hostItem) Title() string {
	if i.host.Default {
		return i.host.Name + " (default)"
	}
	return i.host.Name
}

// Description lists what the name points at, skipping empty fields and a
// destination that just repeats the name.
func (i hostItem) Description() string {
	h := i.host
	fields := make([]string, 0, 4)
	if h.Destination != "" && h.Destination != h.Name {
		fields = append(fields, h.Destination)
	}
	if h.Dir != "" {
		fields = append(fields, h.Dir)
	}
	if len(h.Tags) > 0 {
		fields = append(fields, "["+strings.Join(h.Tags, ", ")+"]")
	}
	if h.Source == "ssh_config" {
		fields = append(fields, "ssh config")
	}
	return strings.Join(fields, " | ")
}

func (i hostItem) FilterValue() string {
	return strings.Join(append([]string{i.host.Name, i.host.Destination}, i.host.Tags...), " ")
}

var (
	pickKey   = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select"))
	cancelKey = key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q/esc", "cancel"))
)

// HostPickerModel lets the user choose which host a command runs against.
type HostPickerModel struct {
	list     list.Model
	selected *HostInfo
	done     bool
}

func NewHostPickerModel(hosts []HostInfo) HostPickerModel {
	items := make([]list.Item, 0, len(hosts))
	for _, h := range hosts {
		items = append(items, hostItem{host: h})
	}

	l := list.New(items, pickerDelegate(), 0, 0)
	l.Title = "Select a host"
	l.SetShowStatusBar(len(hosts) > 5)
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().Foreground(ColorNeonCyan).Bold(true).Padding(0, 0, 1, 0)
	l.Styles.HelpStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	return HostPickerModel{list: l}
}

func pickerDelegate() list.DefaultDelegate {
	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = d.Styles.SelectedTitle.
		Foreground(ColorNeonPink).
		BorderForeground(ColorNeonPurple)
	d.Styles.SelectedDesc = d.Styles.SelectedDesc.
		Foreground(ColorSecondary).
		BorderForeground(ColorNeonPurple)
	return d
}

func (m HostPickerModel) Init() tea.Cmd { return nil }

func (m HostPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
	case tea.KeyMsg:
		// While filtering, enter and q go to the filter box.
		if m.list.FilterState() == list.Filtering {
			break
		}
		if key.Matches(msg, pickKey) {
			if item, ok := m.list.SelectedItem().(hostItem); ok {
				m.selected = &item.host
			}
			m.done = true
			return m, tea.Quit
		}
		if key.Matches(msg, cancelKey) {
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m HostPickerModel) View() string {
	if m.done {
		return ""
	}
	return m.list.View()
}

// Selected is the chosen host, nil when the picker was cancelled.
func (m HostPickerModel) Selected() *HostInfo {
	return m.selected
}

// PickHost asks the user for a host on the terminal.
func PickHost(hosts []HostInfo) (*HostInfo, error) {
	return PickHostWithOutput(hosts, os.Stderr, os.Stdin)
}

// PickHostWithOutput runs the picker on the given streams. A single host is
// returned without showing anything.
func PickHostWithOutput(hosts []HostInfo, output io.Writer, input io.Reader) (*HostInfo, error) {
	switch len(hosts) {
	case 0:
		return nil, errors.New(errors.ErrConfig,
			"No hosts to pick from",
			"Add hosts to your .sshwrap.yaml with 'sshwrap hosts add', or pass --host user@machine.")
	case 1:
		return &hosts[0], nil
	}

	final, err := tea.NewProgram(NewHostPickerModel(hosts),
		tea.WithOutput(output),
		tea.WithInput(input),
	).Run()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Host picker failed",
			"Run again, or name the host with --host.")
	}
	if m, ok := final.(HostPickerModel); ok {
		return m.Selected(), nil
	}
	return nil, nil
}
