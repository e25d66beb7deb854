// Package tui renders the interactive terminal interface: a live input level
// meter driven by the meter tap, and a host device browser.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"audiotap/internal/audio"
	"audiotap/internal/transport"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	meterFillStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	meterHotStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D94F4F"))
)

// screen selects which view is active.
type screen int

const (
	meterScreen screen = iota
	deviceScreen
)

const meterWidth = 50

// tickMsg drives meter refresh at roughly 30 frames per second.
type tickMsg time.Time

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// Model is the Bubble Tea model for the live capture view.
type Model struct {
	level  transport.LevelProvider
	peak   float64
	active screen

	devices       []audio.Device
	selectedIndex int

	viewport viewport.Model
	ready    bool
	err      error
}

// NewModel builds the TUI model around the engine's level provider. A nil
// provider renders the meter at zero.
func NewModel(level transport.LevelProvider) Model {
	return Model{level: level, active: meterScreen}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), fetchDevices)
}

func tick() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchDevices() tea.Msg {
	devices, err := audio.HostDevices()
	if err != nil {
		return errMsg{err}
	}
	return devicesMsg{devices}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
			m.viewport.SetContent(m.renderActive())
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case tickMsg:
		if m.level != nil {
			current := m.level.Level()
			// Peak hold with slow decay so transients stay readable.
			m.peak *= 0.94
			if current > m.peak {
				m.peak = current
			}
		}
		if m.ready && m.active == meterScreen {
			m.viewport.SetContent(m.renderActive())
		}
		cmds = append(cmds, tick())

	case devicesMsg:
		m.devices = msg.devices
		if m.ready && m.active == deviceScreen {
			m.viewport.SetContent(m.renderActive())
		}

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c"))) {
			return m, tea.Quit
		}

		switch m.active {
		case meterScreen:
			if key.Matches(msg, key.NewBinding(key.WithKeys("d"))) {
				m.active = deviceScreen
				m.viewport.SetContent(m.renderActive())
			}

		case deviceScreen:
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("esc"))):
				m.active = meterScreen
				m.viewport.SetContent(m.renderActive())

			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.selectedIndex > 0 {
					m.selectedIndex--
					m.viewport.SetContent(m.renderActive())
				}

			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
					m.viewport.SetContent(m.renderActive())
				}
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	var title, help string
	if m.active == meterScreen {
		title = titleStyle.Render("Input Level")
		help = infoStyle.Render("d: Devices • q: Quit")
	} else {
		title = titleStyle.Render("Audio Device List")
		help = infoStyle.Render("↑/↓: Navigate • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m Model) renderActive() string {
	if m.active == meterScreen {
		return m.renderMeter()
	}
	return m.renderDevices()
}

// renderMeter draws the peak-hold level bar.
func (m Model) renderMeter() string {
	level := m.peak
	if level > 1 {
		level = 1
	}

	filled := int(level * meterWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", meterWidth-filled)

	style := meterFillStyle
	if level > 0.9 {
		style = meterHotStyle
	}

	return fmt.Sprintf("%s %5.1f%%\n", style.Render(bar), level*100)
}

// renderDevices formats the host device list.
func (m Model) renderDevices() string {
	var sb strings.Builder

	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	for i, device := range m.devices {
		deviceType := ""
		if device.MaxInputChannels > 0 && device.MaxOutputChannels > 0 {
			deviceType = "Input/Output"
		} else if device.MaxInputChannels > 0 {
			deviceType = "Input"
		} else if device.MaxOutputChannels > 0 {
			deviceType = "Output"
		}

		deviceInfo := fmt.Sprintf("[%d] %s (%s)\n",
			device.ID, device.Name, deviceType)
		deviceInfo += fmt.Sprintf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz\n",
			device.DefaultSampleRate)

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}

	return sb.String()
}

// Start runs the TUI until the user quits. PortAudio must be initialized so
// the device browser can enumerate hosts.
func Start(level transport.LevelProvider) error {
	p := tea.NewProgram(
		NewModel(level),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
