package ui

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/Huddle/internal/media"
	"github.com/BioHazard786/Huddle/internal/session"
)

// CallControl is the part of the session coordinator the call view drives.
type CallControl interface {
	Subscribe() (<-chan session.CallState, func())
	SetMuted(muted bool) error
	PeerStats() map[string]media.Stats
}

type (
	stateMsg  session.CallState
	tickMsg   time.Time
	closedMsg struct{}
)

// CallModel is the live call view: status, elapsed time and a roster with
// per-peer audio counters refreshed every second. It quits when the user
// leaves or the call ends.
type CallModel struct {
	ctrl    CallControl
	updates <-chan session.CallState
	cancel  func()
	now     func() time.Time

	state   session.CallState
	stats   map[string]media.Stats
	spinner spinner.Model
	err     error
	left    bool
}

// NewCallModel subscribes to ctrl. Close releases the subscription.
func NewCallModel(ctrl CallControl, now func() time.Time) *CallModel {
	updates, cancel := ctrl.Subscribe()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &CallModel{
		ctrl:    ctrl,
		updates: updates,
		cancel:  cancel,
		now:     now,
		spinner: s,
	}
}

// State is the last call state the view has seen.
func (m *CallModel) State() session.CallState {
	return m.state
}

// Left reports whether the user quit the view.
func (m *CallModel) Left() bool {
	return m.left
}

func (m *CallModel) Close() {
	m.cancel()
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen(), tick())
}

func (m *CallModel) listen() tea.Cmd {
	return func() tea.Msg {
		s, ok := <-m.updates
		if !ok {
			return closedMsg{}
		}
		return stateMsg(s)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.left = true
			return m, tea.Quit
		case "m":
			m.err = m.ctrl.SetMuted(!m.state.Muted)
			return m, nil
		}

	case stateMsg:
		m.state = session.CallState(msg)
		m.stats = m.ctrl.PeerStats()
		if m.state.Status == session.StatusEnded {
			return m, tea.Quit
		}
		return m, m.listen()

	case closedMsg:
		return m, tea.Quit

	case tickMsg:
		m.stats = m.ctrl.PeerStats()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *CallModel) View() string {
	var b strings.Builder

	badgeStyle, ok := statusStyles[string(m.state.Status)]
	if !ok {
		badgeStyle = StatusStyle
	}
	fmt.Fprintf(&b, "%s %s  %s",
		IconCall,
		TitleStyle.Render(m.state.RoomCode),
		badgeStyle.Render(string(m.state.Status)))

	if m.state.Status == session.StatusConnecting {
		fmt.Fprintf(&b, " %s", m.spinner.View())
	}
	if elapsed := m.state.Elapsed(m.now()); elapsed > 0 {
		fmt.Fprintf(&b, "  %s %s", IconTime, FormatDuration(elapsed))
	}
	b.WriteString("\n")

	mic := IconMic + " live"
	if m.state.Muted {
		mic = IconMuted + " muted"
	}
	fmt.Fprintf(&b, "%s %d/%d connected   %s\n\n",
		IconPeer, m.state.Connected(), len(m.state.Participants), mic)

	b.WriteString(RosterView(m.state, m.stats))
	b.WriteString("\n")
	for _, id := range slices.Sorted(maps.Keys(m.state.Participants)) {
		if err := m.state.Participants[id].Err; err != nil {
			b.WriteString(MutedStyle.Render(err.Error()))
			b.WriteString("\n")
		}
	}

	if m.err != nil {
		b.WriteString(ErrorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(FooterStyle.Render("m mute/unmute • q leave"))
	b.WriteString("\n")
	return b.String()
}

// RunCall shows the call view until the user leaves or the call ends, and
// returns the final view state.
func RunCall(ctrl CallControl) (*CallModel, error) {
	m := NewCallModel(ctrl, time.Now)
	defer m.Close()

	if _, err := tea.NewProgram(m).Run(); err != nil {
		return m, fmt.Errorf("call view: %w", err)
	}
	return m, nil
}
