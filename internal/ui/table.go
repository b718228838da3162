package ui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/BioHazard786/Huddle/internal/media"
	"github.com/BioHazard786/Huddle/internal/session"
)

// RoomInfo is the box shown before the call view starts.
type RoomInfo struct {
	Code    string
	Link    string
	Created bool
}

func (r RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	heading := fmt.Sprintf("%s Joining room", IconRoom)
	if r.Created {
		heading = fmt.Sprintf("%s Room created! Share the code or link.", IconSuccess)
	}

	content := fmt.Sprintf("%s\n\n%s Room Code:  %s\n%s Room Link:  %s",
		heading,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.Code),
		IconWeb, MutedStyle.Render(r.Link),
	)
	return boxStyle.Render(content)
}

// RosterView renders the participants of s as a table ordered by join time.
// stats fills the audio columns for peers with a live media connection.
func RosterView(s session.CallState, stats map[string]media.Stats) string {
	if len(s.Participants) == 0 {
		return MutedStyle.Render("Waiting for others to join...")
	}

	peers := make([]session.Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		peers = append(peers, p)
	}
	slices.SortFunc(peers, func(a, b session.Participant) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	rows := make([][]string, 0, len(peers))
	for _, p := range peers {
		mic := IconMic
		if p.Muted {
			mic = IconMuted
		}
		packets, loss := "-", "-"
		if st, ok := stats[p.ID]; ok {
			packets = fmt.Sprintf("%d", st.PacketsReceived)
			loss = FormatLoss(st.FractionLost)
		}
		rows = append(rows, []string{ShortID(p.ID), string(p.State), mic, packets, loss})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Peer", "State", "Mic", "Packets", "Loss").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case col == 1:
				if st, ok := peerStateStyles[rows[row][1]]; ok {
					return st.Padding(0, 1)
				}
				return TableRowStyle
			case col >= 3:
				return tableStatStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// FormatLoss formats a loss fraction as a percentage.
func FormatLoss(fraction float64) string {
	return fmt.Sprintf("%.1f%%", fraction*100)
}

// ShortID abbreviates a connection id for display.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// FormatDuration formats d as "1h 2m 3s", dropping leading zero units.
func FormatDuration(d time.Duration) string {
	seconds := int(d.Seconds()) % 60
	minutes := int(d.Minutes()) % 60
	hours := int(d.Hours())

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
