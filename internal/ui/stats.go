package ui

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RelayStats is what the relay reports on /stats.
type RelayStats struct {
	Rooms       int `json:"rooms"`
	Members     int `json:"members"`
	Connections int `json:"connections"`
}

// StatsView renders a relay stats report.
func StatsView(server string, s RelayStats, at time.Time) string {
	t := table.NewWriter()
	t.SetTitle("Relay " + server)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Rooms", s.Rooms},
		{"Members", s.Members},
		{"Connections", s.Connections},
	})
	t.AppendFooter(table.Row{"As of", at.Format(time.TimeOnly)})

	t.SetStyle(table.StyleRounded)
	t.Style().Color.Header = text.Colors{text.FgHiMagenta, text.Bold}
	t.Style().Color.Footer = text.Colors{text.FgHiBlack}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	return t.Render()
}
