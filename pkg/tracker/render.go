package tracker

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Panel layout constants. The status panel is a fixed-width framed block;
// participants that overflow the row just get the minimum single space.
const (
	panelInnerWidth = 37
	footerWidth     = 35
)

// StatusPanel renders the framed completion block: one row per
// participant sorted by name, plus a timestamp footer in the campaign
// zone. The output is wrapped in a code fence for the chat platform.
func StatusPanel(participants []Participant, now time.Time, loc *time.Location) string {
	lines := []string{
		"╭" + strings.Repeat("─", panelInnerWidth) + "╮",
		"│" + strings.Repeat(" ", 14) + "❊ STATUSES" + strings.Repeat(" ", 13) + "│",
		"├" + strings.Repeat("─", panelInnerWidth) + "┤",
	}

	for _, p := range participants {
		status := "NOT COMPLETED"
		if p.Completed {
			status = "COMPLETED"
		}
		pad := panelInnerWidth - (utf8.RuneCountInString(p.Name) + 2) - len(status)
		if pad < 1 {
			pad = 1
		}
		lines = append(lines, "│ "+p.Name+strings.Repeat(" ", pad)+status+" │")
	}

	lines = append(lines, "├"+strings.Repeat("─", panelInnerWidth)+"┤")

	local := now.In(loc)
	stamp := local.Format("Monday, January 2, 2006 03:04 PM") + " " + longZoneName(local)
	for _, part := range wrap(stamp, footerWidth) {
		pad := footerWidth - utf8.RuneCountInString(part)
		if pad < 0 {
			pad = 0
		}
		lines = append(lines, "│ "+part+strings.Repeat(" ", pad)+" │")
	}

	lines = append(lines, "╰"+strings.Repeat("─", panelInnerWidth)+"╯")
	return "```\n" + strings.Join(lines, "\n") + "\n```"
}

// HistoryPanel renders every participant's 75-day grid: 8 numbered rows of
// up to 10 characters each, blank line between participants.
func HistoryPanel(participants []Participant) string {
	lines := []string{"```"}
	for i, p := range participants {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, p.Name+":")
		lines = append(lines, p.History.Rows()...)
	}
	lines = append(lines, "```")
	return strings.Join(lines, "\n")
}

// zoneLongNames spells out the zone abbreviations the footer can see in
// the US zones the campaign supports.
var zoneLongNames = map[string]string{
	"PST": "Pacific Standard Time",
	"PDT": "Pacific Daylight Time",
	"MST": "Mountain Standard Time",
	"MDT": "Mountain Daylight Time",
	"CST": "Central Standard Time",
	"CDT": "Central Daylight Time",
	"EST": "Eastern Standard Time",
	"EDT": "Eastern Daylight Time",
}

// longZoneName spells out t's zone for the footer stamp, falling back to
// the abbreviation for zones without a known long form.
func longZoneName(t time.Time) string {
	abbr, _ := t.Zone()
	if long, ok := zoneLongNames[abbr]; ok {
		return long
	}
	return abbr
}

// wrap splits s into space-separated chunks no wider than limit runes.
func wrap(s string, limit int) []string {
	words := strings.Fields(s)
	var out []string
	var cur string
	for _, w := range words {
		switch {
		case cur == "":
			cur = w
		case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(w) <= limit:
			cur += " " + w
		default:
			out = append(out, cur)
			cur = w
		}
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
