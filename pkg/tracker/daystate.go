package tracker

import (
	"github.com/vznh/conviction/pkg/dayclock"
	"github.com/vznh/conviction/pkg/naming"
)

// DayState is the resolved outcome of a single campaign day for one
// participant.
type DayState uint8

const (
	// Future days have not been resolved yet: the day is still ahead, or
	// it has passed but the end-of-day finalize has not run.
	Future DayState = iota
	// Missed days passed without a completed entry.
	Missed
	// Completed days have an entry thread for them.
	Completed
)

// Character renders the state for the history grid. Completed days encode
// their position within the 10-day row.
func (s DayState) Character(day int) byte {
	switch s {
	case Missed:
		return 'x'
	case Completed:
		return naming.DayCharacter(day)
	default:
		return '.'
	}
}

// History is the full 75-slot record; index i is day i+1.
type History [dayclock.TotalDays]DayState

// newHistory returns the default fill for a participant first observed on
// currentDay: every elapsed day (including today) defaults to Missed until
// a rebuild proves otherwise, the rest are Future.
func newHistory(currentDay int) History {
	var h History
	for i := 0; i < len(h) && i < currentDay; i++ {
		h[i] = Missed
	}
	return h
}

// Rows renders the grid as 8 numbered rows of 10 characters (the last row
// holds 5).
func (h History) Rows() []string {
	rows := make([]string, 0, 8)
	for row := 0; row < 8; row++ {
		start := row * 10
		end := start + 10
		if end > len(h) {
			end = len(h)
		}
		line := make([]byte, 0, end-start+2)
		line = append(line, byte('1'+row), ' ')
		for i := start; i < end; i++ {
			line = append(line, h[i].Character(i+1))
		}
		rows = append(rows, string(line))
	}
	return rows
}
