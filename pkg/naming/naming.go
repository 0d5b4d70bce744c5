// Package naming implements the thread-name encoding used to persist
// per-day entry metadata in the chat platform itself. A thread named
// "day-12-vivian-10-15-25" is day 12 for participant "vivian", created on
// 10-15-25; an "archive-" prefix marks the entry as completed. An older
// deployment used "{participant}-day-{N}" with no date; those names are
// still accepted on decode but never generated.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const ArchivePrefix = "archive-"

var (
	canonicalPattern = regexp.MustCompile(`^day-(\d+)-([^-]+)-(.+)$`)
	legacyPattern    = regexp.MustCompile(`^([^-]+)-day-(\d+)$`)
)

// ThreadName holds the fields decoded from an entry thread's name.
type ThreadName struct {
	Day         int
	Participant string
	DateTag     string // MM-DD-YY, empty for legacy names
	Archived    bool
	Legacy      bool
}

// Decode parses a thread name into its fields. The second return value is
// false when the name doesn't match either encoding; callers skip such
// threads rather than treat them as errors. Day range checks are the
// caller's job: Decode only guarantees the digits parsed.
func Decode(name string) (ThreadName, bool) {
	tn := ThreadName{}

	clean := name
	if strings.HasPrefix(clean, ArchivePrefix) {
		tn.Archived = true
		clean = strings.TrimPrefix(clean, ArchivePrefix)
	}

	if m := canonicalPattern.FindStringSubmatch(clean); m != nil {
		day, err := strconv.Atoi(m[1])
		if err != nil {
			return ThreadName{}, false
		}
		tn.Day = day
		tn.Participant = m[2]
		tn.DateTag = m[3]
		return tn, true
	}

	if m := legacyPattern.FindStringSubmatch(clean); m != nil {
		day, err := strconv.Atoi(m[2])
		if err != nil {
			return ThreadName{}, false
		}
		tn.Day = day
		tn.Participant = m[1]
		tn.Legacy = true
		return tn, true
	}

	return ThreadName{}, false
}

// Encode produces the canonical thread name. The legacy form is decode-only.
func Encode(day int, participant, dateTag string, archived bool) string {
	name := fmt.Sprintf("day-%d-%s-%s", day, participant, dateTag)
	if archived {
		return ArchivePrefix + name
	}
	return name
}

// DayCharacter maps a 1-based day number to its history-grid character:
// position within the 10-day row, with the tenth day rendered as '0'.
func DayCharacter(day int) byte {
	inRow := ((day - 1) % 10) + 1
	if inRow == 10 {
		return '0'
	}
	return byte('0' + inRow)
}
