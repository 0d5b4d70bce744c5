// Package entries handles daily submissions: each entry thread is seeded
// with one requirement record per subscribed requirement, a reply against
// a record is validated against its content contract, and once every
// record is satisfied the thread is renamed with the archive marker,
// locked, and archived.
//
// Requirement records are persisted as strict ordered key:value text
// blocks inside the thread, so state survives restarts without a
// database. A record that fails to parse is skipped, never an error.
package entries

import (
	"fmt"
	"strings"

	"github.com/vznh/conviction/pkg/chat"
)

// Kind is a requirement's content contract.
type Kind string

const (
	KindText   Kind = "text"
	KindImage  Kind = "image"
	KindBoth   Kind = "both"
	KindEither Kind = "either"
)

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindText:
		return KindText, true
	case KindImage:
		return KindImage, true
	case KindBoth:
		return KindBoth, true
	case KindEither:
		return KindEither, true
	}
	return "", false
}

// RequirementText is the human-readable contract line shown under a
// requirement record.
func (k Kind) RequirementText() string {
	switch k {
	case KindText:
		return "Requires text only."
	case KindImage:
		return "Requires image only."
	case KindBoth:
		return "Requires both text and image."
	case KindEither:
		return "Requires image or text."
	default:
		return "Requires submission."
	}
}

// Record is one requirement inside an entry thread.
type Record struct {
	Name string
	Kind Kind
	Done bool
}

// Serialize renders the record as its persisted text block.
func (r Record) Serialize() string {
	return fmt.Sprintf("```\nREQUIREMENT: %q\nKIND: %q\nDONE: %t\n```\n%s", r.Name, r.Kind, r.Done, r.Kind.RequirementText())
}

// ParseRecord recovers a record from message content. The schema is three
// ordered key:value lines; anything else reports false so callers skip
// the message.
func ParseRecord(content string) (Record, bool) {
	var rec Record
	var seen int
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "REQUIREMENT: "):
			rec.Name = strings.Trim(strings.TrimPrefix(line, "REQUIREMENT: "), `"`)
			seen++
		case strings.HasPrefix(line, "KIND: "):
			kind, ok := ParseKind(strings.Trim(strings.TrimPrefix(line, "KIND: "), `"`))
			if !ok {
				return Record{}, false
			}
			rec.Kind = kind
			seen++
		case strings.HasPrefix(line, "DONE: "):
			rec.Done = strings.TrimPrefix(line, "DONE: ") == "true"
			seen++
		}
	}
	if seen != 3 || rec.Name == "" {
		return Record{}, false
	}
	return rec, true
}

// Submission is the relevant content of a participant's reply.
type Submission struct {
	HasText  bool
	HasImage bool
}

// FromMessage extracts the submission facts from a chat message.
func FromMessage(m chat.Message) Submission {
	sub := Submission{HasText: strings.TrimSpace(m.Content) != ""}
	for _, a := range m.Attachments {
		if strings.HasPrefix(a.ContentType, "image/") {
			sub.HasImage = true
			break
		}
	}
	return sub
}

// Satisfies checks the submission against the contract. There is no
// partial credit: text-only against an image requirement is a rejection.
func Satisfies(kind Kind, sub Submission) bool {
	switch kind {
	case KindText:
		return sub.HasText && !sub.HasImage
	case KindImage:
		return sub.HasImage && !sub.HasText
	case KindBoth:
		return sub.HasText && sub.HasImage
	case KindEither:
		return sub.HasText || sub.HasImage
	default:
		return false
	}
}
