// Package reminders sends a daily nudge to participants who haven't
// completed their entry by their chosen time. Alarms are persisted as
// key:value text blocks in a reference channel, one message per alarm, so
// they survive restarts without a database.
package reminders

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vznh/conviction/internal/utils"
	"github.com/vznh/conviction/pkg/chat"
	"github.com/vznh/conviction/pkg/dayclock"
)

var timePattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

// normalizeTime pads a matched HH:MM to two-digit hours so "9:30"
// compares equal to the minute loop's "09:30".
func normalizeTime(at string) string {
	m := timePattern.FindStringSubmatch(at)
	if m == nil {
		return at
	}
	hour, _ := strconv.Atoi(m[1])
	return fmt.Sprintf("%02d:%s", hour, m[2])
}

const reminderText = "# ⏰⏰⏰\nSubmit some parts of your entry!"

// Alarm is one participant's daily reminder.
type Alarm struct {
	UserID    string
	Username  string
	Time      string // HH:MM, 24-hour, campaign zone
	Enabled   bool
	MessageID string
}

// Serialize renders the alarm as its persisted text block.
func (a Alarm) Serialize(created time.Time) string {
	return fmt.Sprintf("```\nUSER_ID: %s\nUSERNAME: %q\nTIME: %q\nENABLED: %t\nCREATED: %s\n```",
		a.UserID, a.Username, a.Time, a.Enabled, created.UTC().Format(time.RFC3339))
}

// ParseAlarm recovers an alarm from message content. Returns false on any
// schema violation; callers skip, never error.
func ParseAlarm(content string) (Alarm, bool) {
	var a Alarm
	var seen int
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "USER_ID: "):
			a.UserID = strings.TrimPrefix(line, "USER_ID: ")
			seen++
		case strings.HasPrefix(line, "USERNAME: "):
			a.Username = strings.Trim(strings.TrimPrefix(line, "USERNAME: "), `"`)
			seen++
		case strings.HasPrefix(line, "TIME: "):
			a.Time = strings.Trim(strings.TrimPrefix(line, "TIME: "), `"`)
			seen++
		case strings.HasPrefix(line, "ENABLED: "):
			a.Enabled = strings.TrimPrefix(line, "ENABLED: ") == "true"
			seen++
		}
	}
	if seen < 4 || a.UserID == "" || !timePattern.MatchString(a.Time) {
		return Alarm{}, false
	}
	a.Time = normalizeTime(a.Time)
	return a, true
}

// StatusSource reports whether a participant already completed today.
type StatusSource interface {
	Completed(username string) bool
}

// Service loads alarms and fires them from the minute loop. Each alarm
// fires at most once per calendar day.
type Service struct {
	client     chat.Client
	clock      *dayclock.Clock
	status     StatusSource
	refChannel string

	alarms    []Alarm
	lastFired map[string]string // alarm key -> ISO date last fired
}

// key identifies one alarm for dedupe purposes. A user with several alarm
// times gets each of them once per day.
func (a Alarm) key() string { return a.UserID + ":" + a.Time }

func NewService(client chat.Client, clock *dayclock.Clock, status StatusSource, refChannel string) *Service {
	return &Service{
		client:     client,
		clock:      clock,
		status:     status,
		refChannel: refChannel,
		lastFired:  make(map[string]string),
	}
}

// Load reads every alarm record from the reference channel.
func (s *Service) Load(ctx context.Context) error {
	if s.refChannel == "" {
		utils.Log.Error("No alarms reference channel configured.")
		return nil
	}

	messages, err := s.client.FetchMessages(ctx, s.refChannel, 100)
	if err != nil {
		return fmt.Errorf("could not fetch alarms channel: %w", err)
	}

	s.alarms = s.alarms[:0]
	for _, m := range messages {
		alarm, ok := ParseAlarm(m.Content)
		if !ok {
			continue
		}
		alarm.MessageID = m.ID
		s.alarms = append(s.alarms, alarm)
	}
	utils.Log.Infof("Loaded %d alarms.", len(s.alarms))
	return nil
}

// Set validates and persists a new alarm, then tracks it in memory.
func (s *Service) Set(ctx context.Context, userID, username, at string) error {
	if !timePattern.MatchString(at) {
		return fmt.Errorf("invalid time format %q, use HH:MM (24-hour)", at)
	}
	if s.refChannel == "" {
		return fmt.Errorf("alarms reference channel not configured")
	}

	alarm := Alarm{UserID: userID, Username: username, Time: normalizeTime(at), Enabled: true}
	id, err := s.client.SendMessage(ctx, s.refChannel, alarm.Serialize(time.Now()))
	if err != nil {
		return err
	}
	alarm.MessageID = id
	s.alarms = append(s.alarms, alarm)
	utils.Log.Infof("Alarm set for %s at %s.", username, at)
	return nil
}

// CheckAndSend fires every due alarm for the given instant. A reminder is
// due when the alarm is enabled, its time matches the current minute in
// the campaign zone, it hasn't fired today, and the participant hasn't
// completed yet. Delivery failures are logged, never retried.
func (s *Service) CheckAndSend(ctx context.Context, now time.Time) {
	hour, minute := s.clock.LocalTime(now)
	current := fmt.Sprintf("%02d:%02d", hour, minute)
	today := s.clock.ISODate(now)

	for _, alarm := range s.alarms {
		if !alarm.Enabled || alarm.Time != current {
			continue
		}
		if s.lastFired[alarm.key()] == today {
			continue
		}
		s.lastFired[alarm.key()] = today

		if s.status.Completed(alarm.Username) {
			continue
		}
		if err := s.client.SendDirectMessage(ctx, alarm.UserID, reminderText); err != nil {
			utils.Log.Errorf("Failed to send reminder to %s: %v", alarm.Username, err)
			continue
		}
		utils.Log.Infof("Sent reminder to %s.", alarm.Username)
	}
}

// Run drives CheckAndSend once per minute until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckAndSend(ctx, time.Now())
		}
	}
}
