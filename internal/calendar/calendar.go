// Package calendar manages the admin panel's calendar events.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nlstn/go-datagrid/internal/notify"
	"github.com/nlstn/go-datagrid/internal/validation"
)

// DayLayout is the wire format of event dates.
const DayLayout = "2006-01-02"

// TimeLayout is the wire format of start and end times.
const TimeLayout = "15:04"

// ErrNotFound is returned for unknown event ids.
var ErrNotFound = errors.New("event not found")

// Category classifies an event.
type Category string

const (
	CategoryMeeting  Category = "meeting"
	CategoryPersonal Category = "personal"
	CategoryWork     Category = "work"
	CategoryHoliday  Category = "holiday"
)

// Categories lists the accepted categories.
var Categories = []Category{CategoryMeeting, CategoryPersonal, CategoryWork, CategoryHoliday}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Event is a calendar entry. Date is a YYYY-MM-DD day; times are HH:MM and
// empty for all-day events.
type Event struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	StartTime   string   `json:"startTime,omitempty"`
	EndTime     string   `json:"endTime,omitempty"`
	Location    string   `json:"location,omitempty"`
	Description string   `json:"description,omitempty"`
	Attendees   *int     `json:"attendees,omitempty"`
	Category    Category `json:"category"`
}

// Draft is unvalidated event input.
type Draft struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Attendees   *int   `json:"attendees"`
	Category    string `json:"category"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the source of "today".
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithNotifier sets the receiver of add/delete notifications.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithEvents replaces the sample events.
func WithEvents(events []Event) Option {
	return func(m *Manager) {
		m.events = append([]Event(nil), events...)
		m.seeded = true
	}
}

// Manager holds the calendar. It is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	events   []Event
	seeded   bool
	now      func() time.Time
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewManager creates a calendar seeded with Sample events for today unless
// WithEvents is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		now:      time.Now,
		notifier: notify.Discard,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if !m.seeded {
		m.events = Sample(m.now())
	}
	return m
}

// Sample returns the demo events scheduled relative to today.
func Sample(today time.Time) []Event {
	day := func(offset int) string {
		return today.AddDate(0, 0, offset).Format(DayLayout)
	}
	n := func(v int) *int { return &v }
	return []Event{
		{ID: uuid.NewString(), Title: "Team Meeting", Date: day(0), StartTime: "09:00", EndTime: "10:30",
			Location: "Conference Room A", Attendees: n(8), Category: CategoryMeeting,
			Description: "Weekly sprint planning with the development team."},
		{ID: uuid.NewString(), Title: "Project Review", Date: day(0), StartTime: "14:00", EndTime: "15:00",
			Location: "Virtual Meeting", Attendees: n(5), Category: CategoryWork,
			Description: "Review the progress of the current project with stakeholders."},
		{ID: uuid.NewString(), Title: "Dentist Appointment", Date: day(2), StartTime: "11:00", EndTime: "12:00",
			Location: "Dental Clinic", Category: CategoryPersonal,
			Description: "Regular dental checkup."},
		{ID: uuid.NewString(), Title: "Client Presentation", Date: day(3), StartTime: "13:00", EndTime: "14:30",
			Location: "Meeting Room B", Attendees: n(12), Category: CategoryWork,
			Description: "Present the new product features to the client."},
		{ID: uuid.NewString(), Title: "Team Building", Date: day(5), StartTime: "15:00", EndTime: "18:00",
			Location: "City Park", Attendees: n(20), Category: CategoryWork,
			Description: "Outdoor team building activities."},
		{ID: uuid.NewString(), Title: "Independence Day", Date: day(10), Category: CategoryHoliday,
			Description: "Public holiday."},
	}
}

// Validate checks d and returns the event it describes, without an id. A
// missing date means today and a missing category means work.
func (m *Manager) Validate(d Draft) (Event, error) {
	var errs validation.FieldErrors
	add := func(field, msg string) {
		errs = append(errs, validation.FieldError{Field: field, Message: msg})
	}

	ev := Event{
		Title:       strings.TrimSpace(d.Title),
		Date:        strings.TrimSpace(d.Date),
		StartTime:   strings.TrimSpace(d.StartTime),
		EndTime:     strings.TrimSpace(d.EndTime),
		Location:    strings.TrimSpace(d.Location),
		Description: strings.TrimSpace(d.Description),
		Attendees:   d.Attendees,
		Category:    Category(strings.TrimSpace(d.Category)),
	}

	if ev.Title == "" {
		add("title", "Please enter an event title")
	}

	if ev.Date == "" {
		ev.Date = m.now().Format(DayLayout)
	} else if _, err := time.Parse(DayLayout, ev.Date); err != nil {
		add("date", "Date must be in YYYY-MM-DD format.")
	}

	start, startOK := parseClock(ev.StartTime)
	end, endOK := parseClock(ev.EndTime)
	if !startOK {
		add("startTime", "Start time must be in HH:MM format.")
	}
	if !endOK {
		add("endTime", "End time must be in HH:MM format.")
	}
	if startOK && endOK && ev.StartTime != "" && ev.EndTime != "" && end.Before(start) {
		add("endTime", "End time cannot be before start time.")
	}

	if ev.Attendees != nil && *ev.Attendees < 0 {
		add("attendees", "Attendees cannot be negative.")
	}

	if ev.Category == "" {
		ev.Category = CategoryWork
	} else if !ev.Category.Valid() {
		add("category", "Category must be one of: meeting, personal, work, holiday.")
	}

	if len(errs) > 0 {
		return Event{}, errs
	}
	return ev, nil
}

// parseClock parses an optional HH:MM value. The empty string is valid.
func parseClock(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(TimeLayout, v)
	return t, err == nil
}

// Add validates d and stores it under a new id.
func (m *Manager) Add(ctx context.Context, d Draft) (Event, error) {
	ev, err := m.Validate(d)
	if err != nil {
		return Event{}, err
	}
	ev.ID = uuid.NewString()

	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "event added", "id", ev.ID, "date", ev.Date)
	m.notifier.Notify(notify.LevelSuccess, "Event added successfully")
	return ev, nil
}

// Delete removes the event with the given id.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	m.events = append(m.events[:idx], m.events[idx+1:]...)
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "event deleted", "id", id)
	m.notifier.Notify(notify.LevelSuccess, "Event deleted successfully")
	return nil
}

// Get returns the event with the given id.
func (m *Manager) Get(id string) (Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := m.indexOf(id)
	if idx < 0 {
		return Event{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return m.events[idx], nil
}

func (m *Manager) indexOf(id string) int {
	for i, ev := range m.events {
		if ev.ID == id {
			return i
		}
	}
	return -1
}

// All returns every event ordered by date, then start time.
func (m *Manager) All() []Event {
	return m.filter(func(Event) bool { return true })
}

// OnDate returns the events on day's calendar date.
func (m *Manager) OnDate(day time.Time) []Event {
	want := day.Format(DayLayout)
	return m.filter(func(ev Event) bool { return ev.Date == want })
}

// InMonth returns the events in the given month.
func (m *Manager) InMonth(year int, month time.Month) []Event {
	prefix := fmt.Sprintf("%04d-%02d-", year, int(month))
	return m.filter(func(ev Event) bool { return strings.HasPrefix(ev.Date, prefix) })
}

func (m *Manager) filter(keep func(Event) bool) []Event {
	m.mu.RLock()
	out := make([]Event, 0, len(m.events))
	for _, ev := range m.events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	m.mu.RUnlock()

	// All-day events (no start time) sort first within a day.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}
