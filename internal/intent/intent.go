package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"bellavita/internal/models"
)

// Kind classifies what the user is asking for.
type Kind string

const (
	KindBook    Kind = "book"
	KindConfirm Kind = "confirm"
	KindCancel  Kind = "cancel"
	KindStatus  Kind = "status"
	KindHelp    Kind = "help"
	KindUnknown Kind = "unknown"
)

// Intent is the structured reading of one user message. Only fields actually
// present in the text are filled; the session draft accumulates them across
// messages.
type Intent struct {
	Kind  Kind
	Draft models.Draft
}

var (
	timeRe    = regexp.MustCompile(`\b([01]?\d|2[0-3])[:.]([0-5]\d)\b`)
	timeAmPm  = regexp.MustCompile(`\b(1[0-2]|[1-9])\s*(am|pm)\b`)
	dateRe    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	dateDotRe = regexp.MustCompile(`\b(\d{1,2})[./](\d{1,2})(?:[./](\d{4}))?\b`)
	partyRe   = regexp.MustCompile(`\b(?:for|party of|table for)\s+(\d{1,2})\b|\b(\d{1,2})\s+(?:people|persons|guests)\b`)
	nameRe    = regexp.MustCompile(`(?i)\b(?:my name is|i am|i'm|name[:s]?)\s+([A-Za-z][A-Za-z\-']*(?:\s+[A-Za-z][A-Za-z\-']*)?)`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Parser extracts booking intents relative to a clock, so "tomorrow" stays
// deterministic in tests.
type Parser struct {
	loc *time.Location
	now func() time.Time
}

func NewParser() *Parser {
	return &Parser{loc: models.UTCPlus4, now: time.Now}
}

// Parse reads one message. Classification looks at verbs; extraction fills
// whatever slots the text mentions regardless of kind, so "cancel my 19:00"
// still carries the time.
func (p *Parser) Parse(text string) Intent {
	lowered := strings.ToLower(strings.TrimSpace(text))

	intent := Intent{Kind: p.classify(lowered)}
	intent.Draft.Date = p.extractDate(lowered)
	intent.Draft.Time = extractTime(lowered)
	intent.Draft.PartySize = extractPartySize(lowered)
	intent.Draft.Name = extractName(text)
	return intent
}

func (p *Parser) classify(lowered string) Kind {
	switch {
	case containsAny(lowered, "cancel", "delete my booking", "remove my booking"):
		return KindCancel
	case hasWord(lowered, "yes") || containsAny(lowered, "confirm", "book it", "go ahead", "sounds good"):
		return KindConfirm
	case containsAny(lowered, "status", "did you get my payment", "is my booking"):
		return KindStatus
	case containsAny(lowered, "help", "menu", "hours", "address", "where are you"):
		return KindHelp
	case containsAny(lowered, "book", "table", "reserve", "reservation"):
		return KindBook
	}
	// Bare slot values ("tomorrow at 19:00", "4 people") continue a booking.
	if extractTime(lowered) != "" || p.extractDate(lowered) != "" || extractPartySize(lowered) > 0 {
		return KindBook
	}
	return KindUnknown
}

func (p *Parser) extractDate(lowered string) string {
	today := p.now().In(p.loc)

	if strings.Contains(lowered, "today") || strings.Contains(lowered, "tonight") {
		return today.Format("2006-01-02")
	}
	if strings.Contains(lowered, "tomorrow") {
		return today.AddDate(0, 0, 1).Format("2006-01-02")
	}
	for name, weekday := range weekdays {
		if !strings.Contains(lowered, name) {
			continue
		}
		days := int(weekday-today.Weekday()+7) % 7
		if days == 0 {
			days = 7 // "on monday" said on a Monday means next week
		}
		return today.AddDate(0, 0, days).Format("2006-01-02")
	}

	if m := dateRe.FindStringSubmatch(lowered); m != nil {
		if _, err := time.Parse("2006-01-02", m[0]); err == nil {
			return m[0]
		}
	}
	if m := dateDotRe.FindStringSubmatch(lowered); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := today.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		candidate := time.Date(year, time.Month(month), day, 0, 0, 0, 0, p.loc)
		if candidate.Day() == day && int(candidate.Month()) == month {
			if m[3] == "" && candidate.Before(today.Truncate(24*time.Hour)) {
				candidate = candidate.AddDate(1, 0, 0)
			}
			return candidate.Format("2006-01-02")
		}
	}
	return ""
}

func extractTime(lowered string) string {
	if m := timeRe.FindStringSubmatch(lowered); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		return formatClock(hour, minute)
	}
	if m := timeAmPm.FindStringSubmatch(lowered); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if m[2] == "pm" && hour != 12 {
			hour += 12
		}
		if m[2] == "am" && hour == 12 {
			hour = 0
		}
		return formatClock(hour, 0)
	}
	return ""
}

func extractPartySize(lowered string) int {
	m := partyRe.FindStringSubmatch(lowered)
	if m == nil {
		return 0
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0
	}
	return n
}

func extractName(original string) string {
	m := nameRe.FindStringSubmatch(original)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func formatClock(hour, minute int) string {
	return strconv.Itoa(hour/10) + strconv.Itoa(hour%10) + ":" + strconv.Itoa(minute/10) + strconv.Itoa(minute%10)
}

func hasWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	}) {
		if f == word {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
