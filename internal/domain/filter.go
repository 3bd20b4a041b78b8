package domain

import (
	"errors"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var errBadDate = errors.New("expected YYYY-MM-DD or RFC3339 timestamp")

// RawFilter is the caller supplied listing filter before parsing.
type RawFilter struct {
	Type      string `form:"type" json:"type,omitempty"`
	StartDate string `form:"startDate" json:"startDate,omitempty"`
	EndDate   string `form:"endDate" json:"endDate,omitempty"`
	UserID    string `form:"userId" json:"userId,omitempty"`
}

// TransactionFilter is a parsed RawFilter.
type TransactionFilter struct {
	Type      *TransactionType
	StartDate *time.Time
	EndDate   *time.Time
	UserID    string
}

// TransactionQuery is what the ledger store executes. An empty UserID means
// every user.
type TransactionQuery struct {
	UserID string
	Type   *TransactionType
	From   *time.Time
	To     *time.Time
}

// ParseFilter validates a RawFilter. Malformed values are rejected rather
// than dropped.
func ParseFilter(raw RawFilter) (TransactionFilter, error) {
	var f TransactionFilter
	f.UserID = strings.TrimSpace(raw.UserID)

	if s := strings.TrimSpace(raw.Type); s != "" {
		t := TransactionType(strings.ToUpper(s))
		if !t.Valid() {
			return f, Invalid("type", "must be INCOME or EXPENSE")
		}
		f.Type = &t
	}

	if s := strings.TrimSpace(raw.StartDate); s != "" {
		start, err := ParseDate(s, false)
		if err != nil {
			return f, Invalid("startDate", err.Error())
		}
		f.StartDate = &start
	}

	if s := strings.TrimSpace(raw.EndDate); s != "" {
		end, err := ParseDate(s, true)
		if err != nil {
			return f, Invalid("endDate", err.Error())
		}
		f.EndDate = &end
	}

	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return f, Invalid("endDate", "must not be before startDate")
	}
	return f, nil
}

// ParseDate accepts YYYY-MM-DD or RFC3339. A bare date resolves to the start
// of the day, or to its last instant when endOfDay is set.
func ParseDate(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		if endOfDay {
			return t.Add(24*time.Hour - time.Nanosecond), nil
		}
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errBadDate
	}
	return t.UTC(), nil
}

// FormatDate renders the calendar date of t in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
