package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ExhibitionStatus string

const (
	StatusUpcoming  ExhibitionStatus = "upcoming"
	StatusActive    ExhibitionStatus = "active"
	StatusCompleted ExhibitionStatus = "completed"
)

// TimeOfDay is a wall clock time without a date, with second precision.
type TimeOfDay struct {
	Hour, Minute, Second int
}

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute}
}

// ParseTimeOfDay accepts "15:04" and "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the time of day in a Postgres TIME column.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan reads a Postgres TIME column. lib/pq decodes it to time.Time on the zero date.
func (t *TimeOfDay) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t = TimeOfDay{Hour: v.Hour(), Minute: v.Minute(), Second: v.Second()}
		return nil
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

func (t *TimeOfDay) scanString(s string) error {
	// TIME columns may carry fractional seconds
	if len(s) > len("15:04:05") {
		s = s[:len("15:04:05")]
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// combine places the civil date of date at the time of day tod in loc.
func combine(date time.Time, tod TimeOfDay, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, tod.Hour, tod.Minute, tod.Second, 0, loc)
}

// Schedule is the part of an exhibition the lifecycle status is computed from.
type Schedule struct {
	StartDate   time.Time `json:"start_date" db:"start_date"`
	EndDate     time.Time `json:"end_date" db:"end_date"`
	OpeningTime TimeOfDay `json:"opening_time" db:"opening_time"`
	ClosingTime TimeOfDay `json:"closing_time" db:"closing_time"`
}

// StartsAt is the opening time on the start date, in loc.
func (s Schedule) StartsAt(loc *time.Location) time.Time {
	return combine(s.StartDate, s.OpeningTime, loc)
}

// EndsAt is the closing time on the end date, in loc.
func (s Schedule) EndsAt(loc *time.Location) time.Time {
	return combine(s.EndDate, s.ClosingTime, loc)
}

func (s Schedule) Validate() error {
	if s.StartDate.IsZero() || s.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidExhibition)
	}
	if !s.EndsAt(time.UTC).After(s.StartsAt(time.UTC)) {
		return fmt.Errorf("%w: exhibition must end after it starts", ErrInvalidExhibition)
	}
	return nil
}

// DeriveStatus computes the lifecycle status of s at now.
// Dates and times of day are interpreted in now's location.
func DeriveStatus(s Schedule, now time.Time) ExhibitionStatus {
	loc := now.Location()
	switch {
	case now.Before(s.StartsAt(loc)):
		return StatusUpcoming
	case now.After(s.EndsAt(loc)):
		return StatusCompleted
	default:
		return StatusActive
	}
}
