package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a calendar day in UTC. The zero Date means "absent"; any date
// built by NewDate or ParseDate is present, including 0001-01-01.
type Date struct {
	time.Time
	valid bool
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), valid: true}
}

// ParseDate parses a YYYY-MM-DD string. Empty or malformed input yields
// ok=false rather than an error; callers treat that as an absent date.
func ParseDate(s string) (Date, bool) {
	if s == "" {
		return Date{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, false
	}
	return Date{Time: t, valid: true}, true
}

// DaysUntil returns the whole number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n), valid: d.valid}
}

// IsZero reports whether the date is absent.
func (d Date) IsZero() bool { return !d.valid }

func (d Date) Equal(other Date) bool {
	return d.valid == other.valid && d.Time.Equal(other.Time)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, ok := ParseDate(s)
	if !ok {
		return fmt.Errorf("invalid date %q", s)
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, ok := ParseDate(s)
	if !ok {
		return fmt.Errorf("invalid stored date %q", s)
	}
	*d = parsed
	return nil
}
