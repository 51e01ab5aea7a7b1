package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// Temp is a temperature reading in °C that may be absent. Absent is kept
// distinct from a measured zero all the way through storage and JSON.
type Temp struct {
	value float64
	valid bool
}

func TempOf(v float64) Temp { return Temp{value: v, valid: true} }

// NoTemp is the absent reading.
var NoTemp = Temp{}

func (t Temp) Get() (float64, bool) { return t.value, t.valid }
func (t Temp) Valid() bool          { return t.valid }

// String formats the reading for tabular output; absent is the empty string.
func (t Temp) String() string {
	if !t.valid {
		return ""
	}
	return strconv.FormatFloat(t.value, 'f', -1, 64)
}

func (t Temp) MarshalJSON() ([]byte, error) {
	if !t.valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.value)
}

// UnmarshalJSON never fails: anything that is not a number (or a numeric
// string) becomes absent.
func (t *Temp) UnmarshalJSON(b []byte) error {
	*t = NoTemp
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*t = TempOf(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*t = TempOf(f)
		}
	}
	return nil
}

func (t Temp) Value() (driver.Value, error) {
	if !t.valid {
		return nil, nil
	}
	return t.value, nil
}

func (t *Temp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = NoTemp
	case float64:
		*t = TempOf(v)
	case int64:
		*t = TempOf(float64(v))
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into Temp", src)
	}
	return nil
}

func (t *Temp) scanString(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("scan temp %q: %w", s, err)
	}
	*t = TempOf(f)
	return nil
}
