package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// TextTimeLayout is the fixed datetime format used for all persisted
// timestamps. Storing text instead of a native timestamp keeps the columns
// portable across host datastores, and the layout sorts lexicographically so
// range comparisons can run directly against formatted values.
const TextTimeLayout = "2006-01-02 15:04:05"

// TextTime is a time.Time persisted as a fixed-format UTC string.
type TextTime struct {
	time.Time
}

// NewTextTime truncates t to second precision in UTC.
func NewTextTime(t time.Time) TextTime {
	return TextTime{Time: t.UTC().Truncate(time.Second)}
}

// FormatTextTime renders t in the persisted layout, for use in raw queries.
func FormatTextTime(t time.Time) string {
	return t.UTC().Format(TextTimeLayout)
}

func (t TextTime) Value() (driver.Value, error) {
	return t.UTC().Format(TextTimeLayout), nil
}

func (t *TextTime) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := time.ParseInLocation(TextTimeLayout, v, time.UTC)
		if err != nil {
			return fmt.Errorf("parse text time %q: %w", v, err)
		}
		t.Time = parsed
		return nil
	case []byte:
		return t.Scan(string(v))
	case time.Time:
		t.Time = v.UTC().Truncate(time.Second)
		return nil
	case nil:
		t.Time = time.Time{}
		return nil
	}
	return fmt.Errorf("unsupported text time source %T", src)
}

// GormDataType keeps gorm from guessing a native timestamp column.
func (TextTime) GormDataType() string {
	return "varchar(19)"
}
