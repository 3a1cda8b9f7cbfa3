// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles:
// handlers, the service layer, and every storage backend can import types
// without depending on each other.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the ISO-8601 calendar date format used on the wire and in
// the relational stores.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day. It is always held at
// midnight UTC so two Dates compare equal when they name the same day.
type Date struct {
	time.Time
}

// NewDate builds a Date for the given year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day (in t's own location).
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected format YYYY-MM-DD", s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD", or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Student represents a student record in our system.
//
// ID is assigned by the storage backend on insert and never changes.
// CreatedAt is set once; UpdatedAt is refreshed on every update.
type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	BirthDate Date      `json:"birthDate"`
	Program   string    `json:"program"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StudentRequest is the body accepted by the create and update endpoints.
//
// Struct tags serve two purposes:
//
//  1. json:"..."     controls the key names in the request body.
//  2. validate:"..." rules checked by the go-playground/validator package.
//     "notblank" rejects empty and whitespace-only strings; "past" is a
//     custom rule registered in internal/utils/validation.
//
// BirthDate stays a string here so a malformed date is reported as a field
// validation error instead of a JSON decode failure.
type StudentRequest struct {
	Name      string `json:"name"      validate:"notblank"`
	Email     string `json:"email"     validate:"notblank,email"`
	BirthDate string `json:"birthDate" validate:"notblank,datetime=2006-01-02,past"`
	Program   string `json:"program"   validate:"notblank"`
}
