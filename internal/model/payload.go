package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Payload is an opaque, structured document attached to a Job. It round-trips
// as JSON both over the wire and in the store, without the store ever
// inspecting its shape.
type Payload json.RawMessage

// Value implements driver.Valuer so GORM can write a Payload as a JSON/JSONB
// column value.
func (p Payload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	return string(p), nil
}

// Scan implements sql.Scanner so GORM can read a JSON/JSONB column back into
// a Payload.
func (p *Payload) Scan(src interface{}) error {
	if src == nil {
		*p = Payload("{}")
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*p = Payload(append([]byte(nil), v...))
	case string:
		*p = Payload(v)
	default:
		return errors.New("model: unsupported payload scan source type")
	}
	return nil
}

// MarshalJSON passes the raw document through unchanged.
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("{}"), nil
	}
	return []byte(p), nil
}

// UnmarshalJSON stores the raw document unchanged.
func (p *Payload) UnmarshalJSON(data []byte) error {
	*p = append((*p)[0:0], data...)
	return nil
}

// GormDataType tells GORM's auto-migration what column type family to use.
func (Payload) GormDataType() string {
	return "json"
}
