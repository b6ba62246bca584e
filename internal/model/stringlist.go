package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringList is an ordered list of strings stored as a JSON array column,
// used for DeadLetter.AllErrorMessages.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("model: unsupported string list scan source type")
	}
	return json.Unmarshal(data, l)
}

// GormDataType tells GORM's auto-migration what column type family to use.
func (StringList) GormDataType() string {
	return "json"
}
