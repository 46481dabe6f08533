package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringMap stores a flat string-to-string map as a JSON column.
type StringMap map[string]string

// Value implements the driver.Valuer interface for database serialization.
func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for database deserialization.
func (m *StringMap) Scan(value interface{}) error {
	if value == nil {
		*m = StringMap{}
		return nil
	}
	return scanJSON(value, m)
}

// jsonValue marshals v for storage in a text column.
func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// scanJSONOrZero decodes a raw database value into dst, leaving dst at its zero
// value when the column is NULL.
func scanJSONOrZero(value interface{}, dst interface{}) error {
	if value == nil {
		return nil
	}
	return scanJSON(value, dst)
}

// scanJSON decodes a raw database value ([]byte or string) into dst.
func scanJSON(value interface{}, dst interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan JSON column")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, dst)
}
