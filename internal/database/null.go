package database

import (
	"database/sql"
	"encoding/json"
)

// nullIntToPtr converts a sql.NullInt64 to an *int (nil if not valid)
func nullIntToPtr(n sql.NullInt64) *int {
	if n.Valid {
		v := int(n.Int64)
		return &v
	}
	return nil
}

// marshalToPtr marshals a value to JSON and returns a pointer to the string
// Returns nil if the value is a nil pointer
func marshalToPtr[T any](v *T) (*string, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

// unmarshalFromNullString unmarshal JSON from a sql.NullString into a new value
// Returns nil if the string is not valid or empty
func unmarshalFromNullString[T any](data sql.NullString) (*T, error) {
	if !data.Valid || data.String == "" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal([]byte(data.String), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// marshalToString marshals a value to a JSON string
// Useful when the column is NOT NULL and requires a string value
func marshalToString(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalFromString unmarshal JSON from a string into a value
// Useful when the column is NOT NULL
func unmarshalFromString(data string, v any) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}
