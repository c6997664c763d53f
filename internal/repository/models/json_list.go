package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSONList stores a slice as a JSON array in a text/CLOB column.
type JSONList[T any] []T

// Value implements the driver.Valuer interface
func (l JSONList[T]) Value() (driver.Value, error) {
	if l == nil {
		// nil is stored as an empty JSON array, never NULL
		return "[]", nil
	}
	jsonData, err := json.Marshal([]T(l))
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil
}

// Scan implements the sql.Scanner interface
func (l *JSONList[T]) Scan(value interface{}) error {
	if value == nil {
		*l = JSONList[T]{}
		return nil
	}

	var bytesToParse []byte

	switch v := value.(type) {
	case []byte:
		bytesToParse = v
	case string:
		bytesToParse = []byte(v)
	default:
		return errors.New("JSONList Scan: unsupported type " + fmt.Sprintf("%T", value))
	}

	if len(bytesToParse) == 0 || string(bytesToParse) == "null" {
		*l = JSONList[T]{}
		return nil
	}

	var items []T
	if err := json.Unmarshal(bytesToParse, &items); err != nil {
		return fmt.Errorf("JSONList Scan: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	*l = items
	return nil
}
