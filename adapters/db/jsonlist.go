package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonList maps array-valued document fields (tags, blocked_by) onto a
// single jsonb/TEXT column, preserving element order.
type jsonList []string

func (l jsonList) Value() (driver.Value, error) {
	if l == nil {
		l = jsonList{}
	}
	return json.Marshal(l)
}

func (l *jsonList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = jsonList{}
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("scan jsonList: unsupported type %T", src)
	}
}
