package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ParamMap holds BBB API parameters grouped by call section, f.e.
// {"create": {"record": "false"}, "join__coffee": {"userdata-bbb_ask_for_feedback_on_logout": "false"}}.
// It implements driver.Valuer and sql.Scanner so it can be stored as a JSON column.
type ParamMap map[string]map[string]string

// Value return json value, implement driver.Valuer interface
func (m ParamMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	ba, err := m.MarshalJSON()
	return string(ba), err
}

// Scan scan value into Jsonb, implements sql.Scanner interface
func (m *ParamMap) Scan(val interface{}) error {
	var ba []byte
	switch v := val.(type) {
	case []byte:
		ba = v
	case string:
		ba = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", val))
	}
	t := map[string]map[string]string{}
	err := json.Unmarshal(ba, &t)
	*m = ParamMap(t)
	return err
}

// MarshalJSON to output non base64 encoded []byte
func (m ParamMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	t := (map[string]map[string]string)(m)
	return json.Marshal(t)
}

// UnmarshalJSON to deserialize []byte
func (m *ParamMap) UnmarshalJSON(b []byte) error {
	t := map[string]map[string]string{}
	err := json.Unmarshal(b, &t)
	*m = ParamMap(t)
	return err
}

// GormDataType gorm common data type
func (m ParamMap) GormDataType() string {
	return "parammap"
}

// GormDBDataType gorm db data type
func (ParamMap) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "sqlite":
		return "JSON"
	case "mysql":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}

// Clone returns an independent deep copy.
func (m ParamMap) Clone() ParamMap {
	if m == nil {
		return nil
	}
	out := make(ParamMap, len(m))
	for section, params := range m {
		cp := make(map[string]string, len(params))
		for k, v := range params {
			cp[k] = v
		}
		out[section] = cp
	}
	return out
}

// MergeUnder deep-merges other underneath m: sections and keys already present
// in m win, everything else is taken over from other. The receiver is modified
// in place and returned.
func (m ParamMap) MergeUnder(other ParamMap) ParamMap {
	for section, params := range other {
		existing, ok := m[section]
		if !ok {
			cp := make(map[string]string, len(params))
			for k, v := range params {
				cp[k] = v
			}
			m[section] = cp
			continue
		}
		for k, v := range params {
			if _, ok := existing[k]; !ok {
				existing[k] = v
			}
		}
	}
	return m
}
