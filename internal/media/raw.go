package media

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Raw holds the media column exactly as stored.
type Raw []byte

func (r *Raw) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = nil
	case []byte:
		*r = bytes.Clone(v)
	case string:
		*r = Raw(v)
	default:
		return fmt.Errorf("media: cannot scan %T", src)
	}
	return nil
}

func (r Raw) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	return string(r), nil
}

func (r Raw) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	if !json.Valid(r) {
		return json.Marshal(string(r))
	}
	return r, nil
}

func (r *Raw) UnmarshalJSON(b []byte) error {
	*r = bytes.Clone(b)
	return nil
}

func (r Raw) Field() Field {
	return Decode(r)
}

func (r Raw) Items() []Item {
	return Normalize(r.Field())
}

// FromItems encodes items in the current list shape.
func FromItems(items []Item) Raw {
	b, _ := json.Marshal(items)
	return b
}
