package entity

import (
	"encoding/json"
	"fmt"
)

// Setting is a row of `site_settings`: a key and its JSON-encoded value.
type Setting struct {
	Key   string `db:"setting_key" json:"setting_key"`
	Value string `db:"setting_value" json:"setting_value"`
}

// DecodeString decodes Value as a JSON string. Values are stored encoded,
// so "\"abc\"" decodes to abc.
func (s *Setting) DecodeString() (string, error) {
	var v string
	if err := json.Unmarshal([]byte(s.Value), &v); err != nil {
		return "", fmt.Errorf("decode setting %s: %w", s.Key, err)
	}
	return v, nil
}
