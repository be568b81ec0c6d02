package torgi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// NamedValue is a field the API sends either as a plain string or as {"code": ..., "name": ...}.
type NamedValue struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (v *NamedValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = NamedValue{}
		return nil
	}

	if data[0] == '{' {
		var obj struct {
			Code json.RawMessage `json:"code"`
			Name json.RawMessage `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*v = NamedValue{Code: RawText(obj.Code), Name: RawText(obj.Name)}
		return nil
	}

	text := RawText(data)
	*v = NamedValue{Code: text, Name: text}
	return nil
}

// String returns the display name, falling back to the code.
func (v NamedValue) String() string {
	if v.Name != "" {
		return v.Name
	}
	return v.Code
}

// FlexString accepts both JSON strings and numbers.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	*s = FlexString(RawText(data))
	return nil
}

// FlexInt accepts numbers and numeric strings, anything else decodes to zero.
type FlexInt int

func (i *FlexInt) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(RawText(data))
	if text == "" {
		*i = 0
		return nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		*i = 0
		return nil
	}
	*i = FlexInt(int(f))
	return nil
}

// FlexFloat accepts numbers and numeric strings (with spaces or a decimal comma).
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	text := RawText(data)
	text = strings.ReplaceAll(text, " ", "")
	text = strings.ReplaceAll(text, "\u00a0", "")
	text = strings.ReplaceAll(text, ",", ".")

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexFloat(v)
	return nil
}

// Float returns nil for an absent value.
func (f *FlexFloat) Float() *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

// RawText renders a loosely typed JSON value as text:
// strings are unquoted, objects give their "name", arrays are joined with ", ".
func RawText(data json.RawMessage) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ""
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ""
		}
		return s
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return ""
		}
		for _, key := range []string{"name", "value", "code"} {
			if v, ok := obj[key]; ok {
				return RawText(v)
			}
		}
		return string(data)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return ""
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if text := RawText(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return string(data)
	}
}
