package result

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Text is a provider field that may arrive as a scalar or as an array.
// Numbers and booleans are kept in their JSON text form.
type Text []string

// UnmarshalJSON accepts null, a scalar or an array of scalars.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}

	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("text array: %w", err)
		}
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			s, ok, err := scalar(item)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, s)
			}
		}
		*t = out
		return nil
	}

	s, ok, err := scalar(data)
	if err != nil {
		return err
	}
	if !ok {
		*t = nil
		return nil
	}
	*t = Text{s}
	return nil
}

func scalar(data []byte) (string, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", false, nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false, fmt.Errorf("text scalar: %w", err)
		}
		return s, true, nil
	case '{', '[':
		// nested structures carry no displayable scalar
		return "", false, nil
	default:
		return string(data), true, nil
	}
}

// First returns the first element, for singular fields. A blank first
// element is returned as is; callers apply OrDefault for placeholders.
func (t Text) First() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Join concatenates every element with ", ", for multi-valued fields.
func (t Text) Join() string {
	parts := make([]string, 0, len(t))
	for _, s := range t {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Number is a provider id or count that may arrive as a JSON number or string.
type Number string

// UnmarshalJSON accepts numbers, numeric strings and null.
func (n *Number) UnmarshalJSON(data []byte) error {
	s, ok, err := scalar(data)
	if err != nil {
		return err
	}
	if !ok {
		*n = ""
		return nil
	}
	*n = Number(s)
	return nil
}

// String returns the textual form.
func (n Number) String() string { return string(n) }

// Int returns the integer value, or 0 when the value is absent or not numeric.
func (n Number) Int() int {
	if n == "" {
		return 0
	}
	if i, err := strconv.Atoi(string(n)); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(string(n), 64); err == nil {
		return int(f)
	}
	return 0
}

// StripHTML removes markup from provider snippets and decodes entities.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
