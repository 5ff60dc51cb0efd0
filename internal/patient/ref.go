package patient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type refKind uint8

const (
	refNone refKind = iota
	refID
	refText
)

// Ref is a patient reference as callers supply it: either a canonical id or
// free text (name, document, phone) that still has to be resolved.
type Ref struct {
	kind refKind
	id   int64
	text string
}

func ByID(id int64) Ref { return Ref{kind: refID, id: id} }

func ByText(text string) Ref { return Ref{kind: refText, text: text} }

// ParseRef treats an all-digit string as a canonical id and anything else as text.
func ParseRef(raw string) Ref {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Ref{}
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
		return ByID(id)
	}
	return ByText(s)
}

func (r Ref) IsZero() bool { return r.kind == refNone }

// ID returns the canonical id when the reference already carries one.
func (r Ref) ID() (int64, bool) { return r.id, r.kind == refID }

// Text returns the display text when the reference needs resolution.
func (r Ref) Text() (string, bool) { return r.text, r.kind == refText }

func (r Ref) String() string {
	switch r.kind {
	case refID:
		return strconv.FormatInt(r.id, 10)
	case refText:
		return r.text
	default:
		return ""
	}
}

func (r Ref) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case refID:
		return []byte(strconv.FormatInt(r.id, 10)), nil
	case refText:
		return json.Marshal(r.text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON number (canonical id) or a string.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = ParseRef(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("patient reference must be a number or a string: %w", err)
	}
	id, err := n.Int64()
	if err != nil || id <= 0 {
		return errors.New("patient id must be a positive integer")
	}
	*r = ByID(id)
	return nil
}
