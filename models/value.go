package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/greenops/fieldops_backend/utils"
	"github.com/shopspring/decimal"
)

// Value is one cell of a record. Exactly one of Number, Text or Date is
// meaningful, chosen by Type. The zero Value is an empty cell.
type Value struct {
	Type   FieldType
	Number decimal.Decimal
	Text   string
	Date   time.Time
}

func NumberValue(d decimal.Decimal) Value {
	return Value{Type: FieldTypeNumber, Number: d}
}

func IntValue(n int64) Value {
	return NumberValue(decimal.NewFromInt(n))
}

func TextValue(s string) Value {
	return Value{Type: FieldTypeText, Text: s}
}

func DateValue(t time.Time) Value {
	return Value{Type: FieldTypeDate, Date: CalendarDate(t)}
}

// ParseValue reads raw user input as a value of type t.
// Blank input yields the empty Value for every type.
func ParseValue(t FieldType, raw string) (Value, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Value{}, nil
	}
	switch t {
	case FieldTypeNumber:
		d, err := utils.ParseDecimal(s)
		if err != nil {
			return Value{}, fmt.Errorf("%q is not a number", raw)
		}
		return NumberValue(d), nil
	case FieldTypeDate:
		d, err := ParseDate(s)
		if err != nil {
			return Value{}, err
		}
		return DateValue(d), nil
	case FieldTypeText:
		return TextValue(raw), nil
	default:
		return Value{}, errors.New("invalid field type")
	}
}

// IsEmpty reports a blank cell.
func (v Value) IsEmpty() bool {
	switch v.Type {
	case FieldTypeNumber:
		return false
	case FieldTypeDate:
		return v.Date.IsZero()
	case FieldTypeText:
		return strings.TrimSpace(v.Text) == ""
	default:
		return true
	}
}

// String is the display form used by search, CSV and XLSX export.
func (v Value) String() string {
	switch v.Type {
	case FieldTypeNumber:
		return v.Number.String()
	case FieldTypeDate:
		if v.Date.IsZero() {
			return ""
		}
		return FormatDate(v.Date)
	case FieldTypeText:
		return v.Text
	default:
		return ""
	}
}

func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return v.IsEmpty() && o.IsEmpty()
	}
	switch v.Type {
	case FieldTypeNumber:
		return v.Number.Equal(o.Number)
	case FieldTypeDate:
		return v.Date.Equal(o.Date)
	default:
		return v.Text == o.Text
	}
}

// Compare orders two values of the same field: empty cells first, numbers
// numerically, dates by instant, text case-insensitively.
func (v Value) Compare(o Value) int {
	ve, oe := v.IsEmpty(), o.IsEmpty()
	switch {
	case ve && oe:
		return 0
	case ve:
		return -1
	case oe:
		return 1
	}
	if v.Type != o.Type {
		return strings.Compare(strings.ToLower(v.String()), strings.ToLower(o.String()))
	}
	switch v.Type {
	case FieldTypeNumber:
		return v.Number.Cmp(o.Number)
	case FieldTypeDate:
		return v.Date.Compare(o.Date)
	default:
		return strings.Compare(strings.ToLower(v.Text), strings.ToLower(o.Text))
	}
}

type valueJSON struct {
	Type  FieldType `json:"type,omitempty"`
	Value string    `json:"value"`
}

// Values travel as {"type": "...", "value": "<display form>"} so numbers keep
// their exact decimal digits through JSON columns and the Redis cache.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueJSON{Type: v.Type, Value: v.String()})
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw valueJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Type == "" {
		*v = Value{}
		if raw.Value != "" {
			*v = TextValue(raw.Value)
		}
		return nil
	}
	parsed, err := ParseValue(raw.Type, raw.Value)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
