package bulk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical textual form of date values.
const DateLayout = "2006-01-02"

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ErrNonScalar is returned when decoding a nested object or array into a Value.
var ErrNonScalar = errors.New("value is not a scalar")

// Value is a scalar field value. Raw input only ever carries null, string,
// number and bool; dates appear after schema normalization.
type Value struct {
	kind Kind
	str  string
	num  decimal.Decimal
	b    bool
	t    time.Time
}

// NullValue returns the null value.
func NullValue() Value { return Value{} }

// StringValue wraps s.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue wraps d.
func NumberValue(d decimal.Decimal) Value { return Value{kind: KindNumber, num: d} }

// IntValue wraps i as a number.
func IntValue(i int64) Value { return NumberValue(decimal.NewFromInt(i)) }

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// DateValue wraps the calendar day of t (UTC).
func DateValue(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload; empty for other kinds.
func (v Value) Str() string { return v.str }

// Decimal returns the number payload.
func (v Value) Decimal() decimal.Decimal { return v.num }

// Bool returns the bool payload.
func (v Value) Bool() bool { return v.b }

// Time returns the date payload.
func (v Value) Time() time.Time { return v.t }

// Text renders v in its canonical textual form. Null renders as "".
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num.String()
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.t.Format(DateLayout)
	}
	return ""
}

func (v Value) String() string {
	if v.kind == KindNull {
		return "null"
	}
	return v.Text()
}

// IsBlank reports whether v is null or a whitespace-only string.
func (v Value) IsBlank() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return len(bytes.TrimSpace([]byte(v.str))) == 0
	}
	return false
}

// Equal reports whether two values hold the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num.Equal(o.num)
	case KindBool:
		return v.b == o.b
	case KindDate:
		return v.t.Equal(o.t)
	}
	return true
}

// Compare orders two numbers or two dates. ok is false for any other pairing.
func (v Value) Compare(o Value) (cmp int, ok bool) {
	switch {
	case v.kind == KindNumber && o.kind == KindNumber:
		return v.num.Cmp(o.num), true
	case v.kind == KindDate && o.kind == KindDate:
		return v.t.Compare(o.t), true
	}
	return 0, false
}

// Interface converts v to a plain Go value suitable for generic encoders.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return json.Number(v.num.String())
	case KindBool:
		return v.b
	case KindDate:
		return v.t.Format(DateLayout)
	}
	return nil
}

// MarshalJSON encodes numbers without quotes and dates as YYYY-MM-DD strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return []byte(v.num.String()), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindDate:
		return json.Marshal(v.t.Format(DateLayout))
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts scalars only; objects and arrays yield ErrNonScalar.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch x := tok.(type) {
	case nil:
		*v = NullValue()
	case string:
		*v = StringValue(x)
	case bool:
		*v = BoolValue(x)
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", x, err)
		}
		*v = NumberValue(d)
	default:
		return ErrNonScalar
	}
	return nil
}
