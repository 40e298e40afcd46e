package formula

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the dynamic type of a Value
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "boolean"
	case KindDate:
		return "date"
	default:
		return "null"
	}
}

// DateLayout is the layout used to read and write plain dates
const DateLayout = "2006-01-02"

// Value is a typed cell or expression value
type Value struct {
	Kind Kind
	Num  decimal.Decimal
	Str  string
	Bool bool
	Time time.Time
}

func Null() Value                    { return Value{} }
func Number(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }
func Int(i int64) Value              { return Number(decimal.NewFromInt(i)) }
func String(s string) Value          { return Value{Kind: KindString, Str: s} }
func Bool(b bool) Value              { return Value{Kind: KindBool, Bool: b} }
func Date(t time.Time) Value         { return Value{Kind: KindDate, Time: t} }

// ValueOf converts a raw Go value, as found in member data maps or decoded
// JSON, into a Value
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case decimal.Decimal:
		return Number(x)
	case *decimal.Decimal:
		if x == nil {
			return Null()
		}
		return Number(*x)
	case int:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case float32:
		return Number(decimal.NewFromFloat32(x))
	case float64:
		return Number(decimal.NewFromFloat(x))
	case json.Number:
		d, err := decimal.NewFromString(string(x))
		if err != nil {
			return String(string(x))
		}
		return Number(d)
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case time.Time:
		return Date(x)
	case *time.Time:
		if x == nil {
			return Null()
		}
		return Date(*x)
	default:
		return String(fmt.Sprint(x))
	}
}

// IsNull reports whether the value is absent
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// IsEmpty reports whether the value is absent or an empty string
func (v Value) IsEmpty() bool {
	return v.Kind == KindNull || (v.Kind == KindString && strings.TrimSpace(v.Str) == "")
}

// AsNumber returns the numeric form of the value. Strings holding a number
// (as produced by CSV imports) convert; everything else does not.
func (v Value) AsNumber() (decimal.Decimal, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		s := strings.ReplaceAll(strings.TrimSpace(v.Str), ",", "")
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

// AsBool returns the boolean form of the value, accepting common spellings
func (v Value) AsBool() (bool, bool) {
	switch v.Kind {
	case KindBool:
		return v.Bool, true
	case KindNumber:
		return !v.Num.IsZero(), true
	case KindString:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0":
			return false, true
		}
	}
	return false, false
}

// AsDate returns the date form of the value
func (v Value) AsDate() (time.Time, bool) {
	switch v.Kind {
	case KindDate:
		return v.Time, true
	case KindString:
		s := strings.TrimSpace(v.Str)
		for _, layout := range []string{DateLayout, time.RFC3339, "02/01/2006"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Truthy reports whether the value counts as true in a condition
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return !v.Num.IsZero()
	case KindString:
		return v.Str != ""
	case KindDate:
		return !v.Time.IsZero()
	}
	return false
}

// Interface returns a plain Go value suitable for JSON encoding. Numbers are
// returned as json.Number so no precision is lost.
func (v Value) Interface() any {
	switch v.Kind {
	case KindNumber:
		return json.Number(v.Num.String())
	case KindString:
		return v.Str
	case KindBool:
		return v.Bool
	case KindDate:
		return v.Time.Format(DateLayout)
	}
	return nil
}

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return v.Num.String()
	case KindString:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindDate:
		return v.Time.Format(DateLayout)
	}
	return ""
}

// Equal compares two values, treating numeric strings as numbers
func (v Value) Equal(o Value) bool {
	if a, ok := v.AsNumber(); ok {
		if b, ok := o.AsNumber(); ok {
			return a.Equal(b)
		}
	}
	if v.Kind == KindDate && o.Kind == KindDate {
		return v.Time.Equal(o.Time)
	}
	if v.Kind == KindNull || o.Kind == KindNull {
		return v.Kind == o.Kind
	}
	return v.String() == o.String()
}
