package report

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"shgcolumns/formula"
	"shgcolumns/models"
)

// Default locale and currency used when none is configured
const (
	DefaultLocale         = "en-IN"
	DefaultCurrencySymbol = "₹"
	EmptyValue            = "-"
	displayDateLayout     = "2/1/2006"
)

// Formatter renders values per a column's display configuration. Grouping
// separators follow the locale; format type and decimal places come from the
// column.
type Formatter struct {
	printer  *message.Printer
	currency string
	style    numberStyle
}

// numberStyle is a locale's separators and digit grouping, read off the
// printer once so amounts can be grouped from their exact decimal digits
type numberStyle struct {
	group     string
	decimal   string
	primary   int
	secondary int
}

func newFormatter(p *message.Printer, currency string) *Formatter {
	return &Formatter{printer: p, currency: currency, style: styleOf(p)}
}

func styleOf(p *message.Printer) numberStyle {
	sample := []rune(p.Sprint(number.Decimal(123456789.5, number.Scale(1))))
	st := numberStyle{group: ",", decimal: ".", primary: 3, secondary: 3}
	if len(sample) < 3 {
		return st
	}
	st.decimal = string(sample[len(sample)-2])

	var groups []int
	run := 0
	for _, r := range sample[:len(sample)-2] {
		if unicode.IsDigit(r) {
			run++
			continue
		}
		if run > 0 {
			groups = append(groups, run)
			st.group = string(r)
		}
		run = 0
	}
	groups = append(groups, run)

	switch n := len(groups); {
	case n == 1:
		st.primary = 0
	case n == 2:
		st.primary, st.secondary = groups[1], groups[1]
	default:
		st.primary, st.secondary = groups[n-1], groups[n-2]
	}
	return st
}

// groupDigits inserts group separators into a run of ASCII digits
func (st numberStyle) groupDigits(digits string) string {
	if st.primary <= 0 || len(digits) <= st.primary {
		return digits
	}
	parts := []string{digits[len(digits)-st.primary:]}
	head := digits[:len(digits)-st.primary]
	for st.secondary > 0 && len(head) > st.secondary {
		parts = append(parts, head[len(head)-st.secondary:])
		head = head[:len(head)-st.secondary]
	}
	if head != "" {
		parts = append(parts, head)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, st.group)
}

// NewFormatter creates a formatter for a BCP 47 locale
func NewFormatter(locale, currencySymbol string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("failed to parse locale %q: %w", locale, err)
	}
	if currencySymbol == "" {
		currencySymbol = DefaultCurrencySymbol
	}
	return newFormatter(message.NewPrinter(tag), currencySymbol), nil
}

// DefaultFormatter returns an en-IN rupee formatter
func DefaultFormatter() *Formatter {
	return newFormatter(message.NewPrinter(language.MustParse(DefaultLocale)), DefaultCurrencySymbol)
}

// Format renders v. Empty values render as "-".
func (f *Formatter) Format(v formula.Value, dc models.DisplayConfig) string {
	if v.IsEmpty() {
		return EmptyValue
	}

	formatType := dc.FormatType
	if formatType == "" {
		formatType = models.FormatTypeText
		if v.Kind == formula.KindNumber {
			formatType = models.FormatTypeNumber
		}
	}

	switch formatType {
	case models.FormatTypeCurrency:
		if d, ok := v.AsNumber(); ok {
			prefix := dc.Prefix
			if prefix == "" {
				prefix = f.currency
			}
			sign, digits := f.grouped(d, dc.DecimalPlaces)
			return sign + prefix + digits + dc.Suffix
		}
	case models.FormatTypePercentage:
		if d, ok := v.AsNumber(); ok {
			return dc.Prefix + d.StringFixed(int32(dc.DecimalPlaces)) + "%" + dc.Suffix
		}
	case models.FormatTypeNumber:
		if d, ok := v.AsNumber(); ok {
			sign, digits := f.grouped(d, dc.DecimalPlaces)
			return sign + dc.Prefix + digits + dc.Suffix
		}
	case models.FormatTypeDate:
		if t, ok := v.AsDate(); ok {
			return dc.Prefix + t.Format(displayDateLayout) + dc.Suffix
		}
	}
	return dc.Prefix + v.String() + dc.Suffix
}

// FormatCount renders a count with locale grouping
func (f *Formatter) FormatCount(n int) string {
	return f.printer.Sprint(number.Decimal(n))
}

// grouped rounds half away from zero and groups the digits of the result,
// returning the sign separately so it can lead any prefix
func (f *Formatter) grouped(d decimal.Decimal, places int) (sign, digits string) {
	rounded := d.Round(int32(places))
	if rounded.IsNegative() {
		sign = "-"
	}
	intPart, frac, _ := strings.Cut(rounded.Abs().StringFixed(int32(places)), ".")
	digits = f.style.groupDigits(intPart)
	if frac != "" {
		digits += f.style.decimal + frac
	}
	return sign, digits
}
