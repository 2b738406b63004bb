package indi

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseNumber parses an INDI number value. Plain decimal notation is
// accepted first; otherwise the value is treated as sexagesimal with
// components separated by colons or spaces (e.g. "12:30:45", "-5 15").
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidNumber)
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ':' || r == ' ' || r == '\t'
	})
	if len(parts) == 0 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}

	divisor := 1.0
	value := 0.0
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
		}
		value += v / divisor
		divisor *= 60
	}

	if neg {
		value = -value
	}
	return value, nil
}

// FormatNumber renders a value using an INDI number format string.
//
// Formats ending in the INDI-specific 'm' directive produce sexagesimal
// output; the fractional digit count selects the precision:
//
//	%x.9m  ->  :mm:ss.ss
//	%x.8m  ->  :mm:ss.s
//	%x.6m  ->  :mm:ss
//	%x.5m  ->  :mm.m
//	%x.3m  ->  :mm
//
// All other formats are treated as printf directives for a float64
// (integer directives round first). An empty format falls back to "%g".
func FormatNumber(format string, value float64) (string, error) {
	if format == "" {
		return strconv.FormatFloat(value, 'g', -1, 64), nil
	}

	var width, frac int
	var verb rune
	if n, _ := fmt.Sscanf(format, "%%%d.%d%c", &width, &frac, &verb); n == 3 && verb == 'm' {
		return formatSexa(value, width-frac, fracBase(frac)), nil
	}

	verbIdx := strings.LastIndexAny(format, "eEfgGdxXo")
	if verbIdx < 0 || !strings.HasPrefix(format, "%") {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	switch format[verbIdx] {
	case 'd', 'x', 'X', 'o':
		rounded := int64(value + 0.5)
		if value < 0 {
			rounded = int64(value - 0.5)
		}
		return fmt.Sprintf(format, rounded), nil
	default:
		return fmt.Sprintf(format, value), nil
	}
}

// fracBase maps the fractional digit count of an %m format to the
// sexagesimal fraction base.
func fracBase(frac int) int {
	switch frac {
	case 9:
		return 360000
	case 8:
		return 36000
	case 6:
		return 3600
	case 5:
		return 600
	default:
		return 60
	}
}

// formatSexa renders value as sexagesimal with the whole part
// right-justified in width characters.
func formatSexa(value float64, width, base int) string {
	neg := value < 0
	if neg {
		value = -value
	}

	n := int64(value*float64(base) + 0.5)
	whole := n / int64(base)
	frac := n % int64(base)

	var b strings.Builder
	if neg && whole == 0 {
		// The sign would be lost on a bare zero.
		fmt.Fprintf(&b, "%*s-0", max(width-2, 0), "")
	} else {
		signed := whole
		if neg {
			signed = -whole
		}
		fmt.Fprintf(&b, "%*d", width, signed)
	}

	perMinute := int64(base) / 60
	switch base {
	case 60:
		fmt.Fprintf(&b, ":%02d", frac)
	case 600:
		fmt.Fprintf(&b, ":%02d.%d", frac/10, frac%10)
	case 3600:
		fmt.Fprintf(&b, ":%02d:%02d", frac/perMinute, frac%perMinute)
	case 36000:
		sec := frac % perMinute
		fmt.Fprintf(&b, ":%02d:%02d.%d", frac/perMinute, sec/10, sec%10)
	case 360000:
		sec := frac % perMinute
		fmt.Fprintf(&b, ":%02d:%02d.%02d", frac/perMinute, sec/100, sec%100)
	}
	return b.String()
}
