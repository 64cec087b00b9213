package advisor

import (
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// maxQuantity is the largest integer a float64 holds exactly. Larger stock or
// sales values are clamped to it so integer outputs stay exact and positive.
const maxQuantity = 1 << 53

var thousandsSeparator = strings.NewReplacer(",", "")

// Layouts tried after cast's built-in set, which only covers ISO-like and RFC forms.
var extraDateLayouts = []string{
	"2006/01/02",
	"2006/1/2",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"02-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// parseNumber converts a loosely typed cell into a finite float. Booleans and
// nil never parse, matching how spreadsheet exports are read.
func parseNumber(v any, stripSeparators bool) (float64, bool) {
	switch t := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		s := strings.TrimSpace(t)
		if stripSeparators {
			s = strings.TrimSpace(thousandsSeparator.Replace(s))
		}
		if s == "" {
			return 0, false
		}
		v = s
	}

	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// coerceQuantity parses a quantity or stock value. Anything unparseable or
// negative becomes 0, and values above maxQuantity are clamped.
func coerceQuantity(v any) float64 {
	f, ok := parseNumber(v, true)
	if !ok || f < 0 {
		return 0
	}
	return math.Min(f, maxQuantity)
}

// coerceLeadTime truncates toward zero; negative values are treated as absent.
func coerceLeadTime(v any) (int, bool) {
	f, ok := parseNumber(v, false)
	if !ok || f < 0 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func coerceID(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

// parseDate accepts string cells only and returns the calendar day at UTC midnight.
func parseDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	t, err := cast.ToTimeInDefaultLocationE(s, time.UTC)
	if err != nil {
		for _, layout := range extraDateLayouts {
			if t, err = time.ParseInLocation(layout, s, time.UTC); err == nil {
				break
			}
		}
	}
	if err != nil {
		return time.Time{}, false
	}

	return civilDay(t), true
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
