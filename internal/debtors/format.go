package debtors

import (
	"fmt"
	"strconv"
	"time"
)

// FormatAmountMinor renders a minor-unit amount as "1,234.56" for scripts
// and message templates. Currency symbols are left to the caller.
func FormatAmountMinor(minor int64) string {
	neg := minor < 0
	if neg {
		minor = -minor
	}
	units := minor / 100
	cents := minor % 100

	s := strconv.FormatInt(units, 10)
	var grouped []byte
	for i, d := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, d)
	}

	out := fmt.Sprintf("%s.%02d", grouped, cents)
	if neg {
		out = "-" + out
	}
	return out
}

// FormatDueDate renders a due date the way the agent speaks it,
// e.g. "January 2, 2026". Empty when no date is set.
func FormatDueDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("January 2, 2006")
}
