// pkg/timefmt/relative.go
package timefmt

import (
	"fmt"
	"time"
)

// Relative renders t the way the notification panel displays ages: seconds
// collapse to "just now", then minutes, hours and days, and anything a week
// old or more falls back to an absolute date. The year is only shown when it
// differs from now's.
func Relative(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}

	if t.Year() != now.Year() {
		return t.Format("Jan 2, 2006")
	}
	return t.Format("Jan 2")
}
