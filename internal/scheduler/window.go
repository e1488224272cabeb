package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// Window restricts runs to some hours of some days. The zero Window allows
// every moment.
type Window struct {
	// From and To bound the hour range [From, To). From > To wraps around midnight.
	From, To int
	hours    bool
	days     map[time.Weekday]struct{}
}

// ParseWindow parses hours like "8-18" or "22-6" and day names like "mon".
// Empty values leave that dimension unrestricted.
func ParseWindow(hours string, days []string) (Window, error) {
	var w Window

	if hours = strings.TrimSpace(hours); hours != "" {
		from, to, ok := strings.Cut(hours, "-")
		if !ok {
			return w, fmt.Errorf("hours %q must look like H1-H2", hours)
		}
		var err error
		if w.From, err = parseHour(from); err != nil {
			return w, err
		}
		if w.To, err = parseHour(to); err != nil {
			return w, err
		}
		if w.From == w.To {
			return w, fmt.Errorf("hours %q describe an empty range", hours)
		}
		w.hours = true
	}

	for _, d := range days {
		key := strings.ToLower(strings.TrimSpace(d))
		if len(key) > 3 {
			key = key[:3]
		}
		day, ok := weekdays[key]
		if !ok {
			return w, fmt.Errorf("unknown day %q", d)
		}
		if w.days == nil {
			w.days = map[time.Weekday]struct{}{}
		}
		w.days[day] = struct{}{}
	}
	return w, nil
}

func parseHour(s string) (int, error) {
	h, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour %q", s)
	}
	return h, nil
}

// Contains reports whether t falls inside the window. For wrapped hour ranges
// the day is the one on which the range started.
func (w Window) Contains(t time.Time) bool {
	day := t.Weekday()

	if w.hours {
		h := t.Hour()
		if w.From < w.To {
			if h < w.From || h >= w.To {
				return false
			}
		} else {
			switch {
			case h >= w.From:
			case h < w.To:
				day = (day + 6) % 7
			default:
				return false
			}
		}
	}

	if len(w.days) == 0 {
		return true
	}
	_, ok := w.days[day]
	return ok
}

func (w Window) String() string {
	parts := make([]string, 0, 2)
	if w.hours {
		parts = append(parts, fmt.Sprintf("hours %d-%d", w.From, w.To))
	}
	if len(w.days) > 0 {
		names := make([]string, 0, len(w.days))
		for _, name := range []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"} {
			if _, ok := w.days[weekdays[name]]; ok {
				names = append(names, name)
			}
		}
		parts = append(parts, "days "+strings.Join(names, ","))
	}
	if len(parts) == 0 {
		return "always"
	}
	return strings.Join(parts, " ")
}
