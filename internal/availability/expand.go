package availability

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Interval is a concrete [Start, End) range of open time.
type Interval struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Location string    `json:"location,omitempty"`
}

func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

// Slot is a fixed-length bookable unit inside an open interval.
type Slot struct {
	ProviderID string    `json:"provider_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Location   string    `json:"location,omitempty"`
}

// recurringOverlapSpan covers a full year of DST transitions when two
// weekly windows in different zones are compared.
const recurringOverlapSpan = 371 * 24 * time.Hour

// Overlaps reports whether two active available windows collide. Windows in
// the same zone compare wall-clock ranges on shared days. Windows in
// different zones compare concrete occurrences: over the dated window's own
// dates, or over the year starting at from when both are weekly.
// Blocked windows and shift overrides never collide.
func Overlaps(a, b Window, from time.Time) bool {
	if a.ID == b.ID && a.ID != uuid.Nil {
		return false
	}
	if !a.Active || !b.Active || a.Kind != KindAvailable || b.Kind != KindAvailable {
		return false
	}
	if a.ShiftOverride || b.ShiftOverride || a.ProviderID != b.ProviderID {
		return false
	}
	if !sameZone(a, b) {
		start, end := overlapSpan(a, b, from)
		return intersects(occurrences(a, start, end), occurrences(b, start, end))
	}
	if !shareDay(a, b) {
		return false
	}
	as, ae := a.clockRange()
	bs, be := b.clockRange()
	return as < be && bs < ae
}

// CheckOverlap returns ErrOverlap when candidate collides with any existing window.
func CheckOverlap(candidate Window, existing []Window, from time.Time) error {
	for _, w := range existing {
		if Overlaps(candidate, w, from) {
			return ErrOverlap
		}
	}
	return nil
}

func sameZone(a, b Window) bool {
	la, errA := a.location()
	lb, errB := b.location()
	if errA != nil || errB != nil {
		return true
	}
	return la.String() == lb.String()
}

// overlapSpan bounds the instants worth comparing. Dated spans are padded
// by a day on each side so every zone offset is covered.
func overlapSpan(a, b Window, from time.Time) (time.Time, time.Time) {
	start, end := from, from.Add(recurringOverlapSpan)
	dated := false
	for _, w := range []Window{a, b} {
		if w.DayOfWeek != nil {
			continue
		}
		ds, de := dateSpan(w)
		ds, de = ds.AddDate(0, 0, -1), de.AddDate(0, 0, 2)
		if !dated {
			start, end, dated = ds, de, true
			continue
		}
		if ds.After(start) {
			start = ds
		}
		if de.Before(end) {
			end = de
		}
	}
	if end.Before(start) {
		end = start
	}
	return start, end
}

// intersects walks two ordered interval lists looking for any shared instant.
func intersects(a, b []Interval) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Start.Before(b[j].End) && b[j].Start.Before(a[i].End) {
			return true
		}
		if a[i].End.Before(b[j].End) {
			i++
		} else {
			j++
		}
	}
	return false
}

func shareDay(a, b Window) bool {
	switch {
	case a.DayOfWeek != nil && b.DayOfWeek != nil:
		return *a.DayOfWeek == *b.DayOfWeek
	case a.DayOfWeek != nil:
		return datedCoversWeekday(b, *a.DayOfWeek)
	case b.DayOfWeek != nil:
		return datedCoversWeekday(a, *b.DayOfWeek)
	default:
		as, ae := dateSpan(a)
		bs, be := dateSpan(b)
		return !as.After(be) && !bs.After(ae)
	}
}

func datedCoversWeekday(w Window, weekday int) bool {
	start, end := dateSpan(w)
	for d, i := start, 0; !d.After(end) && i < 7; d, i = d.AddDate(0, 0, 1), i+1 {
		if int(d.Weekday()) == weekday {
			return true
		}
	}
	return false
}

func dateSpan(w Window) (time.Time, time.Time) {
	start := dateOnly(*w.StartDate)
	if w.EndDate == nil {
		return start, start
	}
	return start, dateOnly(*w.EndDate)
}

// Expand turns windows into open intervals within [from, to): the union of
// active available windows minus active blocks. A shift override is only
// cut by blocks that belong to a different assignment.
func Expand(windows []Window, from, to time.Time) []Interval {
	if !to.After(from) {
		return nil
	}
	var open, blocked []Interval
	var overrides []Window
	for _, w := range windows {
		if !w.Active {
			continue
		}
		switch {
		case w.Kind == KindBlocked:
			blocked = append(blocked, occurrences(w, from, to)...)
		case w.ShiftOverride:
			overrides = append(overrides, w)
		default:
			open = append(open, occurrences(w, from, to)...)
		}
	}
	out := subtract(merge(open), merge(blocked))
	for _, o := range overrides {
		var foreign []Interval
		for _, w := range windows {
			if w.Active && w.Kind == KindBlocked && !sameAssignment(w, o) {
				foreign = append(foreign, occurrences(w, from, to)...)
			}
		}
		out = append(out, subtract(merge(occurrences(o, from, to)), merge(foreign))...)
	}
	return merge(out)
}

func sameAssignment(a, b Window) bool {
	return a.AssignmentID != nil && b.AssignmentID != nil && *a.AssignmentID == *b.AssignmentID
}

func occurrences(w Window, from, to time.Time) []Interval {
	loc, err := w.location()
	if err != nil {
		return nil
	}
	startMin, endMin := w.clockRange()
	// Walk the civil dates that can touch [from, to) in the window's zone.
	first := dateOnly(from.In(loc)).AddDate(0, 0, -1)
	last := dateOnly(to.In(loc))
	var out []Interval
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if !w.appliesOn(d) {
			continue
		}
		iv := Interval{
			Start:    time.Date(d.Year(), d.Month(), d.Day(), startMin/60, startMin%60, 0, 0, loc),
			End:      time.Date(d.Year(), d.Month(), d.Day(), endMin/60, endMin%60, 0, 0, loc),
			Location: w.LocationOverride,
		}
		if iv.Start.Before(from) {
			iv.Start = from
		}
		if iv.End.After(to) {
			iv.End = to
		}
		if iv.End.After(iv.Start) {
			out = append(out, iv)
		}
	}
	return out
}

func merge(list []Interval) []Interval {
	if len(list) == 0 {
		return nil
	}
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Start.Equal(list[j].Start) {
			return list[i].Start.Before(list[j].Start)
		}
		return list[i].End.Before(list[j].End)
	})
	out := []Interval{list[0]}
	for _, iv := range list[1:] {
		last := &out[len(out)-1]
		if iv.Start.After(last.End) {
			out = append(out, iv)
			continue
		}
		if iv.Location == last.Location {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		// Different locations: keep the earlier range and trim the later one.
		if iv.End.After(last.End) {
			iv.Start = last.End
			out = append(out, iv)
		}
	}
	return out
}

func subtract(open, blocked []Interval) []Interval {
	var out []Interval
	for _, iv := range open {
		pieces := []Interval{iv}
		for _, b := range blocked {
			var next []Interval
			for _, p := range pieces {
				if !b.Start.Before(p.End) || !b.End.After(p.Start) {
					next = append(next, p)
					continue
				}
				if b.Start.After(p.Start) {
					next = append(next, Interval{Start: p.Start, End: b.Start, Location: p.Location})
				}
				if b.End.Before(p.End) {
					next = append(next, Interval{Start: b.End, End: p.End, Location: p.Location})
				}
			}
			pieces = next
		}
		out = append(out, pieces...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// NextOpen returns the first instant at or after now that starts an open
// interval of at least minDuration, looking ahead horizon.
func NextOpen(windows []Window, now time.Time, horizon, minDuration time.Duration) *time.Time {
	for _, iv := range Expand(windows, now, now.Add(horizon)) {
		if iv.Duration() >= minDuration {
			start := iv.Start
			return &start
		}
	}
	return nil
}

// Slots cuts open intervals into fixed-length slots aligned to each interval start.
func Slots(providerID string, windows []Window, from, to time.Time, length time.Duration) []Slot {
	if length <= 0 {
		return nil
	}
	var out []Slot
	for _, iv := range Expand(windows, from, to) {
		for s := iv.Start; !s.Add(length).After(iv.End); s = s.Add(length) {
			out = append(out, Slot{ProviderID: providerID, Start: s, End: s.Add(length), Location: iv.Location})
		}
	}
	return out
}
