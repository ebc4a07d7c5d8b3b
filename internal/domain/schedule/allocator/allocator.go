// Package allocator computes the next free concrete timestamp for an
// account from its recurring preferred slots. It is pure: callers pass
// the enabled slots, the set of occupied times and a floor, and get
// back the earliest matching timestamp that is still free.
package allocator

import (
	"time"

	"github.com/vadim/neo-planner/internal/domain/schedule/entity"
)

// DefaultHorizonWeeks bounds how far forward the search projects slots
const DefaultHorizonWeeks = 52

const week = 7 * 24 * time.Hour

// Occupied is the set of timestamps already taken by active
// assignments. Keys are Unix seconds so that lookups are independent
// of time.Location and monotonic clock readings.
type Occupied map[int64]struct{}

// NewOccupied builds an occupied set from a list of timestamps
func NewOccupied(times []time.Time) Occupied {
	o := make(Occupied, len(times))
	for _, t := range times {
		o.Add(t)
	}
	return o
}

// Add inserts a timestamp into the set
func (o Occupied) Add(t time.Time) {
	o[t.Unix()] = struct{}{}
}

// Has reports whether a timestamp is already taken
func (o Occupied) Has(t time.Time) bool {
	_, ok := o[t.Unix()]
	return ok
}

// NextFree returns the earliest timestamp strictly after floor that
// matches one of the enabled slots and is not occupied, searching up
// to DefaultHorizonWeeks forward.
func NextFree(slots []entity.PreferredSlot, occupied Occupied, floor time.Time, loc *time.Location) (time.Time, error) {
	return NextFreeWithin(slots, occupied, floor, loc, DefaultHorizonWeeks)
}

// NextFreeWithin is NextFree with an explicit horizon in weeks.
// The horizon bounds each slot's projection: a slot contributes at
// most `weeks` candidate occurrences.
func NextFreeWithin(slots []entity.PreferredSlot, occupied Occupied, floor time.Time, loc *time.Location, weeks int) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if weeks <= 0 {
		weeks = DefaultHorizonWeeks
	}

	// Cursor per enabled slot, positioned at the first occurrence
	// strictly after the floor.
	var cursors []time.Time
	for _, s := range slots {
		if !s.Enabled {
			continue
		}
		cursors = append(cursors, firstOccurrenceAfter(s, floor, loc))
	}
	if len(cursors) == 0 {
		return time.Time{}, entity.ErrNoSlotsConfigured
	}

	limit := floor.Add(time.Duration(weeks) * week)

	// Merge the k periodic sequences: repeatedly take the earliest
	// cursor; identical timestamps from colliding slots are one
	// candidate, so every cursor holding the minimum advances together.
	for {
		min := cursors[0]
		for _, c := range cursors[1:] {
			if c.Before(min) {
				min = c
			}
		}
		if min.After(limit) {
			return time.Time{}, entity.ErrNoAvailableTimeslot
		}

		taken := occupied.Has(min)
		for i, c := range cursors {
			if c.Equal(min) {
				cursors[i] = c.AddDate(0, 0, 7)
			}
		}
		if !taken {
			return min.UTC(), nil
		}
	}
}

// firstOccurrenceAfter computes the slot's first concrete occurrence
// strictly after floor, in the account's local timezone. Wall-clock
// arithmetic (AddDate) keeps the slot's local time stable across DST.
func firstOccurrenceAfter(s entity.PreferredSlot, floor time.Time, loc *time.Location) time.Time {
	f := floor.In(loc)
	cand := time.Date(f.Year(), f.Month(), f.Day(), s.Hour, s.Minute, 0, 0, loc)
	days := (int(s.Weekday) - int(cand.Weekday()) + 7) % 7
	cand = cand.AddDate(0, 0, days)
	if !cand.After(f) {
		cand = cand.AddDate(0, 0, 7)
	}
	return cand
}
