package availability

import (
	"slices"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

// GenerateSlots returns every start time t with start <= t < end on a
// duration grid anchored at start. The last slot may run past end.
func GenerateSlots(w TimeWindow, durationMinutes int) []calendar.Clock {
	if w.Empty() || durationMinutes <= 0 {
		return []calendar.Clock{}
	}
	slots := make([]calendar.Clock, 0, (w.End.Minutes()-w.Start.Minutes()+durationMinutes-1)/durationMinutes)
	for t := w.Start; t < w.End; t += calendar.Clock(durationMinutes) {
		slots = append(slots, t)
	}
	return slots
}

// SlotsForDay merges the morning and evening grids in ascending order.
func SlotsForDay(ds DaySchedule, durationMinutes int) []calendar.Clock {
	slots := append(GenerateSlots(ds.Morning, durationMinutes), GenerateSlots(ds.Evening, durationMinutes)...)
	slices.Sort(slots)
	return slices.Compact(slots)
}
