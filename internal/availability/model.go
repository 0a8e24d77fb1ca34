package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

const DefaultSlotDurationMinutes = 15

var ErrNotConfigured = errors.New("availability not configured")

type Day string

const (
	Monday    Day = "monday"
	Tuesday   Day = "tuesday"
	Wednesday Day = "wednesday"
	Thursday  Day = "thursday"
	Friday    Day = "friday"
	Saturday  Day = "saturday"
	Sunday    Day = "sunday"
)

// Week lists the days in the order schedules are stored and returned.
var Week = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func DayOf(date time.Time) Day {
	return Day(strings.ToLower(date.Weekday().String()))
}

type TimeWindow struct {
	Start calendar.Clock `json:"start"`
	End   calendar.Clock `json:"end"`
	IsOff bool           `json:"is_off"`
}

// Empty is true for windows that can never produce a slot.
func (w TimeWindow) Empty() bool {
	return w.IsOff || w.Start >= w.End
}

type DaySchedule struct {
	Day     Day        `json:"day"`
	Morning TimeWindow `json:"morning"`
	Evening TimeWindow `json:"evening"`
}

type WeeklyAvailability struct {
	Days []DaySchedule `json:"days"`
}

func (w WeeklyAvailability) For(day Day) (DaySchedule, bool) {
	for _, ds := range w.Days {
		if ds.Day == day {
			return ds, true
		}
	}
	return DaySchedule{}, false
}

// Schedule is what the practitioner profile stores for scheduling. A nil
// Weekly means availability was never saved.
type Schedule struct {
	Weekly              *WeeklyAvailability `json:"weekly"`
	SlotDurationMinutes int                 `json:"slot_duration_minutes"`
}

// Validate checks the weekly schedule against a slot duration and returns it
// with days in Monday..Sunday order.
func Validate(w WeeklyAvailability, slotDurationMinutes int) (WeeklyAvailability, error) {
	if slotDurationMinutes <= 0 {
		return WeeklyAvailability{}, calendar.Invalid("slot_duration_minutes", "must be positive")
	}
	if len(w.Days) != len(Week) {
		return WeeklyAvailability{}, calendar.Invalid("days", fmt.Sprintf("expected %d days, got %d", len(Week), len(w.Days)))
	}

	byDay := make(map[Day]DaySchedule, len(Week))
	for _, ds := range w.Days {
		day := Day(strings.ToLower(string(ds.Day)))
		if _, dup := byDay[day]; dup {
			return WeeklyAvailability{}, calendar.Invalid("days", fmt.Sprintf("%s listed twice", day))
		}
		ds.Day = day
		byDay[day] = ds
	}

	out := WeeklyAvailability{Days: make([]DaySchedule, 0, len(Week))}
	for _, day := range Week {
		ds, ok := byDay[day]
		if !ok {
			return WeeklyAvailability{}, calendar.Invalid("days", fmt.Sprintf("%s missing", day))
		}
		if err := validateWindow(string(day)+".morning", ds.Morning, slotDurationMinutes); err != nil {
			return WeeklyAvailability{}, err
		}
		if err := validateWindow(string(day)+".evening", ds.Evening, slotDurationMinutes); err != nil {
			return WeeklyAvailability{}, err
		}
		out.Days = append(out.Days, ds)
	}
	return out, nil
}

func validateWindow(field string, w TimeWindow, step int) error {
	if w.IsOff {
		return nil
	}
	if !w.Start.Valid() || !w.End.Valid() {
		return calendar.Invalid(field, "time out of range")
	}
	if w.Start >= w.End {
		return calendar.Invalid(field, fmt.Sprintf("start %s must be before end %s", w.Start, w.End))
	}
	if w.Start.Minutes()%step != 0 || w.End.Minutes()%step != 0 {
		return calendar.Invalid(field, fmt.Sprintf("bounds must be multiples of %d minutes", step))
	}
	return nil
}
