package cycle

import (
	"sort"

	"cycletracker/internal/domain"
)

// Length is the fixed number of days between a marked period day and the
// predicted next one.
const Length = 28

// Marker colours used by the calendar.
const (
	PeriodColor     = "#ff69b4"
	PredictionColor = "#add8e6"
)

// MarkerKind says why a date is highlighted.
type MarkerKind string

const (
	MarkerPeriod    MarkerKind = "period"
	MarkerPredicted MarkerKind = "predicted"
)

// Marker is a calendar overlay for one date.
type Marker struct {
	Date        domain.Date `json:"date"`
	Kind        MarkerKind  `json:"kind"`
	DotColor    string      `json:"dotColor"`
	HasSymptoms bool        `json:"hasSymptoms"`
}

// Predict returns the expected start of the next period after anchor.
func Predict(anchor domain.Date) domain.Date {
	return anchor.AddDays(Length)
}

// Markers returns the overlays for dates in [from, to], in date order. A
// predicted date that is also a period day is shown as predicted. Pass a nil
// next when there is no prediction.
func Markers(log map[domain.Date]domain.DayRecord, next *domain.Date, from, to domain.Date) []Marker {
	inRange := func(d domain.Date) bool {
		return !d.Before(from) && !d.After(to)
	}

	byDate := make(map[domain.Date]Marker)
	for d, rec := range log {
		if !rec.IsPeriodDay || !inRange(d) {
			continue
		}
		byDate[d] = Marker{Date: d, Kind: MarkerPeriod, DotColor: PeriodColor, HasSymptoms: !rec.Symptoms.Empty()}
	}
	if next != nil && inRange(*next) {
		byDate[*next] = Marker{
			Date:        *next,
			Kind:        MarkerPredicted,
			DotColor:    PredictionColor,
			HasSymptoms: !log[*next].Symptoms.Empty(),
		}
	}

	out := make([]Marker, 0, len(byDate))
	for _, m := range byDate {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
