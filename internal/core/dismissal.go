package core

import "slices"

// Dismissals is the set of urgent items a user hid for one calendar day.
// The set expires on its own: on any other day it is empty.
type Dismissals struct {
	Date Date     `json:"date"`
	IDs  []string `json:"dismissedIds"`
}

// On returns the ids dismissed for day, or nil when the set belongs to another day.
func (d Dismissals) On(day Date) []string {
	if d.Date.IsZero() || !d.Date.Equal(day.Time) {
		return nil
	}
	return d.IDs
}

// Contains reports whether id is dismissed on day.
func (d Dismissals) Contains(day Date, id string) bool {
	return slices.Contains(d.On(day), id)
}

// Add returns the set for day with id included. A set from an earlier day
// is discarded rather than extended.
func (d Dismissals) Add(day Date, id string) Dismissals {
	ids := slices.Clone(d.On(day))
	if !slices.Contains(ids, id) {
		ids = append(ids, id)
	}
	return Dismissals{Date: day, IDs: ids}
}
