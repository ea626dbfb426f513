package calendar

import "time"

// WeeksCoveringMonth enumerates the distinct ISO weeks intersecting a month,
// in first-seen order. Week and month boundaries rarely align, so a month
// typically spans 4-6 weeks; a week straddling the boundary covers the month
// even if most of its days fall outside it.
func WeeksCoveringMonth(id MonthID, loc *time.Location) ([]WeekID, error) {
	r, err := RangeOfMonthID(id, loc)
	if err != nil {
		return nil, err
	}

	seen := map[WeekID]struct{}{}
	var out []WeekID

	for day := r.Start; day.Before(r.EndExclusive); day = day.AddDate(0, 0, 1) {
		w := WeekIDOf(day, loc)
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}

	return out, nil
}

// Reconcile partitions expected week ids by presence in the persisted set,
// preserving enumeration order in both outputs.
func Reconcile(expected []WeekID, persisted map[WeekID]bool) (included, missing []WeekID) {
	included = make([]WeekID, 0, len(expected))
	missing = make([]WeekID, 0, len(expected))
	for _, w := range expected {
		if persisted[w] {
			included = append(included, w)
		} else {
			missing = append(missing, w)
		}
	}
	return included, missing
}
