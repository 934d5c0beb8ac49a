package rules

import (
	"fmt"

	"github.com/jakechorley/nurse-duty/pkg/core/model"
)

// MaxNightShiftsCriterion limits the number of night shifts in a month.
// The violation spans from the first night over the limit to the last night.
type MaxNightShiftsCriterion struct {
	limit int
}

func NewMaxNightShiftsCriterion(limit int) *MaxNightShiftsCriterion {
	return &MaxNightShiftsCriterion{limit: limit}
}

func (c *MaxNightShiftsCriterion) Name() string {
	return "MaxNightShifts"
}

func (c *MaxNightShiftsCriterion) ValidateRow(row model.NurseRow) []model.RuleViolation {
	count, first, last := 0, 0, 0
	for i, s := range row.Shifts {
		if s != model.ShiftNight {
			continue
		}
		count++
		if count == c.limit+1 {
			first = i + 1
		}
		last = i + 1
	}
	if count <= c.limit {
		return nil
	}
	return []model.RuleViolation{
		violation(row, first, last, fmt.Sprintf("%d night shifts, limit is %d", count, c.limit)),
	}
}

// NightRestCriterion requires a rest day after a night shift. Any working shift on the
// day after a night is a violation covering both days.
type NightRestCriterion struct{}

func NewNightRestCriterion() *NightRestCriterion {
	return &NightRestCriterion{}
}

func (c *NightRestCriterion) Name() string {
	return "NightRest"
}

func (c *NightRestCriterion) ValidateRow(row model.NurseRow) []model.RuleViolation {
	var out []model.RuleViolation
	for i := 0; i+1 < len(row.Shifts); i++ {
		next := row.Shifts[i+1]
		if row.Shifts[i] == model.ShiftNight && next.IsWork() && next != model.ShiftNight {
			out = append(out, violation(row, i+1, i+2, fmt.Sprintf("%s shift straight after a night", next)))
		}
	}
	return out
}

// MaxConsecutiveWorkCriterion limits runs of working days. Each run longer than the limit
// is one violation spanning the run.
type MaxConsecutiveWorkCriterion struct {
	limit int
}

func NewMaxConsecutiveWorkCriterion(limit int) *MaxConsecutiveWorkCriterion {
	return &MaxConsecutiveWorkCriterion{limit: limit}
}

func (c *MaxConsecutiveWorkCriterion) Name() string {
	return "MaxConsecutiveWork"
}

func (c *MaxConsecutiveWorkCriterion) ValidateRow(row model.NurseRow) []model.RuleViolation {
	var out []model.RuleViolation
	start := -1
	check := func(end int) {
		if start < 0 {
			return
		}
		if n := end - start; n > c.limit {
			out = append(out, violation(row, start+1, end, fmt.Sprintf("%d working days in a row, limit is %d", n, c.limit)))
		}
		start = -1
	}
	for i, s := range row.Shifts {
		if s.IsWork() {
			if start < 0 {
				start = i
			}
			continue
		}
		check(i)
	}
	check(len(row.Shifts))
	return out
}

// MinOffDaysCriterion requires a minimum number of days off in the month.
// Rows that have not been scheduled at all are skipped.
type MinOffDaysCriterion struct {
	minDays int
}

func NewMinOffDaysCriterion(minDays int) *MinOffDaysCriterion {
	return &MinOffDaysCriterion{minDays: minDays}
}

func (c *MinOffDaysCriterion) Name() string {
	return "MinOffDays"
}

func (c *MinOffDaysCriterion) ValidateRow(row model.NurseRow) []model.RuleViolation {
	off, scheduled := 0, false
	for _, s := range row.Shifts {
		if s == model.ShiftOff {
			off++
		}
		if s != model.ShiftUnset {
			scheduled = true
		}
	}
	if !scheduled || off >= c.minDays {
		return nil
	}
	return []model.RuleViolation{
		violation(row, 1, len(row.Shifts), fmt.Sprintf("%d days off, at least %d required", off, c.minDays)),
	}
}
