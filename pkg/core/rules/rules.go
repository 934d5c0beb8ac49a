package rules

import (
	"github.com/jakechorley/nurse-duty/pkg/core/model"
)

// Criterion is a scheduling rule checked against one nurse's month
type Criterion interface {
	// Name returns a human-readable identifier for this criterion
	Name() string

	// ValidateRow returns the violations found in row
	ValidateRow(row model.NurseRow) []model.RuleViolation
}

// Limits configures the default criteria set
type Limits struct {
	MaxNightShifts     int
	MaxConsecutiveWork int
	MinOffDays         int
}

// DefaultLimits are used when no limits are configured
var DefaultLimits = Limits{
	MaxNightShifts:     7,
	MaxConsecutiveWork: 5,
	MinOffDays:         8,
}

// Defaults builds the standard criteria set from limits. Zero limits disable their criterion.
func Defaults(limits Limits) []Criterion {
	criteria := []Criterion{NewNightRestCriterion()}
	if limits.MaxNightShifts > 0 {
		criteria = append(criteria, NewMaxNightShiftsCriterion(limits.MaxNightShifts))
	}
	if limits.MaxConsecutiveWork > 0 {
		criteria = append(criteria, NewMaxConsecutiveWorkCriterion(limits.MaxConsecutiveWork))
	}
	if limits.MinOffDays > 0 {
		criteria = append(criteria, NewMinOffDaysCriterion(limits.MinOffDays))
	}
	return criteria
}

// Validate runs every criterion over every row. Results are grouped by row in grid order.
func Validate(grid model.RosterGrid, criteria []Criterion) []model.RuleViolation {
	violations := []model.RuleViolation{}
	for _, row := range grid.Rows {
		for _, c := range criteria {
			violations = append(violations, c.ValidateRow(row)...)
		}
	}
	return violations
}

func violation(row model.NurseRow, start, end int, message string) model.RuleViolation {
	v := model.RuleViolation{
		Name:      row.Name,
		MemberID:  row.MemberID,
		StartDate: start,
		Message:   message,
	}
	if end > start {
		v.EndDate = end
	}
	return v
}
