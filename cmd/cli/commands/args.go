package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jakechorley/nurse-duty/pkg/core/model"
)

// assignment is one "<day>=<code>" argument of the edit command
type assignment struct {
	Day  int
	Code model.ShiftCode
}

func parsePeriod(yearArg, monthArg string) (int, int, error) {
	year, err := strconv.Atoi(yearArg)
	if err != nil || year < 1900 {
		return 0, 0, fmt.Errorf("year must be a number from 1900, got %q", yearArg)
	}
	month, err := strconv.Atoi(monthArg)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("month must be between 1 and 12, got %q", monthArg)
	}
	return year, month, nil
}

func parseAssignments(args []string) ([]assignment, error) {
	out := make([]assignment, 0, len(args))
	for _, arg := range args {
		dayArg, codeArg, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected <day>=<code>, got %q", arg)
		}
		day, err := strconv.Atoi(dayArg)
		if err != nil || day < 1 {
			return nil, fmt.Errorf("invalid day in %q", arg)
		}
		code, err := model.ParseShiftCode(codeArg)
		if err != nil {
			return nil, fmt.Errorf("invalid code in %q: %w", arg, err)
		}
		out = append(out, assignment{Day: day, Code: code})
	}
	return out, nil
}
