package cron

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

const scheduleSeparator = ";"

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ErrInvalidCronSpec is returned when a cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

// ParseSchedules parses one or more standard 5-field cron expressions separated
// by semicolons.
//
// Example:
//
//	"0 2 * * *; 30 14 * * 1-5"
//
// Empty entries (e.g., a trailing semicolon) are ignored. Returns an error if
// no expression remains or any expression is invalid.
func ParseSchedules(spec string) ([]string, error) {
	var exprs []string
	for _, expr := range strings.Split(spec, scheduleSeparator) {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		if _, err := parser.Parse(expr); err != nil {
			return nil, errors.Join(ErrInvalidCronSpec, fmt.Errorf("%q: %w", expr, err))
		}
		exprs = append(exprs, expr)
	}
	if len(exprs) == 0 {
		return nil, fmt.Errorf("%w: no schedules in %q", ErrInvalidCronSpec, spec)
	}
	return exprs, nil
}
