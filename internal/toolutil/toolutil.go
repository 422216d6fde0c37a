// Package toolutil provides shared formatting helpers for the MCP tools and the CLI.
package toolutil

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/anatolykoptev/joblens/internal/engine"
)

// CurrencySymbol prefixes formatted salaries.
const CurrencySymbol = "R"

// FormatSalary renders a monthly range, e.g. "R25,000 - R40,000".
func FormatSalary(s *engine.Salary) string {
	if s == nil {
		return "Not specified"
	}
	lo := CurrencySymbol + humanize.Comma(int64(s.Min))
	if s.Max == 0 || s.Max == s.Min {
		return lo
	}
	return lo + " - " + CurrencySymbol + humanize.Comma(int64(s.Max))
}

// StatusLine is the one-line banner shown above results.
func StatusLine(sum engine.Summary, fallback bool) string {
	switch {
	case sum.Total == 0:
		return "No jobs found."
	case fallback:
		return fmt.Sprintf("No connection - showing %d sample jobs.", sum.Total)
	}
	var parts []string
	if sum.Live > 0 {
		parts = append(parts, fmt.Sprintf("%d live", sum.Live))
	}
	if sum.Cached > 0 {
		parts = append(parts, fmt.Sprintf("%d cached", sum.Cached))
	}
	if sum.Fresh > 0 {
		parts = append(parts, fmt.Sprintf("%d fresh", sum.Fresh))
	}
	return fmt.Sprintf("%s found (%s).", pluralJobs(sum.Total), strings.Join(parts, ", "))
}

func pluralJobs(n int) string {
	if n == 1 {
		return "1 job"
	}
	return humanize.Comma(int64(n)) + " jobs"
}

// Label capitalizes an enum value for display ("on-site" → "On-site").
func Label(s string) string { return engine.TitleCase(s) }
