package toolutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anatolykoptev/joblens/internal/engine"
)

func TestFormatSalary(t *testing.T) {
	tests := []struct {
		in   *engine.Salary
		want string
	}{
		{nil, "Not specified"},
		{&engine.Salary{Min: 50000, Max: 75000}, "R50,000 - R75,000"},
		{&engine.Salary{Min: 30000, Max: 30000}, "R30,000"},
		{&engine.Salary{Min: 1200}, "R1,200"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSalary(tt.in))
	}
}

func TestStatusLine(t *testing.T) {
	assert.Equal(t, "No jobs found.", StatusLine(engine.Summary{}, false))
	assert.Equal(t, "No connection - showing 5 sample jobs.", StatusLine(engine.Summary{Total: 5, Live: 5}, true))
	assert.Equal(t, "12 jobs found (12 live, 4 fresh).", StatusLine(engine.Summary{Total: 12, Live: 12, Fresh: 4}, false))
	assert.Equal(t, "1 job found (1 cached).", StatusLine(engine.Summary{Total: 1, Cached: 1}, false))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "On-site", Label("on-site"))
	assert.Equal(t, "", Label(""))
}
