package jobs

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/anatolykoptev/joblens/internal/engine"
)

//go:embed fallback_jobs.json
var embeddedFallback []byte

// LoadFallback returns the static dataset served when every strategy comes back empty.
// A readable, non-empty JSON file at path wins; otherwise the embedded sample is used.
func LoadFallback(path string) []engine.Job {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("fallback: read failed, using embedded sample", slog.String("path", path), slog.Any("error", err))
		} else if jobs, err := decodeJobs(data); err != nil {
			slog.Warn("fallback: malformed file, using embedded sample", slog.String("path", path), slog.Any("error", err))
		} else if len(jobs) > 0 {
			return jobs
		}
	}
	jobs, err := decodeJobs(embeddedFallback)
	if err != nil {
		// Embedded data is compiled in; a decode failure is a build defect.
		panic("fallback: embedded sample: " + err.Error())
	}
	return jobs
}

func decodeJobs(data []byte) ([]engine.Job, error) {
	var jobs []engine.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}
