package jobs

import (
	"github.com/anatolykoptev/joblens/internal/engine"
)

// HighMatchThreshold is the match score that trips the high-match alert.
const HighMatchThreshold = 85

// Alert reasons, shown as notifications.
const (
	ReasonRemoteDesign = "New remote design jobs available!"
	ReasonHighMatch    = "New high match jobs (85%+) found!"
	ReasonSkills       = "New jobs matching your skills!"
)

// EvaluateAlerts returns jobs that trip at least one enabled alert, in input order.
// Skill and high-match alerts need preferences.
func EvaluateAlerts(jobs []engine.Job, prefs *engine.Preferences, settings engine.AlertSettings) []engine.AlertMatch {
	var out []engine.AlertMatch
	for _, j := range jobs {
		score := Score(j, prefs)
		var reasons []string
		if settings.RemoteDesign && j.WorkType == engine.WorkRemote && j.Industry == engine.IndustryDesign {
			reasons = append(reasons, ReasonRemoteDesign)
		}
		if settings.HighMatch && prefs != nil && score >= HighMatchThreshold {
			reasons = append(reasons, ReasonHighMatch)
		}
		if settings.Skills && prefs != nil && len(prefs.Skills) > 0 && skillOverlap(j.Skills, prefs.Skills) > 0 {
			reasons = append(reasons, ReasonSkills)
		}
		if len(reasons) > 0 {
			out = append(out, engine.AlertMatch{Job: j, MatchScore: score, Reasons: reasons})
		}
	}
	return out
}
