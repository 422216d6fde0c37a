package jobs

import (
	"math"
	"sort"
	"strings"

	"github.com/anatolykoptev/joblens/internal/engine"
)

// Score weights (sum to 100).
const (
	weightSkills   = 40
	weightInterest = 20
	weightLocation = 15
	weightSalary   = 15
	weightWorkType = 10

	// NeutralScore is the match score of every job when no preferences exist.
	NeutralScore = 50

	// FreshThreshold is the freshness score at or above which a job counts as fresh.
	FreshThreshold = 80
)

// Score computes the 0–100 match between a job and the user's preferences.
func Score(job engine.Job, prefs *engine.Preferences) int {
	if prefs == nil {
		return NeutralScore
	}

	var score float64
	if len(prefs.Skills) > 0 {
		score += weightSkills * skillOverlap(job.Skills, prefs.Skills)
	}
	if prefs.HasInterest(job.Industry) {
		score += weightInterest
	}
	if prefs.Location != "" && locationMatches(job, prefs.Location) {
		score += weightLocation
	}
	if salaryOverlaps(job.Salary, prefs.SalaryRange) {
		score += weightSalary
	}
	if prefs.WorkType != "" && prefs.WorkType == job.WorkType {
		score += weightWorkType
	}
	return int(math.Round(score))
}

// skillOverlap is the fraction of job skills matched by any user skill,
// normalized by the larger list.
func skillOverlap(jobSkills, userSkills []string) float64 {
	denom := max(len(jobSkills), len(userSkills))
	if denom == 0 {
		return 0
	}
	matched := 0
	for _, js := range jobSkills {
		js = strings.ToLower(js)
		for _, us := range userSkills {
			us = strings.ToLower(us)
			if strings.Contains(js, us) || strings.Contains(us, js) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(denom)
}

func locationMatches(job engine.Job, pref string) bool {
	pref = strings.ToLower(pref)
	loc := strings.ToLower(job.Location)
	return strings.Contains(loc, pref) ||
		strings.Contains(pref, loc) ||
		job.WorkType == engine.WorkRemote ||
		pref == "remote" ||
		pref == engine.LocationAnywhere
}

// salaryOverlaps requires both a job salary and a configured range. A zero
// range max is unbounded.
func salaryOverlaps(s *engine.Salary, r engine.SalaryRange) bool {
	if s == nil || (r.Min == 0 && r.Max == 0) {
		return false
	}
	if r.Max == 0 {
		return s.Max >= r.Min
	}
	return !(s.Max < r.Min || s.Min > r.Max)
}

// CombinedScore blends match (70%) and freshness (30%).
func CombinedScore(match, freshness int) float64 {
	return 0.7*float64(match) + 0.3*float64(freshness)
}

// Rank scores every job and orders them by combined score, descending.
// Ties keep input order. The output is a permutation of jobs.
func Rank(jobs []engine.Job, prefs *engine.Preferences) []engine.RankedJob {
	out := make([]engine.RankedJob, len(jobs))
	for i, j := range jobs {
		m := Score(j, prefs)
		out[i] = engine.RankedJob{Job: j, MatchScore: m, CombinedScore: CombinedScore(m, j.FreshnessScore)}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CombinedScore > out[b].CombinedScore
	})
	return out
}

// Summarize reports counts for the results status banner.
func Summarize(jobs []engine.Job, fromCache bool) engine.Summary {
	s := engine.Summary{Total: len(jobs)}
	if fromCache {
		s.Cached = len(jobs)
	} else {
		s.Live = len(jobs)
	}
	for _, j := range jobs {
		if j.FreshnessScore >= FreshThreshold {
			s.Fresh++
		}
	}
	return s
}

// FilterOptions narrows a ranked list. Zero values disable a filter.
type FilterOptions struct {
	Industry engine.Industry
	WorkType engine.WorkType
	MinMatch int
}

// Filter keeps ranked jobs that satisfy every enabled option, preserving order.
func Filter(ranked []engine.RankedJob, opts FilterOptions) []engine.RankedJob {
	out := make([]engine.RankedJob, 0, len(ranked))
	for _, r := range ranked {
		if opts.Industry != "" && r.Industry != opts.Industry {
			continue
		}
		if opts.WorkType != "" && r.WorkType != opts.WorkType {
			continue
		}
		if r.MatchScore < opts.MinMatch {
			continue
		}
		out = append(out, r)
	}
	return out
}
