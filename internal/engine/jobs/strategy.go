package jobs

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/anatolykoptev/joblens/internal/engine"
)

// MaxStrategies bounds upstream calls per aggregation.
const MaxStrategies = 8

// Broad role-category queries for the South African market.
var baseTerms = []string{
	"developer software engineer programmer",
	"manager analyst coordinator",
	"designer creative marketing",
	"sales consultant representative",
	"administrator assistant clerk",
	"technician specialist expert",
	"consultant advisor analyst",
	"executive director manager",
}

var strategyLocations = []string{
	"cape town", "johannesburg", "durban", "pretoria",
	"port elizabeth", "bloemfontein", "remote",
}

// industryKeywords drives per-interest searches; only the first 3 are queried.
var industryKeywords = map[engine.Industry][]string{
	engine.IndustryTechnology:  {"javascript", "python", "java", "react", "angular", "node.js", "php", "c#"},
	engine.IndustryFinance:     {"accounting", "financial", "banking", "investment", "audit"},
	engine.IndustryHealthcare:  {"nurse", "medical", "healthcare", "clinical", "pharmacy"},
	engine.IndustryEducation:   {"teacher", "education", "training", "academic", "tutor"},
	engine.IndustryMarketing:   {"marketing", "digital", "social media", "content", "seo"},
	engine.IndustrySales:       {"sales", "business development", "account manager", "retail"},
	engine.IndustryEngineering: {"engineer", "mechanical", "electrical", "civil", "industrial"},
	engine.IndustryDesign:      {"designer", "graphic", "ui", "ux", "creative", "art"},
}

// highSalaryFloor is an annual amount (R50k+ monthly).
const highSalaryFloor = 600000

// Planner builds diversified strategy lists. Safe for concurrent use.
type Planner struct {
	mu    sync.Mutex
	rng   *rand.Rand
	limit int
}

// NewPlanner returns a planner that shuffles with rng (nil = random seed)
// and keeps at most limit strategies (<= 0 = MaxStrategies).
func NewPlanner(rng *rand.Rand, limit int) *Planner {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if limit <= 0 || limit > MaxStrategies {
		limit = MaxStrategies
	}
	return &Planner{rng: rng, limit: limit}
}

// Candidates returns every strategy in priority order, before shuffling.
// The content depends only on prefs.
func Candidates(prefs *engine.Preferences) []engine.SearchStrategy {
	var out []engine.SearchStrategy

	if prefs != nil {
		if len(prefs.Skills) > 0 {
			where := prefs.Location
			if where == engine.LocationAnywhere {
				where = ""
			}
			out = append(out, engine.SearchStrategy{
				Description: "User skills-based search",
				Params: engine.SearchParams{
					What:           strings.Join(firstN(prefs.Skills, 3), " OR "),
					Where:          where,
					ResultsPerPage: 25,
				},
			})
		}
		for _, interest := range prefs.Interests {
			kw, ok := industryKeywords[interest]
			if !ok {
				continue
			}
			out = append(out, engine.SearchStrategy{
				Description: fmt.Sprintf("%s industry search", interest),
				Params: engine.SearchParams{
					What:           strings.Join(firstN(kw, 3), " OR "),
					ResultsPerPage: 15,
				},
			})
		}
	}

	for _, term := range baseTerms {
		out = append(out, engine.SearchStrategy{
			Description: "General search: " + term,
			Params:      engine.SearchParams{What: term, ResultsPerPage: 15},
		})
	}
	for _, loc := range strategyLocations {
		out = append(out, engine.SearchStrategy{
			Description: "Location search: " + loc,
			Params:      engine.SearchParams{Where: loc, ResultsPerPage: 12},
		})
	}
	out = append(out,
		engine.SearchStrategy{
			Description: "High-paying positions",
			Params:      engine.SearchParams{SalaryMin: highSalaryFloor, ResultsPerPage: 20},
		},
		engine.SearchStrategy{
			Description: "Remote work opportunities",
			Params:      engine.SearchParams{What: "remote work from home", ResultsPerPage: 20},
		},
	)
	return out
}

// Plan shuffles the candidates for prefs and keeps the first limit of them.
func (p *Planner) Plan(prefs *engine.Preferences) []engine.SearchStrategy {
	all := Candidates(prefs)

	p.mu.Lock()
	p.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	p.mu.Unlock()

	if len(all) > p.limit {
		all = all[:p.limit]
	}
	return all
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
