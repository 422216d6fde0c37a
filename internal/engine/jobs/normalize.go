package jobs

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anatolykoptev/joblens/internal/engine"
)

// --- Adzuna API types ---

type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

type adzunaResult struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Created     string  `json:"created"`
	RedirectURL string  `json:"redirect_url"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
	Category struct {
		Label string `json:"label"`
		Tag   string `json:"tag"`
	} `json:"category"`
}

const (
	defaultTitle       = "No title"
	defaultCompany     = "Company not specified"
	defaultLocation    = "South Africa"
	defaultLink        = "#"
	defaultDescription = "No description available"
	sourceAdzuna       = "Adzuna"

	descriptionLimit = 300
)

var saCities = []string{
	"Cape Town", "Johannesburg", "Durban", "Pretoria", "Port Elizabeth",
	"Bloemfontein", "East London", "Pietermaritzburg", "Kimberley", "Polokwane",
}

var categoryIndustries = map[string]engine.Industry{
	"it jobs":                   engine.IndustryTechnology,
	"engineering jobs":          engine.IndustryEngineering,
	"healthcare & nursing jobs": engine.IndustryHealthcare,
	"teaching jobs":             engine.IndustryEducation,
	"sales jobs":                engine.IndustrySales,
	"marketing jobs":            engine.IndustryMarketing,
	"finance jobs":              engine.IndustryFinance,
	"design jobs":               engine.IndustryDesign,
}

// skillVocabulary is matched in order; output preserves this order.
var skillVocabulary = []string{
	"javascript", "python", "java", "react", "angular", "vue", "node.js",
	"sql", "mysql", "postgresql", "mongodb", "aws", "azure", "docker",
	"kubernetes", "git", "html", "css", "typescript", "php", "laravel",
	"django", "flask", "spring", "figma", "sketch", "photoshop",
	"illustrator", "excel", "powerpoint", "project management", "agile",
	"scrum", "marketing", "seo", "social media", "content writing",
}

var defaultSkills = []string{"communication", "teamwork"}

// normalize converts one Adzuna result into a Job. now is the freshness reference.
func normalize(r adzunaResult, now time.Time) engine.Job {
	j := engine.Job{
		ID:          jobID(r),
		Title:       orDefault(strings.TrimSpace(r.Title), defaultTitle),
		Company:     orDefault(strings.TrimSpace(r.Company.DisplayName), defaultCompany),
		Location:    ParseLocation(r.Location.DisplayName),
		Salary:      ParseSalary(r.SalaryMin, r.SalaryMax),
		WorkType:    GuessWorkType(r.Title, r.Description),
		Industry:    MapCategory(r.Category.Label),
		Skills:      ExtractSkills(r.Description),
		Description: CleanDescription(r.Description),
		Link:        orDefault(r.RedirectURL, defaultLink),
		Source:      sourceAdzuna,
	}

	// An unknown posting date stays zero; freshness reports it as recent.
	posted, ok := parseCreated(r.Created)
	if ok {
		j.DatePosted = posted
	}
	j.Freshness, j.FreshnessScore = Freshness(posted, ok, now)
	return j
}

// jobID prefers the upstream id, then a stable id derived from the listing URL.
func jobID(r adzunaResult) string {
	switch {
	case r.ID != "":
		return "adzuna_" + r.ID
	case r.RedirectURL != "":
		return "adzuna_" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(r.RedirectURL)).String()
	default:
		return "adzuna_" + uuid.NewString()
	}
}

func parseCreated(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseLocation maps a raw location to a known city, "Remote", the raw string or the country default.
func ParseLocation(raw string) string {
	lower := strings.ToLower(raw)
	for _, city := range saCities {
		if strings.Contains(lower, strings.ToLower(city)) {
			return city
		}
	}
	if strings.Contains(lower, "remote") {
		return "Remote"
	}
	if s := strings.TrimSpace(raw); s != "" {
		return s
	}
	return defaultLocation
}

// ParseSalary converts annual bounds to a monthly range, estimating a missing bound.
// Returns nil when neither bound is present.
func ParseSalary(annualMin, annualMax float64) *engine.Salary {
	hasMin, hasMax := annualMin > 0, annualMax > 0
	if !hasMin && !hasMax {
		return nil
	}
	minM := int(math.Round(annualMin / 12))
	maxM := int(math.Round(annualMax / 12))
	switch {
	case hasMin && !hasMax:
		maxM = int(math.Round(float64(minM) * 1.5))
	case hasMax && !hasMin:
		minM = int(math.Round(float64(maxM) * 0.7))
	}
	if minM > maxM {
		minM, maxM = maxM, minM
	}
	return &engine.Salary{Min: minM, Max: maxM}
}

// GuessWorkType classifies by keywords in title and description.
func GuessWorkType(title, description string) engine.WorkType {
	text := strings.ToLower(title + " " + description)
	switch {
	case strings.Contains(text, "remote"), strings.Contains(text, "work from home"):
		return engine.WorkRemote
	case strings.Contains(text, "hybrid"), strings.Contains(text, "flexible"):
		return engine.WorkHybrid
	default:
		return engine.WorkOnSite
	}
}

// MapCategory maps an Adzuna category label to an industry; unknown labels are technology.
func MapCategory(label string) engine.Industry {
	if ind, ok := categoryIndustries[strings.ToLower(strings.TrimSpace(label))]; ok {
		return ind
	}
	return engine.IndustryTechnology
}

// ExtractSkills returns the vocabulary entries found in the raw description.
func ExtractSkills(description string) []string {
	text := strings.ToLower(description)
	var found []string
	for _, skill := range skillVocabulary {
		if strings.Contains(text, skill) {
			found = append(found, skill)
		}
	}
	if len(found) == 0 {
		return append([]string(nil), defaultSkills...)
	}
	return found
}

// CleanDescription strips markup, collapses whitespace and caps the length.
func CleanDescription(raw string) string {
	s := engine.CleanHTML(raw)
	if s == "" {
		return defaultDescription
	}
	return engine.TruncateRunes(s, descriptionLimit, "...")
}

// Freshness returns the age label and score of a posting.
// ok=false means the posting date is unknown.
func Freshness(posted time.Time, ok bool, now time.Time) (string, int) {
	if !ok {
		return "Recently posted", 50
	}
	age := now.Sub(posted)
	if age < 0 {
		age = 0
	}
	return freshnessLabel(age), freshnessScore(age)
}

func freshnessLabel(age time.Duration) string {
	hours := int(age.Hours())
	days := hours / 24
	switch {
	case hours < 1:
		return "Posted less than 1 hour ago"
	case hours < 24:
		return fmt.Sprintf("Posted %d %s ago", hours, plural(hours, "hour"))
	case days < 7:
		return fmt.Sprintf("Posted %d %s ago", days, plural(days, "day"))
	case days < 30:
		weeks := days / 7
		return fmt.Sprintf("Posted %d %s ago", weeks, plural(weeks, "week"))
	case days < 365:
		months := days / 30
		return fmt.Sprintf("Posted %d %s ago", months, plural(months, "month"))
	default:
		return "Posted over a year ago"
	}
}

func freshnessScore(age time.Duration) int {
	hours := age.Hours()
	switch {
	case hours < 1:
		return 100
	case hours < 24:
		return 90
	case hours < 72:
		return 80
	case hours < 168:
		return 70
	case hours < 720:
		return 60
	}
	return max(10, 60-int(math.Floor(hours/720))*10)
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
