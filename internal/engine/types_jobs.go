package engine

import (
	"fmt"
	"time"
)

// --- Enums ---

// WorkType is where the work happens.
type WorkType string

const (
	WorkRemote WorkType = "remote"
	WorkHybrid WorkType = "hybrid"
	WorkOnSite WorkType = "on-site"
)

// ParseWorkType converts a raw string to a WorkType.
func ParseWorkType(s string) (WorkType, error) {
	wt := WorkType(s)
	switch wt {
	case WorkRemote, WorkHybrid, WorkOnSite:
		return wt, nil
	}
	return "", fmt.Errorf("unknown work type %q", s)
}

// Industry is one of the fixed JobLens categories.
type Industry string

const (
	IndustryTechnology  Industry = "technology"
	IndustryEngineering Industry = "engineering"
	IndustryHealthcare  Industry = "healthcare"
	IndustryEducation   Industry = "education"
	IndustryFinance     Industry = "finance"
	IndustryMarketing   Industry = "marketing"
	IndustrySales       Industry = "sales"
	IndustryDesign      Industry = "design"
)

// IndustryOption is a value/label pair for filter menus.
type IndustryOption struct {
	Value Industry `json:"value"`
	Label string   `json:"label"`
}

var industryOptions = []IndustryOption{
	{IndustryTechnology, "Technology"},
	{IndustryEngineering, "Engineering"},
	{IndustryHealthcare, "Healthcare"},
	{IndustryEducation, "Education"},
	{IndustryFinance, "Finance"},
	{IndustryMarketing, "Marketing"},
	{IndustrySales, "Sales"},
	{IndustryDesign, "Design"},
}

// Industries returns the category list in display order.
func Industries() []IndustryOption {
	out := make([]IndustryOption, len(industryOptions))
	copy(out, industryOptions)
	return out
}

// ParseIndustry converts a raw string to an Industry.
func ParseIndustry(s string) (Industry, error) {
	for _, o := range industryOptions {
		if string(o.Value) == s {
			return o.Value, nil
		}
	}
	return "", fmt.Errorf("unknown industry %q", s)
}

// --- Job model ---

// Salary is a monthly range in the upstream currency (ZAR for the default country).
type Salary struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Job is one normalized listing. JSON field names match the stored savedJobs shape.
type Job struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	Location       string    `json:"location"`
	Salary         *Salary   `json:"salary"`
	WorkType       WorkType  `json:"workType"`
	Industry       Industry  `json:"industry"`
	Skills         []string  `json:"skills"`
	Description    string    `json:"description"`
	Link           string    `json:"link"`
	Source         string    `json:"source"`
	DatePosted     time.Time `json:"datePosted,omitzero"`
	Freshness      string    `json:"freshness"`
	FreshnessScore int       `json:"freshnessScore"`
}

// --- Preferences ---

// SalaryRange is the user's acceptable monthly salary band.
type SalaryRange struct {
	Min int `json:"min" validate:"gte=0"`
	Max int `json:"max" validate:"omitempty,gte=0,gtefield=Min"`
}

// Preferences is the questionnaire result for one device/profile.
type Preferences struct {
	Skills          []string    `json:"skills" validate:"dive,required"`
	Interests       []Industry  `json:"interests"`
	Location        string      `json:"location"`
	SalaryRange     SalaryRange `json:"salaryRange"`
	WorkType        WorkType    `json:"workType" validate:"omitempty,oneof=remote hybrid on-site"`
	WorkArrangement string      `json:"workArrangement,omitempty" validate:"omitempty,oneof=full-time part-time contract internship any"`
	CompletedAt     time.Time   `json:"completedAt"`
}

// LocationAnywhere is the "no location preference" marker.
const LocationAnywhere = "anywhere"

// HasInterest reports whether ind is one of the user's interests.
func (p *Preferences) HasInterest(ind Industry) bool {
	for _, i := range p.Interests {
		if i == ind {
			return true
		}
	}
	return false
}

// --- Search strategy ---

// SearchParams constrains one upstream query. Zero values mean "unset".
type SearchParams struct {
	What           string `json:"what,omitempty"`
	Where          string `json:"where,omitempty"`
	Page           int    `json:"page,omitempty"`
	ResultsPerPage int    `json:"resultsPerPage,omitempty"`
	SalaryMin      int    `json:"salaryMin,omitempty"`
	SalaryMax      int    `json:"salaryMax,omitempty"`
	Category       string `json:"category,omitempty"`
}

// SearchStrategy is one query variant used to diversify aggregated results.
type SearchStrategy struct {
	Description string       `json:"description"`
	Params      SearchParams `json:"params"`
}

// --- Ranking output ---

// RankedJob is a Job annotated with its scores.
type RankedJob struct {
	Job
	MatchScore    int     `json:"matchScore"`
	CombinedScore float64 `json:"combinedScore"`
}

// Summary feeds the results status banner.
type Summary struct {
	Total  int `json:"total"`
	Live   int `json:"live"`
	Cached int `json:"cached"`
	Fresh  int `json:"fresh"`
}

// --- Alerts ---

// AlertSettings are the dashboard alert toggles.
type AlertSettings struct {
	RemoteDesign bool `json:"remoteDesign"`
	HighMatch    bool `json:"highMatch"`
	Skills       bool `json:"skills"`
}

// AlertMatch is one job that tripped an alert.
type AlertMatch struct {
	Job        Job      `json:"job"`
	MatchScore int      `json:"matchScore"`
	Reasons    []string `json:"reasons"`
}

// --- Tool I/O ---

// JobSearchInput is the input for the job_search tool.
type JobSearchInput struct {
	MaxJobs      int    `json:"max_jobs,omitempty" jsonschema:"Maximum number of unique jobs to aggregate (default 100)"`
	IgnorePrefs  bool   `json:"ignore_preferences,omitempty" jsonschema:"Search without the stored preferences (neutral ranking)"`
	Industry     string `json:"industry,omitempty" jsonschema:"Filter: technology, engineering, healthcare, education, finance, marketing, sales, design"`
	WorkType     string `json:"work_type,omitempty" jsonschema:"Filter: remote, hybrid, on-site"`
	MinMatch     int    `json:"min_match,omitempty" jsonschema:"Filter: minimum match score 0-100"`
	ForceRefresh bool   `json:"force_refresh,omitempty" jsonschema:"Bypass the aggregation cache"`
}

// JobSearchOutput is the structured output for job_search.
type JobSearchOutput struct {
	Jobs     []RankedJob `json:"jobs"`
	Status   Summary     `json:"status"`
	Fallback bool        `json:"fallback"`
	Summary  string      `json:"summary"`
}

// JobIDInput addresses one job by id.
type JobIDInput struct {
	ID string `json:"id" jsonschema:"Job id as returned by job_search"`
}

// SavedJobsOutput lists saved jobs.
type SavedJobsOutput struct {
	Jobs  []Job `json:"jobs"`
	Total int   `json:"total"`
}

// CommandResult acknowledges a write command.
type CommandResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// PreferencesOutput wraps stored preferences; Preferences is nil when none are set.
type PreferencesOutput struct {
	Preferences *Preferences     `json:"preferences"`
	Industries  []IndustryOption `json:"industries"`
}

// AlertsInput updates alert toggles; nil fields are left unchanged.
type AlertsInput struct {
	RemoteDesign *bool `json:"remote_design,omitempty"`
	HighMatch    *bool `json:"high_match,omitempty"`
	Skills       *bool `json:"skills,omitempty"`
}

// AlertsOutput reports alert settings and the last evaluated matches.
type AlertsOutput struct {
	Settings AlertSettings `json:"settings"`
	Matches  []AlertMatch  `json:"matches"`
}

// PreferencesInput is the input for preferences_set.
type PreferencesInput struct {
	Skills          []string `json:"skills,omitempty" jsonschema:"Skills, e.g. python, sql, figma"`
	Interests       []string `json:"interests,omitempty" jsonschema:"Industries of interest: technology, engineering, healthcare, education, finance, marketing, sales, design"`
	Location        string   `json:"location,omitempty" jsonschema:"Preferred city, 'remote' or 'anywhere' (default anywhere)"`
	SalaryMin       int      `json:"salary_min,omitempty" jsonschema:"Minimum acceptable monthly salary"`
	SalaryMax       int      `json:"salary_max,omitempty" jsonschema:"Maximum monthly salary of the band"`
	WorkType        string   `json:"work_type,omitempty" jsonschema:"remote, hybrid or on-site"`
	WorkArrangement string   `json:"work_arrangement,omitempty" jsonschema:"full-time, part-time, contract, internship or any"`
	Clear           bool     `json:"clear,omitempty" jsonschema:"Remove stored preferences instead of saving"`
}

// Preferences converts the tool input into a Preferences value.
func (in PreferencesInput) Preferences() Preferences {
	interests := make([]Industry, 0, len(in.Interests))
	for _, i := range in.Interests {
		interests = append(interests, Industry(i))
	}
	return Preferences{
		Skills:          in.Skills,
		Interests:       interests,
		Location:        in.Location,
		SalaryRange:     SalaryRange{Min: in.SalaryMin, Max: in.SalaryMax},
		WorkType:        WorkType(in.WorkType),
		WorkArrangement: in.WorkArrangement,
	}
}

// SettingInput is the input for setting_set.
type SettingInput struct {
	Key   string `json:"key" jsonschema:"One of: theme, userName, rememberedUsername"`
	Value string `json:"value" jsonschema:"New value"`
}
