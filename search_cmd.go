package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/anatolykoptev/joblens/internal/engine"
	"github.com/anatolykoptev/joblens/internal/engine/jobs"
	"github.com/anatolykoptev/joblens/internal/toolutil"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one aggregated search and print the ranked jobs",
	Long:  "Runs the multi-strategy aggregation once with the stored preferences, ranks the results and prints them as a table. Goes through the caching proxy, so it works offline after a previous run.",
	RunE:  runSearch,
}

var (
	searchLimit       int
	searchIgnorePrefs bool
	searchIndustry    string
	searchWorkType    string
	searchMinMatch    int
)

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "Number of ranked jobs to print")
	searchCmd.Flags().BoolVar(&searchIgnorePrefs, "ignore-preferences", false, "Rank without stored preferences")
	searchCmd.Flags().StringVar(&searchIndustry, "industry", "", "Only show jobs in this industry")
	searchCmd.Flags().StringVar(&searchWorkType, "work-type", "", "Only show remote, hybrid or on-site jobs")
	searchCmd.Flags().IntVar(&searchMinMatch, "min-match", 0, "Only show jobs with at least this match score")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := loadConfig()

	var opts jobs.FilterOptions
	if searchIndustry != "" {
		ind, err := engine.ParseIndustry(searchIndustry)
		if err != nil {
			return err
		}
		opts.Industry = ind
	}
	if searchWorkType != "" {
		wt, err := engine.ParseWorkType(searchWorkType)
		if err != nil {
			return err
		}
		opts.WorkType = wt
	}
	opts.MinMatch = searchMinMatch

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var prefs *engine.Preferences
	if !searchIgnorePrefs {
		prefs = a.prefs.Load(ctx)
	}
	res := a.aggregator.Run(ctx, prefs, cfg.MaxJobs)
	ranked := jobs.Filter(jobs.Rank(res.Jobs, prefs), opts)
	if searchLimit > 0 && len(ranked) > searchLimit {
		ranked = ranked[:searchLimit]
	}

	pterm.Info.Println(toolutil.StatusLine(jobs.Summarize(res.Jobs, res.FromCache), res.Fallback))
	if len(ranked) == 0 {
		return nil
	}

	data := pterm.TableData{{"Match", "Title", "Company", "Location", "Salary", "Type", "Posted", "ID"}}
	for _, j := range ranked {
		data = append(data, []string{
			matchColor(j.MatchScore),
			engine.TruncateRunes(j.Title, 40, "…"),
			engine.TruncateRunes(j.Company, 24, "…"),
			j.Location,
			toolutil.FormatSalary(j.Salary),
			toolutil.Label(string(j.WorkType)),
			j.Freshness,
			j.ID,
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}

func matchColor(score int) string {
	s := strconv.Itoa(score) + "%"
	switch {
	case score >= jobs.HighMatchThreshold:
		return pterm.Green(s)
	case score >= jobs.NeutralScore:
		return pterm.Yellow(s)
	default:
		return pterm.Red(s)
	}
}
