package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/internal/scheduler"
	"github.com/noah-isme/college-timetable-api/pkg/holiday"
	"github.com/noah-isme/college-timetable-api/pkg/logger"
)

// App holds what every subcommand needs.
type App struct {
	logger *zap.Logger
	ctx    context.Context
}

// semesterFlags are shared by commands that work on a semester.
type semesterFlags struct {
	catalogPath string
	rulesPath   string
	start       string
	end         string
	breaks      []string
}

var (
	verbose bool
	app     *App
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "timetable-cli",
		Short:         "Generate and inspect college timetables offline",
		Long:          `Runs the timetable allocator against catalog and rule files without a database.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app = &App{
				logger: logger.NewConsole(cmd.ErrOrStderr(), verbose),
				ctx:    cmd.Context(),
			}
			if app.ctx == nil {
				app.ctx = context.Background()
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.logger != nil {
				_ = app.logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log allocator decisions")

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(holidaysCmd())
	rootCmd.AddCommand(rankCmd())
	rootCmd.AddCommand(makeupCmd())
	rootCmd.AddCommand(validateMoveCmd())
	return rootCmd
}

func (f *semesterFlags) register(cmd *cobra.Command, needCatalog bool) {
	if needCatalog {
		cmd.Flags().StringVarP(&f.catalogPath, "catalog", "c", "configs/catalog.example.yaml", "Catalog file (YAML or JSON)")
	}
	cmd.Flags().StringVarP(&f.rulesPath, "rules", "r", "configs/rules.example.yaml", "Rule table file")
	cmd.Flags().StringVar(&f.start, "start", "", "Semester start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "Semester end date (YYYY-MM-DD)")
	cmd.Flags().StringArrayVar(&f.breaks, "break", nil, "School break, e.g. 2025-12-29..2026-01-03=年末年始 (repeatable)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
}

func (f *semesterFlags) semester() (scheduler.Semester, error) {
	return scheduler.NewSemester(f.start, f.end)
}

func (f *semesterFlags) rules() (*scheduler.RuleBook, error) {
	if f.rulesPath == "" {
		return scheduler.NewRuleBook(models.RuleTable{}), nil
	}
	return scheduler.LoadRules(f.rulesPath)
}

func (f *semesterFlags) resolver() (*holiday.Resolver, error) {
	breaks, err := holiday.ParseBreaks(f.breaks)
	if err != nil {
		return nil, err
	}
	return holiday.NewResolver(breaks...), nil
}

// options builds generation options with configured breaks folded in.
func (f *semesterFlags) options() (models.GenerationOptions, error) {
	resolver, err := f.resolver()
	if err != nil {
		return models.GenerationOptions{}, err
	}
	return models.GenerationOptions{
		StartDate: f.start,
		EndDate:   f.end,
		Holidays:  resolver.Dates(f.start, f.end),
	}, nil
}
