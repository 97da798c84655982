package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/internal/scheduler"
)

// timetableFile is the document generate writes and validate-move reads.
type timetableFile struct {
	Catalog  models.Catalog           `json:"catalog"`
	Options  models.GenerationOptions `json:"options"`
	Schedule models.Schedule          `json:"schedule"`
	Report   scheduler.Report         `json:"report"`
	Makeup   []scheduler.MakeupPlan   `json:"makeup,omitempty"`
}

func generateCmd() *cobra.Command {
	var (
		flags       semesterFlags
		out         string
		maxPerWeek  int
		avoidMonday bool
		departments []string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a semester timetable",
		Long:  "Runs the fixed, combo, pair and leftover phases and writes the result as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := scheduler.LoadCatalog(flags.catalogPath)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}
			rules, err := flags.rules()
			if err != nil {
				return fmt.Errorf("failed to load rules: %w", err)
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			for _, r := range rules.Reviewable() {
				app.logger.Info("rule flagged for review", zap.String("rule", r.ID), zap.String("teacher", r.TeacherID), zap.String("note", r.Note))
			}
			for _, s := range catalog.Subjects {
				if first, second, ok := models.SplitCombinedSubject(s.Name); ok {
					app.logger.Warn("subject combines two numbered subjects", zap.String("subject", s.ID), zap.String("split", first+" / "+second))
				}
			}
			opts.MaxPerWeek = maxPerWeek
			opts.AvoidMonday = avoidMonday
			opts.Departments = departments

			app.logger.Debug("generate command",
				zap.String("catalog", flags.catalogPath),
				zap.String("start", opts.StartDate),
				zap.String("end", opts.EndDate),
			)
			allocator := scheduler.NewAllocator(
				scheduler.WithRules(rules),
				scheduler.WithTracer(scheduler.NewZapTracer(app.logger)),
				scheduler.WithLogger(app.logger),
			)
			result, err := allocator.Generate(app.ctx, catalog, opts)
			if err != nil {
				return fmt.Errorf("generation failed: %w", err)
			}

			printReport(cmd.ErrOrStderr(), result.Report)
			doc := timetableFile{Catalog: catalog, Options: opts, Schedule: result.Schedule, Report: result.Report, Makeup: result.Makeup}
			return writeJSON(cmd.OutOrStdout(), out, doc)
		},
	}
	flags.register(cmd, true)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the timetable JSON to this file instead of stdout")
	cmd.Flags().IntVar(&maxPerWeek, "max-per-week", 2, "Weekly session cap per subject and group")
	cmd.Flags().BoolVar(&avoidMonday, "avoid-monday", false, "Leave Mondays empty where possible")
	cmd.Flags().StringSliceVar(&departments, "department", nil, "Restrict to departments (repeatable)")
	return cmd
}

func holidaysCmd() *cobra.Command {
	var flags semesterFlags
	cmd := &cobra.Command{
		Use:   "holidays",
		Short: "List national holidays and school breaks in a range",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := flags.resolver()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tTYPE\tNAME")
			for _, h := range resolver.Holidays(flags.start, flags.end) {
				fmt.Fprintf(w, "%s\t%s\t%s\n", h.Date, h.Type, h.Name)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&flags.start, "start", "", "Range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flags.end, "end", "", "Range end (YYYY-MM-DD)")
	cmd.Flags().StringArrayVar(&flags.breaks, "break", nil, "School break, e.g. 2025-12-29..2026-01-03=年末年始 (repeatable)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func rankCmd() *cobra.Command {
	var flags semesterFlags
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Show teachers in placement priority order",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := scheduler.LoadCatalog(flags.catalogPath)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}
			rules, err := flags.rules()
			if err != nil {
				return fmt.Errorf("failed to load rules: %w", err)
			}
			sem, err := flags.semester()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "PRIORITY\tTEACHER\tNAME\tFIXED")
			for _, r := range scheduler.Rank(catalog.Teachers, rules, sem) {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", r.Priority, r.Teacher.ID, r.Teacher.Name, len(r.FixedSchedule))
			}
			return w.Flush()
		},
	}
	flags.register(cmd, true)
	return cmd
}

func makeupCmd() *cobra.Command {
	var flags semesterFlags
	cmd := &cobra.Command{
		Use:   "makeup",
		Short: "Plan makeup lessons owed by teachers",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := scheduler.LoadCatalog(flags.catalogPath)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}
			rules, err := flags.rules()
			if err != nil {
				return fmt.Errorf("failed to load rules: %w", err)
			}
			sem, err := flags.semester()
			if err != nil {
				return err
			}
			resolver, err := flags.resolver()
			if err != nil {
				return err
			}
			plans := scheduler.PlanAllMakeup(rules, catalog.Teachers, sem, resolver.Set(flags.start, flags.end))
			if len(plans) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No makeup lessons owed.")
				return nil
			}
			for _, p := range plans {
				status := "complete"
				if !p.IsComplete {
					status = "SHORT"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %d/%d min, %s\n", p.TeacherID, p.RuleID, p.TotalMinutes, p.RequiredMinutes, status)
				for _, s := range p.Sessions {
					fmt.Fprintf(cmd.OutOrStdout(), "  %+v\n", s)
				}
			}
			return nil
		},
	}
	flags.register(cmd, true)
	return cmd
}

func validateMoveCmd() *cobra.Command {
	var (
		rulesPath string
		in        string
		out       string
		entryID   string
		week      int
		day       string
		period    int
		apply     bool
	)
	cmd := &cobra.Command{
		Use:   "validate-move",
		Short: "Check moving one entry of a generated timetable",
		Long:  "Judges a drag-and-drop move against a timetable file written by generate. With --apply the moved timetable is written out.",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readTimetable(in)
			if err != nil {
				return err
			}
			weekday, ok := models.ParseWeekday(day)
			if !ok {
				return fmt.Errorf("unknown day %q", day)
			}
			rules := scheduler.NewRuleBook(models.RuleTable{})
			if rulesPath != "" {
				if rules, err = scheduler.LoadRules(rulesPath); err != nil {
					return fmt.Errorf("failed to load rules: %w", err)
				}
			}

			validator := scheduler.NewValidator(rules)
			state := scheduler.MoveState{Schedule: doc.Schedule, Catalog: doc.Catalog, Options: doc.Options}
			target := scheduler.MoveTarget{Week: week, Weekday: weekday, Period: models.Period(period)}
			next, result := validator.ApplyMove(state, entryID, target)

			if !result.Valid {
				fmt.Fprintf(cmd.OutOrStdout(), "rejected [%s]: %s\n", result.Code, result.Reason)
				return fmt.Errorf("move rejected")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s -> %s (moves %s)\n", entryID, result.Target.Key(), strings.Join(result.Moved, ", "))
			if !apply {
				return nil
			}
			doc.Schedule = next
			doc.Report.Combos = scheduler.CheckCombos(next, doc.Catalog.Subjects)
			doc.Report.Conflicts = scheduler.AuditConflicts(next)
			return writeJSON(cmd.OutOrStdout(), out, doc)
		},
	}
	cmd.Flags().StringVarP(&in, "timetable", "t", "", "Timetable JSON written by generate")
	cmd.Flags().StringVarP(&rulesPath, "rules", "r", "configs/rules.example.yaml", "Rule table file")
	cmd.Flags().StringVar(&entryID, "entry", "", "Entry id to move")
	cmd.Flags().IntVar(&week, "week", 0, "Target semester week")
	cmd.Flags().StringVar(&day, "day", "", "Target weekday (月..金 or monday..friday)")
	cmd.Flags().IntVar(&period, "period", 0, "Target period (1-4)")
	cmd.Flags().BoolVar(&apply, "apply", false, "Write the moved timetable")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file for --apply (default stdout)")
	for _, name := range []string{"timetable", "entry", "week", "day", "period"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func printReport(w io.Writer, report scheduler.Report) {
	fmt.Fprintf(w, "placed %d/%d sessions (%.1f%%)\n", report.Placed, report.Required, report.Completion)
	for _, s := range report.Subjects {
		if s.Placed >= s.Required {
			continue
		}
		fmt.Fprintf(w, "  short: %s %s %d/%d", s.GroupID, s.Name, s.Placed, s.Required)
		if s.Failure != nil {
			fmt.Fprintf(w, " (%s)", s.Failure.Reason)
		}
		fmt.Fprintln(w)
	}
	if report.Combos.Incorrect > 0 {
		fmt.Fprintf(w, "  combo mismatches: %d of %d pairs\n", report.Combos.Incorrect, report.Combos.TotalPairs)
	}
	if len(report.Conflicts) > 0 {
		fmt.Fprintf(w, "  conflicts: %d\n", len(report.Conflicts))
	}
}

func readTimetable(path string) (timetableFile, error) {
	var doc timetableFile
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("failed to read timetable: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to decode timetable: %w", err)
	}
	return doc, nil
}

// writeJSON writes doc to path, or to stdout when path is empty.
func writeJSON(stdout io.Writer, path string, doc interface{}) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		_, err = stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}
