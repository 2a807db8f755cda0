package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/export"
	"example.com/fittracker/internal/filter"
	"example.com/fittracker/internal/stats"
	"example.com/fittracker/internal/tracker"
)

func newLoginCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Start a session and load its stored workouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			signup, _ := cmd.Flags().GetBool("signup")

			start := a.tracker.Login
			if signup {
				start = a.tracker.Signup
			}
			user, err := start(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			workouts, _ := a.tracker.Workouts()
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%d workouts)\n", user.Email, len(workouts))
			return nil
		},
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password (not checked)")
	cmd.Flags().Bool("signup", false, "start with an empty history")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.tracker.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a workout",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			typ, _ := cmd.Flags().GetString("type")
			duration, _ := cmd.Flags().GetInt("duration")
			calories, _ := cmd.Flags().GetInt("calories")
			dateFlag, _ := cmd.Flags().GetString("date")

			category, err := domain.ParseCategory(typ)
			if err != nil {
				return err
			}
			date := a.today()
			if dateFlag != "" {
				if date, err = a.parseDay(dateFlag); err != nil {
					return err
				}
			}

			w, err := a.tracker.Add(cmd.Context(), tracker.NewWorkout{
				Type:     category,
				Duration: duration,
				Calories: calories,
				Date:     stats.StartOfDay(date),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s\n", w.Type, w.ID)
			return nil
		},
	}
	cmd.Flags().String("type", "", "workout type")
	cmd.Flags().Int("duration", 0, "duration in minutes")
	cmd.Flags().Int("calories", 0, "calories burned")
	cmd.Flags().String("date", "", "workout day, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workouts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			criteria, err := a.criteriaFromFlags(cmd)
			if err != nil {
				return err
			}
			if err := a.tracker.SetFilters(criteria); err != nil {
				return err
			}
			visible, err := a.tracker.Visible()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tTYPE\tDURATION\tCALORIES\tID")
			for _, w := range visible {
				fmt.Fprintf(tw, "%s\t%s\t%d min\t%d\t%s\n", w.Date.In(a.cfg.Location()).Format("2006-01-02"), w.Type, w.Duration, w.Calories, w.ID)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(visible) == 0 {
				if criteria.Empty() {
					fmt.Fprintln(cmd.OutOrStdout(), "No workouts yet")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No workouts match the filters")
				}
			}
			return nil
		},
	}
	cmd.Flags().String("search", "", "case-insensitive type search")
	cmd.Flags().String("type", "", "exact workout type")
	cmd.Flags().String("from", "", "first day, YYYY-MM-DD")
	cmd.Flags().String("to", "", "last day, YYYY-MM-DD (default --from)")
	return cmd
}

func (a *app) criteriaFromFlags(cmd *cobra.Command) (filter.Criteria, error) {
	search, _ := cmd.Flags().GetString("search")
	typ, _ := cmd.Flags().GetString("type")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	c := filter.Criteria{Search: search}
	if typ != "" {
		if category, err := domain.ParseCategory(typ); err == nil {
			c.Type = category
		} else {
			c.Type = domain.Category(typ)
		}
	}
	if from == "" && to != "" {
		return filter.Criteria{}, fmt.Errorf("--to requires --from")
	}
	if from != "" {
		start, err := a.parseDay(from)
		if err != nil {
			return filter.Criteria{}, err
		}
		c.Range = &filter.DateRange{From: start}
		if to != "" {
			if c.Range.To, err = a.parseDay(to); err != nil {
				return filter.Criteria{}, err
			}
		}
	}
	return c, c.Validate()
}

func newStatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show totals for the week and month containing a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			anchor := a.today()
			if raw, _ := cmd.Flags().GetString("date"); raw != "" {
				var err error
				if anchor, err = a.parseDay(raw); err != nil {
					return err
				}
			}
			workouts, err := a.tracker.Workouts()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			all := stats.TotalsFor(workouts, nil)
			fmt.Fprintf(out, "All time: %d workouts, %d min, %d kcal\n", all.Count, all.TotalDuration, all.TotalCalories)

			week := stats.WeekOf(anchor)
			wt := stats.TotalsFor(workouts, stats.InWindow(week))
			fmt.Fprintf(out, "\nWeek of %s: %d workouts, %d min, %d kcal\n", week.Start.Format("2006-01-02"), wt.Count, wt.TotalDuration, wt.TotalCalories)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, b := range stats.BucketByDay(workouts, week.Start, week.End) {
				fmt.Fprintf(tw, "  %s\t%d min\t%d kcal\n", b.Label, b.Duration, b.Calories)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			month := stats.MonthOf(anchor)
			mt := stats.TotalsFor(workouts, stats.InWindow(month))
			fmt.Fprintf(out, "\n%s: %d workouts, %d min, %d kcal\n", month.Start.Format("January 2006"), mt.Count, mt.TotalDuration, mt.TotalCalories)
			tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, b := range stats.BucketByWeek(workouts, month.Start, month.End) {
				fmt.Fprintf(tw, "  %s\t%d kcal\n", b.Label, b.Calories)
			}
			inMonth := stats.InWindow(month)
			monthly := make([]domain.Workout, 0, len(workouts))
			for _, w := range workouts {
				if inMonth(w) {
					monthly = append(monthly, w)
				}
			}
			for _, tc := range stats.SortedDistribution(stats.TypeDistribution(monthly)) {
				fmt.Fprintf(tw, "  %s\t%d\n", tc.Type, tc.Count)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("date", "", "anchor day, YYYY-MM-DD (default today)")
	return cmd
}

func newGoalsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "goals",
		Short: "Show progress toward this week's goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			workouts, err := a.tracker.Workouts()
			if err != nil {
				return err
			}
			week := stats.WeekOf(a.today())
			goals := a.goals.Evaluate(stats.TotalsFor(workouts, stats.InWindow(week)))

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GOAL\tCURRENT\tTARGET\tPROGRESS\tSTATUS")
			for _, row := range []struct {
				name string
				p    stats.Progress
			}{
				{"Workouts", goals.Workouts},
				{"Duration (min)", goals.Duration},
				{"Calories", goals.Calories},
			} {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d%%\t%s\n", row.name, row.p.Current, row.p.Target, row.p.Rounded, row.p.Level)
			}
			return tw.Flush()
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the workout history as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("out")
			bucket, _ := cmd.Flags().GetString("s3-bucket")
			if bucket == "" {
				bucket = a.cfg.Export.S3Bucket
			}

			workouts, err := a.tracker.Workouts()
			if err != nil {
				return err
			}
			name := export.FileName(a.now().UTC())
			body := []byte(export.CSV(workouts))

			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d workouts to %s\n", len(workouts), path)

			if bucket == "" {
				return nil
			}
			uploader, err := export.NewS3Uploader(cmd.Context(), bucket, a.cfg.Export.S3Prefix, a.cfg.Export.AWSRegion)
			if err != nil {
				return err
			}
			key, err := uploader.Upload(cmd.Context(), name, body)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded s3://%s/%s\n", bucket, key)
			return nil
		},
	}
	cmd.Flags().String("out", ".", "directory for the CSV file")
	cmd.Flags().String("s3-bucket", "", "also upload to this S3 bucket")
	return cmd
}
