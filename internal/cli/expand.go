package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	"github.com/noah-isme/tutoring-scheduler-api/internal/service"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/timezone"
)

// ExpandOptions holds flags for the expand command.
type ExpandOptions struct {
	*RootOptions
	Start     string
	Timezone  string
	Frequency string
	Interval  int
	Days      string
	Until     string
	Count     int
	Cap       int
}

// ExpandedOccurrence is one line of expand output.
type ExpandedOccurrence struct {
	Index int       `json:"index"`
	Local string    `json:"local"`
	UTC   time.Time `json:"utc"`
}

// NewExpandCommand creates the expand command.
func NewExpandCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExpandOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Preview the occurrences of a recurring series",
		Long: `Expand a recurrence pattern offline without touching the database.

Example:
  tutoring-scheduler expand --start 2024-03-04T10:00 --tz America/New_York \
      --frequency weekly --days mon,wed --until 2024-03-31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			occurrences, err := expandSeries(opts)
			if err != nil {
				return err
			}
			return writeOccurrences(cmd.OutOrStdout(), opts.Format, occurrences)
		},
	}

	cmd.Flags().StringVar(&opts.Start, "start", "", "seed wall-clock start, e.g. 2024-03-04T10:00 (required)")
	cmd.Flags().StringVar(&opts.Timezone, "tz", "", "IANA timezone of the seed (required)")
	cmd.Flags().StringVar(&opts.Frequency, "frequency", string(models.FrequencyWeekly), "daily, weekly or monthly")
	cmd.Flags().IntVar(&opts.Interval, "interval", 1, "repeat every N units")
	cmd.Flags().StringVar(&opts.Days, "days", "", "comma separated weekdays for weekly series (sun..sat)")
	cmd.Flags().StringVar(&opts.Until, "until", "", "inclusive local end date YYYY-MM-DD")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "maximum occurrences including the seed")
	cmd.Flags().IntVar(&opts.Cap, "cap", service.DefaultRecurrenceCap, "hard occurrence cap")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("tz")

	return cmd
}

func expandSeries(opts *ExpandOptions) ([]ExpandedOccurrence, error) {
	wall, err := timezone.ParseWallClock(opts.Start)
	if err != nil {
		return nil, err
	}
	loc, err := timezone.LoadLocation(opts.Timezone)
	if err != nil {
		return nil, err
	}
	seed, exact := timezone.Resolve(wall, loc)
	if !exact {
		return nil, fmt.Errorf("%s does not exist in %s", wall, opts.Timezone)
	}
	days, err := parseWeekdays(opts.Days)
	if err != nil {
		return nil, err
	}

	pattern := models.RecurrencePattern{
		Frequency:      models.RecurrenceFrequency(strings.ToLower(opts.Frequency)),
		Interval:       opts.Interval,
		DaysOfWeek:     days,
		EndDate:        opts.Until,
		MaxOccurrences: opts.Count,
	}
	starts, err := service.ExpandRecurrence(seed, loc, pattern, opts.Cap)
	if err != nil {
		return nil, err
	}

	result := make([]ExpandedOccurrence, len(starts))
	for i, start := range starts {
		result[i] = ExpandedOccurrence{
			Index: i,
			Local: start.In(loc).Format("Mon 2006-01-02 15:04 MST"),
			UTC:   start.UTC(),
		}
	}
	return result, nil
}

func writeOccurrences(w io.Writer, format string, occurrences []ExpandedOccurrence) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(occurrences)
	}
	for _, o := range occurrences {
		if _, err := fmt.Fprintf(w, "%2d  %s  %s\n", o.Index, o.Local, o.UTC.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseWeekdays(raw string) ([]time.Weekday, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if len(name) > 3 {
			name = name[:3]
		}
		day, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		days = append(days, day)
	}
	return days, nil
}
