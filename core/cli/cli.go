package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"smartschedule/core/config"
	"smartschedule/core/logger"
	"smartschedule/core/server"
	"smartschedule/modules/availability/dto"
	"smartschedule/modules/calendar/provider"

	"github.com/spf13/cobra"
)

type options struct {
	configPath string
}

// NewRootCommand builds the smartschedule command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "smartschedule",
		Short:         "Common-availability and slot-ranking engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newSlotsCommand(opts))
	root.AddCommand(newMigrateCommand(opts))
	root.AddCommand(newImportCommand(opts))
	return root
}

func (o *options) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the calendar:changed worker when enabled)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, cfg)
		},
	}
}

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the calendar tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			db, err := server.OpenDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

func newImportCommand(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace stored busy intervals with the participants of a calendar file",
		Long: `Reads a file in the static calendar format and replaces each listed participant's
busy intervals in the database. Participants not in the file are left untouched.`,
		Example: `  smartschedule import --file calendars.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runImport(cmd.Context(), cfg, file, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "static calendar YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runImport(ctx context.Context, cfg *config.Config, file string, out io.Writer) error {
	if cfg.Calendar.Backend == provider.BackendStatic {
		return fmt.Errorf("import needs calendar.backend %q or %q, not %q",
			provider.BackendDatabase, provider.BackendGoogle, cfg.Calendar.Backend)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read calendar file: %w", err)
	}
	calendars, err := provider.ParseStaticCalendars(data)
	if err != nil {
		return err
	}

	app, err := server.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ids := make([]string, 0, len(calendars))
	for id := range calendars {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := 0
	for _, id := range ids {
		stored, err := app.Calendar.SyncBusyIntervals(ctx, id, calendars[id].Intervals(id))
		if err != nil {
			return fmt.Errorf("import %s: %w", id, err)
		}
		total += stored
		fmt.Fprintf(out, "%s: %d busy intervals\n", id, stored)
	}
	logger.Info("CLI:Import:Done", "file", file, "participants", len(ids), "intervals", total)
	return nil
}

type slotsFlags struct {
	participants string
	start        string
	end          string
	duration     int
	timeZone     string
	coverage     string
	limit        int
}

func newSlotsCommand(opts *options) *cobra.Command {
	f := &slotsFlags{}
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print ranked slots for a group of participants as JSON",
		Example: `  smartschedule slots --participants alice,bob \
    --start 2026-03-10T00:00:00Z --end 2026-03-11T00:00:00Z --duration 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runSlots(cmd.Context(), cfg, f, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&f.participants, "participants", "", "comma-separated participant ids")
	cmd.Flags().StringVar(&f.start, "start", "", "range start (RFC3339)")
	cmd.Flags().StringVar(&f.end, "end", "", "range end (RFC3339)")
	cmd.Flags().IntVar(&f.duration, "duration", 30, "meeting length in minutes")
	cmd.Flags().StringVar(&f.timeZone, "tz", "", "working-hours time zone (default UTC)")
	cmd.Flags().StringVar(&f.coverage, "coverage", "", "coverage mode: best, full or any")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of slots to print")
	_ = cmd.MarkFlagRequired("participants")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func runSlots(ctx context.Context, cfg *config.Config, f *slotsFlags, out io.Writer) error {
	app, err := server.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	var ids []string
	for _, id := range strings.Split(f.participants, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	req := dto.FindSlotsRequest{
		ParticipantIDs:  ids,
		DurationMinutes: f.duration,
		StartDate:       f.start,
		EndDate:         f.end,
		CoverageMode:    f.coverage,
		Limit:           f.limit,
	}
	if f.timeZone != "" {
		req.WorkingHours = &dto.WorkingHoursRequest{TimeZone: f.timeZone}
	}
	query, err := req.ToQuery()
	if err != nil {
		return err
	}

	started := time.Now()
	result, err := app.Service.FindRankedSlots(ctx, query)
	if err != nil {
		return err
	}
	logger.Debug("CLI:Slots:Done", "elapsed", time.Since(started))

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(dto.ToFindSlotsResponse(result))
}
