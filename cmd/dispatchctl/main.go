// Command dispatchctl is the Direct Dispatch operations CLI.
//
// Usage:
//
//	dispatchctl run
//	dispatchctl run --at 2024-03-01T19:30:00Z
//	dispatchctl schedule add <eventID>
//	dispatchctl schedule list --day 2024-03-01
//	dispatchctl schedule prune --retention-days 7
//	dispatchctl geo set <uid> <lat> <long>
//	dispatchctl geo remove <uid>
//	dispatchctl user prefs <uid> "Arts, Food"
//	dispatchctl user token <uid> <token>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/direct-dispatch/internal/app"
	"github.com/albapepper/direct-dispatch/internal/config"
	"github.com/albapepper/direct-dispatch/internal/event"
	"github.com/albapepper/direct-dispatch/internal/maintenance"
	"github.com/albapepper/direct-dispatch/internal/notifications"
	"github.com/albapepper/direct-dispatch/internal/schedule"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "dispatchctl",
		Short:        "Direct Dispatch operations CLI",
		SilenceUsage: true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(scheduleCmd())
	root.AddCommand(geoCmd())
	root.AddCommand(userCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Announce the events that are live now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				d := a.Dispatcher
				if at != "" {
					t, err := time.Parse(time.RFC3339, at)
					if err != nil {
						return fmt.Errorf("--at: %w", err)
					}
					d = a.NewDispatcher(func() time.Time { return t })
				}
				res, err := d.Run(ctx)
				if err != nil {
					return err
				}
				if err := printJSON(res); err != nil {
					return err
				}
				if !res.OK() {
					return fmt.Errorf("%d of %d live events failed", res.Failed, res.Live)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Evaluate liveness at this RFC3339 time instead of now")
	return cmd
}

// --------------------------------------------------------------------------
// schedule commands
// --------------------------------------------------------------------------

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect and maintain the day schedule",
	}
	cmd.AddCommand(scheduleAddCmd())
	cmd.AddCommand(scheduleListCmd())
	cmd.AddCommand(schedulePruneCmd())
	return cmd
}

func scheduleAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <eventID>...",
		Short: "Index existing events under their start day",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				var failed int
				for _, id := range args {
					ev, err := a.Events.Get(ctx, id)
					if err == nil {
						var entry schedule.Entry
						entry, err = a.Schedule.Add(ctx, ev)
						if err == nil {
							a.Logger.Info("Event scheduled", "event_id", id, "day", entry.Day)
							continue
						}
					}
					a.Logger.Error("Failed to schedule event", "event_id", id, "error", err)
					failed++
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d events not scheduled", failed, len(args))
				}
				return nil
			})
		},
	}
}

func scheduleListCmd() *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the pending entries of a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				now := time.Now()
				if day == "" {
					day = schedule.DayKey(now)
				}
				if _, err := schedule.ParseDay(day); err != nil {
					return err
				}
				p, err := a.Schedule.Load(ctx, day)
				if err != nil {
					return err
				}
				for _, e := range p.Entries {
					fmt.Printf("%s  %s → %s  live=%v\n", e.EventID,
						event.FromSeconds(e.StartTimeStamp).Format(time.RFC3339),
						event.FromSeconds(e.EndTimeStamp).Format(time.RFC3339),
						notifications.IsLive(e, now))
				}
				for _, id := range p.Malformed {
					fmt.Printf("%s  (malformed)\n", id)
				}
				a.Logger.Info("Schedule listed", "day", day, "entries", len(p.Entries), "malformed", len(p.Malformed))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "UTC day (YYYY-MM-DD), defaults to today")
	return cmd
}

func schedulePruneCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove partitions older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				retention := a.Config.ScheduleRetentionDays
				if cmd.Flags().Changed("retention-days") {
					retention = days
				}
				if retention < 1 {
					return fmt.Errorf("retention must be at least one day, got %d", retention)
				}
				pruned, err := maintenance.PruneStale(ctx, a.Schedule, retention, time.Now(), a.Logger)
				if err != nil {
					return err
				}
				a.Logger.Info("Prune finished", "removed", len(pruned))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "retention-days", 0, "Override SCHEDULE_RETENTION_DAYS")
	return cmd
}

// --------------------------------------------------------------------------
// geo commands
// --------------------------------------------------------------------------

func geoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geo",
		Short: "Maintain the user location index",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <uid> <lat> <long>",
		Short: "Upsert a user's location",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("lat: %w", err)
			}
			long, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("long: %w", err)
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				if err := a.Geo.Set(ctx, args[0], event.Coordinate{Lat: lat, Long: long}); err != nil {
					return err
				}
				a.Logger.Info("Location updated", "uid", args[0], "lat", lat, "long", long)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <uid>",
		Short: "Drop a user from the location index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				return a.Geo.Remove(ctx, args[0])
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// user commands
// --------------------------------------------------------------------------

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Maintain user preferences and device tokens",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "prefs <uid> <categories>",
		Short: `Set a user's categories ("Arts, Food")`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				return a.Users.SetPreferences(ctx, args[0], event.ParseCategories(args[1]))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "token <uid> [token]",
		Short: "Set a user's push token; omit the token to remove it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) == 2 {
				token = args[1]
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				return a.Users.SetDeviceToken(ctx, args[0], token)
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLogger()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
