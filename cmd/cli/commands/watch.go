package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/core/services"
	"github.com/jakechorley/desk-booking/pkg/model"
)

// WatchCmd creates the watch command
func WatchCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh your reservations on a schedule and report changes",
		Long: `Refresh your reservations on a cron schedule (default from the config file,
e.g. "@every 1m" or "*/5 8-18 * * MON-FRI") and print what changed. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("watch")
			schedule, _ := cmd.Flags().GetString("schedule")
			if schedule == "" {
				schedule = app.Cfg.WatchSchedule
			}

			ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt)
			defer stop()

			w := &watcher{app: app, out: os.Stdout, now: time.Now}
			w.tick(ctx)

			c := cron.New()
			if _, err := c.AddFunc(schedule, func() { w.tick(ctx) }); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", schedule, err)
			}
			app.Logger.Debug("Watching reservations", zap.String("schedule", schedule))
			fmt.Printf("Watching your reservations (%s). Press Ctrl+C to stop.\n", schedule)

			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().String("schedule", "", "Cron schedule for refreshes")
	return cmd
}

type watcher struct {
	app  *AppContext
	out  io.Writer
	now  func() time.Time
	last map[int]model.Reservation
}

func (w *watcher) tick(ctx context.Context) {
	reservations, err := w.app.Services.Reservations.Mine(ctx, services.ReadOptions{Fresh: true})
	if err != nil {
		if ctx.Err() == nil {
			fmt.Fprintf(w.out, "[%s] ⚠️  refresh failed: %v\n", w.now().Format("15:04:05"), err)
		}
		return
	}

	now := w.now()
	if w.last != nil {
		for _, change := range diffReservations(w.last, reservations) {
			fmt.Fprintf(w.out, "[%s] %s\n", now.Format("15:04:05"), change)
		}
	}
	w.last = indexReservations(reservations)

	if next, ok := nextReservation(reservations, now); ok {
		fmt.Fprintf(w.out, "[%s] next: %s %s\n", now.Format("15:04:05"), next.DeskName, humanize.RelTime(next.StartTime.Time, now, "ago", "from now"))
	}
}

func indexReservations(reservations []model.Reservation) map[int]model.Reservation {
	out := make(map[int]model.Reservation, len(reservations))
	for _, r := range reservations {
		out[r.ReservationID] = r
	}
	return out
}

// diffReservations describes how next differs from prev, in next's order
// followed by removals
func diffReservations(prev map[int]model.Reservation, next []model.Reservation) []string {
	var changes []string
	seen := make(map[int]bool, len(next))
	for _, r := range next {
		seen[r.ReservationID] = true
		old, ok := prev[r.ReservationID]
		switch {
		case !ok:
			changes = append(changes, fmt.Sprintf("new reservation #%d: %s at %s", r.ReservationID, r.DeskName, r.StartTime.Format("Mon 02 Jan 15:04")))
		case old.Status != r.Status:
			changes = append(changes, fmt.Sprintf("reservation #%d is now %s", r.ReservationID, r.Status))
		case !old.StartTime.Equal(r.StartTime.Time) || !old.EndTime.Equal(r.EndTime.Time) || old.DeskID != r.DeskID:
			changes = append(changes, fmt.Sprintf("reservation #%d moved to %s at %s", r.ReservationID, r.DeskName, r.StartTime.Format("Mon 02 Jan 15:04")))
		}
	}
	var removed []int
	for id := range prev {
		if !seen[id] {
			removed = append(removed, id)
		}
	}
	slices.Sort(removed)
	for _, id := range removed {
		changes = append(changes, fmt.Sprintf("reservation #%d was removed", id))
	}
	return changes
}

// nextReservation returns the earliest live reservation that has not started yet
func nextReservation(reservations []model.Reservation, now time.Time) (model.Reservation, bool) {
	var (
		next  model.Reservation
		found bool
	)
	for _, r := range reservations {
		if r.Status == model.StatusCancelled || !r.StartTime.After(now) {
			continue
		}
		if !found || r.StartTime.Before(next.StartTime.Time) {
			next, found = r, true
		}
	}
	return next, found
}
