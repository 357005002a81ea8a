package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/core/services"
	"github.com/jakechorley/desk-booking/pkg/model"
)

// ReserveCmd creates the reserve command
func ReserveCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reserve <desk_id> <start> <end|duration>",
		Short: "Book a desk, optionally repeating with --rrule",
		Long: `Book a desk for a time range. The end can be a time or a duration such as 2h.

--rrule takes an RFC 5545 recurrence rule (e.g. "FREQ=WEEKLY;BYDAY=MO,WE;COUNT=8")
or the name of a recurrence preset from the config file. One reservation is
made per occurrence, each with the same duration.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("reserve")
			deskID, err := intArg("desk_id", args[0])
			if err != nil {
				return err
			}
			start, end, err := parseRange(args[1], args[2])
			if err != nil {
				return err
			}
			req := model.CreateReservationRequest{DeskID: deskID, StartTime: start, EndTime: end}

			rule, _ := cmd.Flags().GetString("rrule")
			if rule == "" {
				app.Logger.Debug("reserve command", zap.Int("desk_id", deskID), zap.Stringer("start", start))
				if err := app.Services.Reservations.Create(app.Ctx, req); err != nil {
					return err
				}
				fmt.Printf("\n✓ Desk #%d reserved %s → %s\n\n", deskID, start.Format("Mon 02 Jan 15:04"), end.Format("15:04"))
				return nil
			}

			rule = app.Cfg.Recurrence(rule)
			app.Logger.Debug("reserve command", zap.Int("desk_id", deskID), zap.String("rrule", rule))
			results, err := app.Services.Reservations.CreateRecurring(app.Ctx, req, rule)
			if err != nil {
				return err
			}
			printOccurrences(results)
			return nil
		},
	}
	cmd.Flags().String("rrule", "", "Recurrence rule or preset name")
	return cmd
}

func printOccurrences(results []services.OccurrenceResult) {
	created := 0
	fmt.Println()
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("  ✗ %s\n", r.Err)
			continue
		}
		created++
		fmt.Printf("  ✓ %s → %s\n", r.StartTime.Format("Mon 02 Jan 15:04"), r.EndTime.Format("15:04"))
	}
	fmt.Printf("\n%d of %d reservations created\n\n", created, len(results))
}

// CancelCmd creates the cancel command
func CancelCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <reservation_id>",
		Short: "Cancel one of your reservations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("cancel")
			reservationID, err := intArg("reservation_id", args[0])
			if err != nil {
				return err
			}
			if err := app.Services.Reservations.Cancel(app.Ctx, reservationID); err != nil {
				return err
			}
			fmt.Printf("✓ Cancelled reservation #%d\n", reservationID)
			return nil
		},
	}
}

// MyReservationsCmd creates the myReservations command
func MyReservationsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "myReservations",
		Short: "List your reservations: active, upcoming, then past",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("myReservations")
			fresh, _ := cmd.Flags().GetBool("fresh")
			reservations, err := app.Services.Reservations.Mine(app.Ctx, services.ReadOptions{Fresh: fresh})
			if err != nil {
				return err
			}
			fmt.Printf("\nYour reservations (%d):\n\n", len(reservations))
			printReservations(os.Stdout, reservations, time.Now())
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().Bool("fresh", false, "Bypass cached data")
	return cmd
}

// DeskReservationsCmd creates the deskReservations command
func DeskReservationsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deskReservations <desk_id>",
		Short: "List every reservation of one desk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("deskReservations")
			deskID, err := intArg("desk_id", args[0])
			if err != nil {
				return err
			}
			reservations, err := app.Services.Reservations.ByDesk(app.Ctx, deskID)
			if err != nil {
				return err
			}
			fmt.Printf("\nReservations of desk #%d (%d):\n\n", deskID, len(reservations))
			printReservations(os.Stdout, reservations, time.Now())
			fmt.Println()
			return nil
		},
	}
}
