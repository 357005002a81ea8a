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

// DesksCmd creates the desks command
func DesksCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "desks",
		Short: "List desks, optionally on one floor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("desks")
			floorID, _ := cmd.Flags().GetInt("floor")
			fresh, _ := cmd.Flags().GetBool("fresh")
			opts := services.ReadOptions{Fresh: fresh}

			var (
				desks []model.Desk
				err   error
			)
			if floorID > 0 {
				desks, err = app.Services.Desks.ByFloor(app.Ctx, floorID, opts)
			} else {
				desks, err = app.Services.Desks.List(app.Ctx, opts)
			}
			if err != nil {
				return err
			}

			fmt.Printf("\n%d desks:\n\n", len(desks))
			printDesks(os.Stdout, desks, time.Now())
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().Int("floor", 0, "Only show desks on this floor ID")
	cmd.Flags().Bool("fresh", false, "Bypass cached data")
	return cmd
}

// AvailableCmd creates the available command
func AvailableCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "available <start> <end|duration>",
		Short: "List desks free for a whole time range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("available")
			start, end, err := parseRange(args[0], args[1])
			if err != nil {
				return err
			}
			app.Logger.Debug("available command", zap.Stringer("start", start), zap.Stringer("end", end))

			desks, err := app.Services.Desks.Available(app.Ctx, start, end)
			if err != nil {
				return err
			}
			fmt.Printf("\n%d desks free %s → %s:\n\n", len(desks), start.Format("Mon 02 Jan 15:04"), end.Format("15:04"))
			printDesks(os.Stdout, desks, time.Now())
			fmt.Println()
			return nil
		},
	}
}

// CreateDeskCmd creates the createDesk command
func CreateDeskCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "createDesk <floor_id> <desk_name>",
		Short: "Add a desk to a floor (Admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("createDesk")
			if err := app.requireRole(model.RoleAdmin); err != nil {
				return err
			}
			floorID, err := intArg("floor_id", args[0])
			if err != nil {
				return err
			}
			if err := app.Services.Desks.Create(app.Ctx, model.CreateDeskRequest{DeskName: args[1], FloorID: floorID}); err != nil {
				return err
			}
			fmt.Printf("✓ Created desk %s on floor #%d\n", args[1], floorID)
			return nil
		},
	}
}

// UpdateDeskCmd creates the updateDesk command
func UpdateDeskCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "updateDesk <desk_id> <floor_id> <desk_name>",
		Short: "Rename or move a desk (Admin)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("updateDesk")
			if err := app.requireRole(model.RoleAdmin); err != nil {
				return err
			}
			deskID, err := intArg("desk_id", args[0])
			if err != nil {
				return err
			}
			floorID, err := intArg("floor_id", args[1])
			if err != nil {
				return err
			}
			if err := app.Services.Desks.Update(app.Ctx, deskID, model.UpdateDeskRequest{DeskName: args[2], FloorID: floorID}); err != nil {
				return err
			}
			fmt.Printf("✓ Updated desk #%d\n", deskID)
			return nil
		},
	}
}

// DeleteDeskCmd creates the deleteDesk command
func DeleteDeskCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deleteDesk <desk_id>",
		Short: "Delete a desk with no upcoming reservations (Admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("deleteDesk")
			if err := app.requireRole(model.RoleAdmin); err != nil {
				return err
			}
			deskID, err := intArg("desk_id", args[0])
			if err != nil {
				return err
			}
			if err := app.Services.Desks.Delete(app.Ctx, deskID); err != nil {
				return err
			}
			fmt.Printf("✓ Deleted desk #%d\n", deskID)
			return nil
		},
	}
}
