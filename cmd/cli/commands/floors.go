package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jakechorley/desk-booking/pkg/core/services"
	"github.com/jakechorley/desk-booking/pkg/model"
)

func intArg(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got: %s", name, value)
	}
	return n, nil
}

// FloorsCmd creates the floors command
func FloorsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "floors",
		Short: "List office floors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("floors")
			fresh, _ := cmd.Flags().GetBool("fresh")
			floors, err := app.Services.Floors.List(app.Ctx, services.ReadOptions{Fresh: fresh})
			if err != nil {
				return err
			}
			fmt.Printf("\n%d floors:\n\n", len(floors))
			printFloors(os.Stdout, floors)
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().Bool("fresh", false, "Bypass cached data")
	return cmd
}

// CreateFloorCmd creates the createFloor command
func CreateFloorCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "createFloor <floor_number>",
		Short: "Add a floor (Admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("createFloor")
			if err := app.requireRole(model.RoleAdmin); err != nil {
				return err
			}
			number, err := intArg("floor_number", args[0])
			if err != nil {
				return err
			}
			if err := app.Services.Floors.Create(app.Ctx, model.CreateFloorRequest{FloorNumber: number}); err != nil {
				return err
			}
			fmt.Printf("✓ Created the %s\n", floorLabel(number))
			return nil
		},
	}
}

// UpdateFloorCmd creates the updateFloor command
func UpdateFloorCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "updateFloor <floor_id> <floor_number>",
		Short: "Renumber a floor (Admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("updateFloor")
			if err := app.requireRole(model.RoleAdmin); err != nil {
				return err
			}
			floorID, err := intArg("floor_id", args[0])
			if err != nil {
				return err
			}
			number, err := intArg("floor_number", args[1])
			if err != nil {
				return err
			}
			if err := app.Services.Floors.Update(app.Ctx, floorID, model.UpdateFloorRequest{FloorNumber: number}); err != nil {
				return err
			}
			fmt.Printf("✓ Floor #%d is now the %s\n", floorID, floorLabel(number))
			return nil
		},
	}
}

// DeleteFloorCmd creates the deleteFloor command
func DeleteFloorCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deleteFloor <floor_id>",
		Short: "Delete an empty floor (Admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("deleteFloor")
			if err := app.requireRole(model.RoleAdmin); err != nil {
				return err
			}
			floorID, err := intArg("floor_id", args[0])
			if err != nil {
				return err
			}
			if err := app.Services.Floors.Delete(app.Ctx, floorID); err != nil {
				return err
			}
			fmt.Printf("✓ Deleted floor #%d\n", floorID)
			return nil
		},
	}
}
