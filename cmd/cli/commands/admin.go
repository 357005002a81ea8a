package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jakechorley/desk-booking/pkg/model"
)

// UsersCmd creates the users command
func UsersCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List user accounts (Admin, TeamLead)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("users")
			if err := app.requireRole(model.RoleAdmin, model.RoleTeamLead); err != nil {
				return err
			}
			users, err := app.Services.Users.List(app.Ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\nFound %d users:\n\n", len(users))
			for _, u := range users {
				fmt.Printf("- %s <%s> (%s) - %s\n", u.UserName, u.Email, u.ID, strings.Join(u.Roles, ", "))
			}
			fmt.Println()
			return nil
		},
	}
}

// RolesCmd creates the roles command
func RolesCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "roles [user_id]",
		Short: "List all roles, or the roles of one user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("roles")
			if len(args) == 0 {
				roles, err := app.Services.Roles.List(app.Ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Roles: %s\n", strings.Join(roles, ", "))
				return nil
			}

			if err := app.requireRole(model.RoleAdmin, model.RoleTeamLead); err != nil {
				return err
			}
			roles, err := app.Services.Roles.UserRoles(app.Ctx, args[0])
			if err != nil {
				return err
			}
			if len(roles) == 0 {
				fmt.Printf("%s has no roles\n", args[0])
				return nil
			}
			fmt.Printf("%s: %s\n", args[0], strings.Join(roles, ", "))
			return nil
		},
	}
}

// AssignRoleCmd creates the assignRole command
func AssignRoleCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assignRole <user_id> <role>",
		Short: "Give a user a role (Admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("assignRole")
			if err := app.requireRole(model.RoleAdmin); err != nil {
				return err
			}
			if err := app.Services.Roles.Assign(app.Ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("✓ %s now has role %s\n", args[0], args[1])
			return nil
		},
	}
}

// RemoveRoleCmd creates the removeRole command
func RemoveRoleCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "removeRole <user_id> <role>",
		Short: "Take a role away from a user (Admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("removeRole")
			if err := app.requireRole(model.RoleAdmin); err != nil {
				return err
			}
			if err := app.Services.Roles.Remove(app.Ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("✓ %s no longer has role %s\n", args[0], args[1])
			return nil
		},
	}
}

// CreateRoleCmd creates the createRole command
func CreateRoleCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "createRole <name>",
		Short: "Define a new role (Admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("createRole")
			if err := app.requireRole(model.RoleAdmin); err != nil {
				return err
			}
			if err := app.Services.Roles.Create(app.Ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ Created role %s\n", args[0])
			return nil
		},
	}
}
