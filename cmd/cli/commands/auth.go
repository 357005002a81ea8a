package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// LoginCmd creates the login command. Without --email it uses integrated
// (Windows) authentication.
func LoginCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with Windows authentication, or with --email and --password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("login")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			if email == "" {
				app.Logger.Debug("login command", zap.String("method", "windows"))
				user, err := app.Services.Auth.WindowsLogin(app.Ctx)
				if err != nil {
					return err
				}
				fmt.Printf("\n✓ Signed in as %s\n\n", user.UserName)
				return nil
			}

			if password == "" {
				var err error
				password, err = promptLine(fmt.Sprintf("Password for %s: ", email))
				if err != nil {
					return err
				}
			}

			app.Logger.Debug("login command", zap.String("method", "password"), zap.String("email", email))
			user, err := app.Services.Auth.LoginWithPassword(app.Ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Printf("\n✓ Signed in as %s\n\n", user.UserName)
			return nil
		},
	}

	cmd.Flags().String("email", "", "Email address for password sign-in")
	cmd.Flags().String("password", "", "Password (prompted when omitted)")

	return cmd
}

// LogoutCmd creates the logout command
func LogoutCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("logout")
			if err := app.Services.Auth.Logout(app.Ctx); err != nil {
				// local state is gone either way
				fmt.Printf("⚠️  Server sign-out failed: %v\n", err)
			}
			fmt.Println("✓ Signed out")
			return nil
		},
	}
}

// WhoAmICmd creates the whoami command
func WhoAmICmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and their roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.navigateTo("whoami")
			if !app.Session.IsAuthenticated() {
				fmt.Println("Not signed in. Run 'login' first.")
				return nil
			}
			user, err := app.Services.Auth.Me(app.Ctx)
			if err != nil {
				return err
			}
			printUser(os.Stdout, user)
			return nil
		},
	}
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
