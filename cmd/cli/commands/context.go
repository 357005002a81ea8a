package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/internal/config"
	"github.com/jakechorley/desk-booking/pkg/cache"
	"github.com/jakechorley/desk-booking/pkg/core/services"
	"github.com/jakechorley/desk-booking/pkg/session"
)

var errNotSignedIn = errors.New("not signed in, run 'login' first")

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg       *config.Config
	Session   *session.Store
	Cache     *cache.Cache
	Services  *services.Services
	Navigator *Navigator
	Logger    *zap.Logger
	Ctx       context.Context
}

// Navigator tracks which command is running so the API client can tell the
// user to sign in again after a 401, except while they are signing in.
type Navigator struct {
	mu        sync.Mutex
	location  string
	loginPath string
	out       io.Writer
	redirects int
	warned    bool
}

// NewNavigator creates a Navigator starting at the given command
func NewNavigator(command, loginPath string, out io.Writer) *Navigator {
	n := &Navigator{loginPath: loginPath, out: out}
	n.SetCommand(command)
	return n
}

// SetCommand records the running command. The login command maps to the login path.
func (n *Navigator) SetCommand(command string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warned = false
	if command == "login" {
		n.location = n.loginPath
		return
	}
	n.location = "/" + command
}

func (n *Navigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

// Redirect tells the user to sign in again. Repeated 401s within one command are reported once.
func (n *Navigator) Redirect(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirects++
	if n.warned {
		return
	}
	n.warned = true
	fmt.Fprintln(n.out, "⚠️  Your session has expired. Run 'login' to sign in again.")
}

// Redirects returns how many times the user was sent to sign in
func (n *Navigator) Redirects() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.redirects
}

func (app *AppContext) navigateTo(command string) {
	if app.Navigator != nil {
		app.Navigator.SetCommand(command)
	}
}

// requireRole fails early when the signed-in user holds none of roles. The
// service enforces the same rule; this only saves a round trip.
func (app *AppContext) requireRole(roles ...string) error {
	if !app.Session.IsAuthenticated() {
		return errNotSignedIn
	}
	if !app.Session.HasAnyRole(roles...) {
		return fmt.Errorf("this command requires one of the roles: %s", strings.Join(roles, ", "))
	}
	return nil
}
