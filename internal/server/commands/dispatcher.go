// Package commands maps wire commands to business operations. Every
// request passes one gate before its handler runs: the role permission
// lookup, then the login-state requirement of the command.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/msgbox/internal/common"
	"github.com/dmitrijs2005/msgbox/internal/logging"
	"github.com/dmitrijs2005/msgbox/internal/protocol"
	"github.com/dmitrijs2005/msgbox/internal/server/auth"
	"github.com/dmitrijs2005/msgbox/internal/server/models"
	"github.com/dmitrijs2005/msgbox/internal/server/services"
	"github.com/dmitrijs2005/msgbox/internal/server/session"
)

// LoginState is the session state a command requires.
type LoginState int

const (
	AnyState LoginState = iota
	Authenticated
	Anonymous
)

// Result is what a handler produces. A result with Data becomes the
// response payload; Message defaults to protocol.DefaultSuccessMessage.
type Result struct {
	Message string
	Data    map[string]any
}

// Handler runs one command for an already admitted session.
type Handler func(ctx context.Context, s *session.Session, req protocol.Request) (Result, error)

// Command is one row of the dispatch table.
type Command struct {
	Name        string
	Params      []string
	State       LoginState
	Description string
	Handler     Handler
}

// Observer receives the outcome of every dispatched command.
type Observer interface {
	ObserveCommand(command, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveCommand(string, string, time.Duration) {}

// Dispatcher owns the command table.
type Dispatcher struct {
	users    *services.UserService
	mailbox  *services.MailboxService
	perms    auth.Permissions
	logger   logging.Logger
	observer Observer

	table map[string]Command
	order []string
}

// NewDispatcher builds the dispatch table and verifies it against the
// declared commands and the permission table.
func NewDispatcher(users *services.UserService, mailbox *services.MailboxService, perms auth.Permissions, logger logging.Logger, observer Observer) (*Dispatcher, error) {
	if observer == nil {
		observer = nopObserver{}
	}
	d := &Dispatcher{
		users:    users,
		mailbox:  mailbox,
		perms:    perms,
		logger:   logger.With("module", "commands"),
		observer: observer,
	}
	if err := d.register(d.commands(), auth.Commands); err != nil {
		return nil, err
	}
	if err := perms.Validate(models.Roles, auth.Commands); err != nil {
		return nil, err
	}
	return d, nil
}

// register indexes cmds; each declared name needs exactly one handler.
func (d *Dispatcher) register(cmds []Command, declared []string) error {
	table := make(map[string]Command, len(cmds))
	for _, c := range cmds {
		if c.Handler == nil {
			return fmt.Errorf("command %q has no handler", c.Name)
		}
		if _, dup := table[c.Name]; dup {
			return fmt.Errorf("command %q registered twice", c.Name)
		}
		table[c.Name] = c
	}
	for _, name := range declared {
		if _, ok := table[name]; !ok {
			return fmt.Errorf("command %q has no handler", name)
		}
	}
	if len(table) != len(declared) {
		return fmt.Errorf("%d handlers registered for %d commands", len(table), len(declared))
	}
	d.table = table
	d.order = declared
	return nil
}

// Lookup returns the table row of name.
func (d *Dispatcher) Lookup(name string) (Command, bool) {
	c, ok := d.table[name]
	return c, ok
}

// role resolves the current role from storage so that role changes apply
// to sessions that are already logged in. A session whose account is gone
// falls back to anonymous.
func (d *Dispatcher) role(ctx context.Context, s *session.Session) (models.Role, error) {
	if !s.Authenticated() {
		return models.RoleUser, nil
	}
	u, err := d.users.Find(ctx, s.Username)
	if err != nil {
		return "", err
	}
	if u == nil {
		s.Logout()
		return models.RoleUser, nil
	}
	return u.Role, nil
}

// admit applies the permission gate for cmd.
func (d *Dispatcher) admit(ctx context.Context, s *session.Session, cmd Command) error {
	role, err := d.role(ctx, s)
	if err != nil {
		return err
	}
	allowed, err := d.perms.IsAllowed(role, cmd.Name)
	if err != nil {
		return err
	}
	if !allowed {
		return common.Permission("You are not allowed to use this command")
	}
	switch cmd.State {
	case Authenticated:
		if !s.Authenticated() {
			return common.Permission("You must be logged in to use this command")
		}
	case Anonymous:
		if s.Authenticated() {
			return common.Permission("You are already logged in")
		}
	}
	return nil
}

func missingParams(cmd Command, req protocol.Request) error {
	var missing []string
	for _, p := range cmd.Params {
		if req.Param(p) == "" {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return common.Validation("Missing required parameters: %s", strings.Join(missing, ", "))
}

// Dispatch runs req for session s and always returns a response.
func (d *Dispatcher) Dispatch(ctx context.Context, s *session.Session, req protocol.Request) protocol.Response {
	start := time.Now()
	logger := d.logger.With("session_id", s.ID, "command", req.Command)

	cmd, ok := d.table[req.Command]
	if !ok {
		logger.Info(ctx, "unknown command")
		d.observer.ObserveCommand("unknown", protocol.CodeUnknownCommand, time.Since(start))
		return protocol.Fail(protocol.CodeUnknownCommand, fmt.Sprintf("Unknown command: %s", req.Command))
	}

	res, err := d.run(ctx, s, cmd, req)
	if err != nil {
		resp := protocol.FromError(err)
		d.logFailure(ctx, logger, err)
		d.observer.ObserveCommand(cmd.Name, resp.ErrorCode, time.Since(start))
		return resp
	}

	d.observer.ObserveCommand(cmd.Name, "ok", time.Since(start))
	logger.Debug(ctx, "command completed", "user", s.Username)
	return normalize(res)
}

func (d *Dispatcher) run(ctx context.Context, s *session.Session, cmd Command, req protocol.Request) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic in %s: %v", common.ErrorInternal, cmd.Name, p)
		}
	}()

	if err := d.admit(ctx, s, cmd); err != nil {
		return Result{}, err
	}
	if err := missingParams(cmd, req); err != nil {
		return Result{}, err
	}
	return cmd.Handler(ctx, s, req)
}

func (d *Dispatcher) logFailure(ctx context.Context, logger logging.Logger, err error) {
	switch common.KindOf(err) {
	case common.KindValidation, common.KindPermission, common.KindBusiness:
		logger.Info(ctx, "command rejected", "error", err.Error())
	case common.KindStorage:
		logger.Error(ctx, "storage failure", "error", err.Error())
	default:
		if errors.Is(err, common.ErrUnknownRole) || errors.Is(err, common.ErrUnknownCommand) {
			logger.Error(ctx, "permission table lookup failed", "error", err.Error())
			return
		}
		logger.Error(ctx, "unexpected failure", "error", err.Error())
	}
}

func normalize(res Result) protocol.Response {
	msg := res.Message
	if msg == "" {
		msg = protocol.DefaultSuccessMessage
	}
	return protocol.OK(msg, res.Data)
}
