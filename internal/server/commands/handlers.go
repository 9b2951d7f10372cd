package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/msgbox/internal/common"
	"github.com/dmitrijs2005/msgbox/internal/protocol"
	"github.com/dmitrijs2005/msgbox/internal/server/auth"
	"github.com/dmitrijs2005/msgbox/internal/server/models"
	"github.com/dmitrijs2005/msgbox/internal/server/services"
	"github.com/dmitrijs2005/msgbox/internal/server/session"
)

// Read status values carried by the read command payload.
const (
	StatusMarkAsRead    = "mark_as_read"
	StatusNoNewMessages = "no_new_messages"
)

func (d *Dispatcher) commands() []Command {
	return []Command{
		{Name: auth.CmdSend, Params: []string{"receiver", "text"}, State: Authenticated,
			Description: "send a message to another registered user", Handler: d.send},
		{Name: auth.CmdRead, State: Authenticated,
			Description: "read new messages", Handler: d.read},
		{Name: auth.CmdReadU, Params: []string{"sender"}, State: Authenticated,
			Description: "list your messages from the given sender", Handler: d.readFromSender},
		{Name: auth.CmdReadA, State: Authenticated,
			Description: "list all your messages", Handler: d.readAll},
		{Name: auth.CmdReadO, Params: []string{"username", "sender"}, State: Authenticated,
			Description: "list messages of another user from the given sender (admin only)", Handler: d.readOther},
		{Name: auth.CmdLogin, Params: []string{"username", "password"}, State: Anonymous,
			Description: "log in", Handler: d.login},
		{Name: auth.CmdLogout, State: Authenticated,
			Description: "log out", Handler: d.logout},
		{Name: auth.CmdHelp, State: AnyState,
			Description: "list available commands", Handler: d.help},
		{Name: auth.CmdInfo, Params: []string{"username"}, State: Authenticated,
			Description: "show information about a user (admin only)", Handler: d.info},
		{Name: auth.CmdCreate, Params: []string{"username", "password"}, State: Anonymous,
			Description: "create a new user", Handler: d.create},
		{Name: auth.CmdDelete, Params: []string{"username"}, State: Authenticated,
			Description: "delete a user (admin only)", Handler: d.delete},
		{Name: auth.CmdEdit, Params: []string{"username", "new_role"}, State: Authenticated,
			Description: "change the role of a user (admin only)", Handler: d.edit},
	}
}

func (d *Dispatcher) send(ctx context.Context, s *session.Session, req protocol.Request) (Result, error) {
	m, err := d.mailbox.Enqueue(ctx, d.users.Exists, req.Param("receiver"), s.Username, req.Param("text"))
	if err != nil {
		return Result{}, err
	}
	return Result{
		Message: fmt.Sprintf("Message to %s sent", m.Recipient),
		Data: map[string]any{
			"message_id": m.ID,
			"receiver":   m.Recipient,
			"send_time":  formatTime(m.SendTime),
		},
	}, nil
}

func (d *Dispatcher) read(ctx context.Context, s *session.Session, req protocol.Request) (Result, error) {
	msgs, err := d.mailbox.ListUnread(ctx, s.Username)
	if err != nil {
		return Result{}, err
	}
	data := listing(msgs)
	if len(msgs) == 0 {
		data["status"] = StatusNoNewMessages
		return Result{Message: "No new messages", Data: data}, nil
	}
	data["status"] = StatusMarkAsRead
	return Result{Data: data}, nil
}

func (d *Dispatcher) readFromSender(ctx context.Context, s *session.Session, req protocol.Request) (Result, error) {
	msgs, err := d.mailbox.ListFromSender(ctx, s.Username, req.Param("sender"))
	if err != nil {
		return Result{}, err
	}
	return Result{Data: listing(msgs)}, nil
}

func (d *Dispatcher) readAll(ctx context.Context, s *session.Session, req protocol.Request) (Result, error) {
	msgs, err := d.mailbox.ListAll(ctx, s.Username)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: listing(msgs)}, nil
}

func (d *Dispatcher) readOther(ctx context.Context, s *session.Session, req protocol.Request) (Result, error) {
	msgs, err := d.mailbox.ListOtherFromSender(ctx, s.Username, req.Param("username"), req.Param("sender"))
	if err != nil {
		return Result{}, err
	}
	return Result{Data: listing(msgs)}, nil
}

func (d *Dispatcher) login(ctx context.Context, s *session.Session, req protocol.Request) (Result, error) {
	u, err := d.users.Login(ctx, req.Param("username"), req.RawParam("password"))
	if err != nil {
		return Result{}, err
	}
	s.Login(u.Username)
	return Result{
		Message: fmt.Sprintf("User %s logged in", u.Username),
		Data: map[string]any{
			"username":   u.Username,
			"role":       string(u.Role),
			"login_time": formatTimePtr(u.LoginTime),
		},
	}, nil
}

func (d *Dispatcher) logout(ctx context.Context, s *session.Session, req protocol.Request) (Result, error) {
	name := s.Username
	s.Logout()
	return Result{Message: fmt.Sprintf("User %s logged out", name)}, nil
}

func (d *Dispatcher) help(ctx context.Context, s *session.Session, req protocol.Request) (Result, error) {
	role, err := d.role(ctx, s)
	if err != nil {
		return Result{}, err
	}
	list := make([]map[string]any, 0, len(d.order))
	for _, name := range d.order {
		c := d.table[name]
		allowed, err := d.perms.IsAllowed(role, name)
		if err != nil {
			return Result{}, err
		}
		params := c.Params
		if params == nil {
			params = []string{}
		}
		list = append(list, map[string]any{
			"name":        c.Name,
			"description": c.Description,
			"params":      params,
			"allowed":     allowed,
		})
	}
	return Result{Message: "Available commands", Data: map[string]any{"commands": list}}, nil
}

func (d *Dispatcher) info(ctx context.Context, s *session.Session, req protocol.Request) (Result, error) {
	u, err := d.users.Find(ctx, req.Param("username"))
	if err != nil {
		return Result{}, err
	}
	if u == nil {
		return Result{}, common.Business("User %s does not exist", services.NormalizeUsername(req.Param("username")))
	}
	return Result{
		Message: fmt.Sprintf("Information about %s", u.Username),
		Data: map[string]any{
			"username":   u.Username,
			"role":       string(u.Role),
			"created_at": formatTime(u.CreatedAt),
			"login_time": formatTimePtr(u.LoginTime),
		},
	}, nil
}

func (d *Dispatcher) create(ctx context.Context, s *session.Session, req protocol.Request) (Result, error) {
	u, err := d.users.Create(ctx, req.Param("username"), req.RawParam("password"), models.RoleUser)
	if err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("User %s created", u.Username)}, nil
}

func (d *Dispatcher) delete(ctx context.Context, s *session.Session, req protocol.Request) (Result, error) {
	target := services.NormalizeUsername(req.Param("username"))
	if target == s.Username {
		return Result{}, common.Business("You cannot delete your own account")
	}
	ok, err := d.users.Delete(ctx, target)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, common.Business("User %s does not exist", target)
	}
	return Result{Message: fmt.Sprintf("User %s deleted", target)}, nil
}

func (d *Dispatcher) edit(ctx context.Context, s *session.Session, req protocol.Request) (Result, error) {
	target := services.NormalizeUsername(req.Param("username"))
	role, ok := auth.ParseRole(services.NormalizeUsername(req.Param("new_role")))
	if !ok {
		return Result{}, common.Validation("Unknown role %q", req.Param("new_role"))
	}
	changed, err := d.users.SetRole(ctx, target, role)
	if err != nil {
		return Result{}, err
	}
	if !changed {
		return Result{}, common.Business("User %s does not exist", target)
	}
	return Result{Message: fmt.Sprintf("Role of %s changed to %s", target, role)}, nil
}

func listing(msgs []*models.Message) map[string]any {
	list := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		list = append(list, map[string]any{
			"id":        m.ID,
			"sender":    m.Sender,
			"recipient": m.Recipient,
			"text":      m.Text,
			"send_time": formatTime(m.SendTime),
			"read_time": formatTimePtr(m.ReadTime),
			"is_read":   m.Read,
		})
	}
	return map[string]any{"messages": list, "count": len(list)}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
