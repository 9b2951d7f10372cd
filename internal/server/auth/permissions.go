// Package auth holds the static role permission table and password hashing.
package auth

import (
	"fmt"

	"github.com/dmitrijs2005/msgbox/internal/common"
	"github.com/dmitrijs2005/msgbox/internal/server/models"
)

// Command names understood by the server.
const (
	CmdSend   = "send"
	CmdRead   = "read"
	CmdReadU  = "read-u"
	CmdReadA  = "read-a"
	CmdReadO  = "read-o"
	CmdLogin  = "login"
	CmdLogout = "logout"
	CmdHelp   = "help"
	CmdInfo   = "info"
	CmdCreate = "create"
	CmdDelete = "delete"
	CmdEdit   = "edit"
)

// Commands lists every command in help order.
var Commands = []string{
	CmdSend, CmdRead, CmdReadU, CmdReadA, CmdReadO, CmdLogin,
	CmdLogout, CmdHelp, CmdInfo, CmdCreate, CmdDelete, CmdEdit,
}

// Permissions is a role -> command -> allowed table.
type Permissions map[models.Role]map[string]bool

// DefaultPermissions grants admins everything and withholds the account
// management and cross-mailbox commands from regular users.
var DefaultPermissions = Permissions{
	models.RoleAdmin: {
		CmdSend: true, CmdRead: true, CmdReadU: true, CmdReadA: true, CmdReadO: true, CmdLogin: true,
		CmdLogout: true, CmdHelp: true, CmdInfo: true, CmdCreate: true, CmdDelete: true, CmdEdit: true,
	},
	models.RoleUser: {
		CmdSend: true, CmdRead: true, CmdReadU: true, CmdReadA: true, CmdReadO: false, CmdLogin: true,
		CmdLogout: true, CmdHelp: true, CmdInfo: false, CmdCreate: true, CmdDelete: false, CmdEdit: false,
	},
}

// IsAllowed looks up role and command. A role or command missing from the
// table is an error, never a silent denial.
func (p Permissions) IsAllowed(role models.Role, command string) (bool, error) {
	row, ok := p[role]
	if !ok {
		return false, fmt.Errorf("%w: %q", common.ErrUnknownRole, role)
	}
	allowed, ok := row[command]
	if !ok {
		return false, fmt.Errorf("%w: %q", common.ErrUnknownCommand, command)
	}
	return allowed, nil
}

// Validate checks that every role defines every command and nothing else.
func (p Permissions) Validate(roles []models.Role, commands []string) error {
	for _, r := range roles {
		row, ok := p[r]
		if !ok {
			return fmt.Errorf("permissions: %w: %q", common.ErrUnknownRole, r)
		}
		for _, c := range commands {
			if _, ok := row[c]; !ok {
				return fmt.Errorf("permissions: role %q: %w: %q", r, common.ErrUnknownCommand, c)
			}
		}
		if len(row) != len(commands) {
			return fmt.Errorf("permissions: role %q defines %d commands, want %d", r, len(row), len(commands))
		}
	}
	if len(p) != len(roles) {
		return fmt.Errorf("permissions: %d roles defined, want %d", len(p), len(roles))
	}
	return nil
}

// ParseRole returns the known role named s.
func ParseRole(s string) (models.Role, bool) {
	for _, r := range models.Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}
