package cli

import "strings"

type param struct {
	name   string
	label  string
	lower  bool
	secret bool
}

var (
	pUsername = param{name: "username", label: "Username", lower: true}
	pPassword = param{name: "password", label: "Password", secret: true}
)

// commandParams lists the parameters asked for each command, in order.
// Commands missing here are sent without parameters.
var commandParams = map[string][]param{
	"login":  {pUsername, pPassword},
	"create": {pUsername, pPassword},
	"send": {
		{name: "receiver", label: "Recipient username", lower: true},
		{name: "text", label: "Message text"},
	},
	"read-u": {{name: "sender", label: "Show messages from username", lower: true}},
	"read-o": {
		{name: "username", label: "Mailbox owner username", lower: true},
		{name: "sender", label: "Sender username", lower: true},
	},
	"edit": {
		{name: "username", label: "Username whose role to change", lower: true},
		{name: "new_role", label: "New role", lower: true},
	},
	"info":   {pUsername},
	"delete": {pUsername},
}

func (p param) normalize(v string) string {
	if p.secret {
		return v
	}
	v = strings.TrimSpace(v)
	if p.lower {
		v = strings.ToLower(v)
	}
	return v
}
