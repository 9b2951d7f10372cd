// Package cli implements the interactive msgbox client.
//
// The loop reads a command name, asks for the parameters that command
// takes, sends one request and prints the response. Permission checks are
// left to the server; unknown commands are sent as they are.
//
// Commands
//
//	send      receiver, text
//	read      new messages, marks them read
//	read-u    sender
//	read-a    every message in your mailbox
//	read-o    username, sender (admin)
//	login     username, password
//	logout
//	help
//	info      username (admin)
//	create    username, password
//	delete    username (admin)
//	edit      username, new_role (admin)
//	exit | quit
package cli
