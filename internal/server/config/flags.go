package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/msgbox/internal/flagx"
)

var serverFlags = []string{
	"-a", "-m", "-t", "-w", "-s", "-f", "-d", "-q", "-l", "-g", "-p",
	"-admin-user", "-admin-password",
}

// parseFlags overlays command-line flags onto config.
//
//	-a string     TCP listen address (e.g. "127.0.0.1:64623")
//	-m int        maximum concurrent connections
//	-t duration   read timeout
//	-w duration   write timeout
//	-s string     storage backend: json, postgres or sqlite
//	-f string     data directory of the json backend
//	-d string     SQL DSN of the postgres and sqlite backends
//	-q int        mailbox quota (unread messages per user)
//	-l string     log level
//	-g string     gRPC health address, empty disables it
//	-p string     Prometheus metrics address, empty disables it
//	-admin-user / -admin-password   bootstrap administrator
//
// Only the flags listed above are read from args, so the config file flags
// can share the command line.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, serverFlags)

	fs := flag.NewFlagSet("msgbox-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to listen on")
	fs.IntVar(&config.MaxConnections, "m", config.MaxConnections, "maximum concurrent connections")
	fs.DurationVar(&config.ReadTimeout, "t", config.ReadTimeout, "read timeout")
	fs.DurationVar(&config.WriteTimeout, "w", config.WriteTimeout, "write timeout")
	fs.StringVar(&config.Storage, "s", config.Storage, "storage backend (json|postgres|sqlite)")
	fs.StringVar(&config.DataDir, "f", config.DataDir, "json backend data directory")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.MailboxQuota, "q", config.MailboxQuota, "mailbox quota")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.HealthAddr, "g", config.HealthAddr, "gRPC health address")
	fs.StringVar(&config.MetricsAddr, "p", config.MetricsAddr, "metrics address")
	fs.StringVar(&config.AdminUser, "admin-user", config.AdminUser, "bootstrap admin username")
	fs.StringVar(&config.AdminPassword, "admin-password", config.AdminPassword, "bootstrap admin password")

	return fs.Parse(args)
}
