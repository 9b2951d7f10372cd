package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/msgbox/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// Only -a, -r, -d and -t are read from args.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-r", "-d", "-t"})

	fs := flag.NewFlagSet("msgbox-client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "address and port of the server")
	fs.IntVar(&cfg.ConnectRetries, "r", cfg.ConnectRetries, "connection attempts")
	fs.DurationVar(&cfg.RetryDelay, "d", cfg.RetryDelay, "delay between connection attempts")
	fs.DurationVar(&cfg.Timeout, "t", cfg.Timeout, "dial and request timeout")

	return fs.Parse(args)
}
