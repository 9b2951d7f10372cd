package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/msgbox/internal/client/client"
	"github.com/dmitrijs2005/msgbox/internal/client/config"
	"github.com/dmitrijs2005/msgbox/internal/protocol"
)

// requester is the part of client.Client the prompt loop needs.
type requester interface {
	Do(ctx context.Context, req protocol.Request) (protocol.Response, error)
}

type App struct {
	config *config.Config
	conn   *client.Client
	client requester
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) *App {
	conn := client.New(client.Options{
		Address:    c.ServerAddr,
		Retries:    c.ConnectRetries,
		RetryDelay: c.RetryDelay,
		Timeout:    c.Timeout,
	})
	return &App{
		config: c,
		conn:   conn,
		client: conn,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

// Run connects to the server and serves the prompt loop until the user
// leaves, stdin ends or the connection breaks.
func (a *App) Run(ctx context.Context) error {
	printlnFn(fmt.Sprintf("Connecting to %s ...", a.config.ServerAddr))
	if err := a.conn.Connect(ctx); err != nil {
		return err
	}
	defer a.conn.Close()

	printlnFn("Connected. Type 'help' for commands, 'exit' to quit.")
	return runREPL(ctx, a, a.reader)
}

// collect asks for every parameter of cmd.
func (a *App) collect(cmd string) (map[string]any, error) {
	data := map[string]any{}
	for _, p := range commandParams[cmd] {
		var (
			v   string
			err error
		)
		if p.secret {
			v, err = GetPassword(a.reader, p.label, a.out)
		} else {
			v, err = GetSimpleText(a.reader, p.label, a.out)
		}
		if err != nil {
			return nil, err
		}
		data[p.name] = p.normalize(v)
	}
	return data, nil
}

// Execute prompts for the parameters of cmd, sends the request and prints
// the response.
func (a *App) Execute(ctx context.Context, cmd string) error {
	data, err := a.collect(cmd)
	if err != nil {
		return err
	}

	resp, err := a.client.Do(ctx, protocol.Request{Command: cmd, Data: data})
	if err != nil {
		return err
	}
	render(a.out, resp)
	return nil
}
