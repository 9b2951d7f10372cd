package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/msgbox/internal/common"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// executor is the command surface the loop drives. App satisfies it; tests
// provide a lightweight stub.
type executor interface {
	Execute(ctx context.Context, cmd string) error
}

// runREPL reads one command name per line and hands it to e. It returns nil
// on "exit", "quit" or end of input, and the error when the connection to
// the server is lost. Other errors are reported and the loop goes on.
func runREPL(ctx context.Context, e executor, reader *bufio.Reader) error {
	for {
		printlnFn("msgbox> ")
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return nil
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := strings.ToLower(parts[0])

		switch cmd {
		case "exit", "quit":
			printlnFn("Bye!")
			return nil
		}

		if err := e.Execute(ctx, cmd); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if common.KindOf(err) == common.KindConnection {
				printlnFn("Connection lost:", err)
				return err
			}
			printlnFn("Error:", err)
		}
	}
}
