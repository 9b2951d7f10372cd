package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/dmitrijs2005/msgbox/internal/protocol"
)

// render prints resp in a human readable form.
func render(w io.Writer, resp protocol.Response) {
	if !resp.Success {
		fmt.Fprintf(w, "Error [%s]: %s\n", resp.ErrorCode, resp.Message)
		return
	}
	fmt.Fprintf(w, "OK: %s\n", resp.Message)

	switch {
	case resp.Data == nil:
	case resp.Data["messages"] != nil:
		renderMessages(w, resp.Data)
	case resp.Data["commands"] != nil:
		renderCommands(w, resp.Data)
	default:
		renderFields(w, resp.Data)
	}
}

func renderMessages(w io.Writer, data map[string]any) {
	list, _ := data["messages"].([]any)
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		state := "new"
		if read, _ := m["is_read"].(bool); read {
			state = "read"
		}
		fmt.Fprintf(w, "  [%v] %v -> %v (%s): %v\n", m["send_time"], m["sender"], m["recipient"], state, m["text"])
	}
	fmt.Fprintf(w, "  %d message(s)\n", len(list))
}

func renderCommands(w io.Writer, data map[string]any) {
	list, _ := data["commands"].([]any)
	for _, item := range list {
		c, ok := item.(map[string]any)
		if !ok {
			continue
		}
		mark := " "
		if allowed, _ := c["allowed"].(bool); !allowed {
			mark = "x"
		}
		fmt.Fprintf(w, "  %s %-8v %v\n", mark, c["name"], c["description"])
	}
}

func renderFields(w io.Writer, data map[string]any) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := data[k]
		if _, scalar := v.(string); !scalar {
			if b, err := json.Marshal(v); err == nil {
				v = string(b)
			}
		}
		fmt.Fprintf(w, "  %s: %v\n", k, v)
	}
}
