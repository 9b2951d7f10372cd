package protocol

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/msgbox/internal/common"
)

func TestCodec_DecodeRequest_Valid(t *testing.T) {
	c := NewCodec(0, 0)

	tests := []struct {
		name string
		raw  string
		want Request
	}{
		{
			name: "command with data",
			raw:  `{"command":"send","data":{"receiver":"bob","text":"hi"}}`,
			want: Request{Command: "send", Data: map[string]any{"receiver": "bob", "text": "hi"}},
		},
		{
			name: "missing data becomes empty map",
			raw:  `{"command":"help"}`,
			want: Request{Command: "help", Data: map[string]any{}},
		},
		{
			name: "null data becomes empty map",
			raw:  `{"command":"read","data":null}`,
			want: Request{Command: "read", Data: map[string]any{}},
		},
		{
			name: "surrounding whitespace and newline",
			raw:  "  {\"command\":\" logout \",\"data\":{}}\n",
			want: Request{Command: "logout", Data: map[string]any{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.DecodeRequest([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodec_DecodeRequest_Rejects(t *testing.T) {
	c := NewCodec(64, 10)

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace only", "   \n"},
		{"too large", `{"command":"send","data":{"text":"` + strings.Repeat("x", 64) + `"}}`},
		{"malformed", `{"command":`},
		{"array", `[1,2]`},
		{"json null", `null`},
		{"string", `"help"`},
		{"missing command", `{"data":{}}`},
		{"empty command", `{"command":"  "}`},
		{"numeric command", `{"command":5}`},
		{"command too long", `{"command":"abcdefghijk"}`},
		{"data not object", `{"command":"send","data":[1]}`},
		{"data string", `{"command":"send","data":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.DecodeRequest([]byte(tt.raw))
			require.Error(t, err)
			assert.Equal(t, common.KindProtocol, common.KindOf(err))
		})
	}
}

func TestEncodeResponse_AlwaysCarriesAllKeys(t *testing.T) {
	b, err := EncodeResponse(OK("Logged out", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"Logged out","data":null,"error_code":null}`, string(b))

	b, err = EncodeResponse(Fail(CodeUnknownCommand, "Unknown command: x"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"message":"Unknown command: x","data":null,"error_code":"UNKNOWN_COMMAND"}`, string(b))

	b, err = EncodeResponse(OK(DefaultSuccessMessage, map[string]any{"count": 1}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"Operation completed successfully","data":{"count":1},"error_code":null}`, string(b))
	assert.NotContains(t, string(b), "\n")
}

func TestResponse_RoundTrip(t *testing.T) {
	in := Fail("VALIDATION_ERROR", "too long")
	b, err := EncodeResponse(in)
	require.NoError(t, err)

	got, err := DecodeResponse(b)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	_, err = DecodeResponse([]byte("not json"))
	assert.Equal(t, common.KindProtocol, common.KindOf(err))
}

func TestCodec_EncodeRequest(t *testing.T) {
	c := NewCodec(40, 0)

	b, err := c.EncodeRequest(Request{Command: "help"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"help","data":{}}`, string(b))

	_, err = c.EncodeRequest(Request{Command: "send", Data: map[string]any{"text": strings.Repeat("y", 50)}})
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{"validation", common.Validation("Message too long"), "VALIDATION_ERROR", "Message too long"},
		{"wrapped business", fmt.Errorf("send: %w", common.Business("Mailbox full")), "BUSINESS_LOGIC_ERROR", "Mailbox full"},
		{"storage hides cause", common.Storage(errors.New("pq: relation missing")), "STORAGE_ERROR", "storage failure"},
		{"unexpected", errors.New("nil map"), "PROCESSING_ERROR", "Unexpected error while processing the request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FromError(tt.err)
			assert.False(t, r.Success)
			assert.Equal(t, tt.wantCode, r.ErrorCode)
			assert.Equal(t, tt.wantMsg, r.Message)
		})
	}
}

func TestRequest_Param(t *testing.T) {
	r := Request{Command: "send", Data: map[string]any{"receiver": "  Bob ", "n": 3.0}}
	assert.Equal(t, "Bob", r.Param("receiver"))
	assert.Equal(t, "", r.Param("n"))
	assert.Equal(t, "", r.Param("missing"))
}

func TestRequest_RawParam(t *testing.T) {
	r := Request{Command: "login", Data: map[string]any{"password": "  pw ", "n": 3.0}}
	assert.Equal(t, "  pw ", r.RawParam("password"))
	assert.Equal(t, "pw", r.Param("password"))
	assert.Equal(t, "", r.RawParam("n"))
	assert.Equal(t, "", r.RawParam("missing"))
}
