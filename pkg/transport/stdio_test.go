package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/richard-senior/podds/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRequests(t *testing.T) {
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}
{"jsonrpc":"2.0","method":"notifications/initialized"}  {"jsonrpc":"2.0","id":"a","method":"tools/list","params":{}}`)
	tr := NewStreamTransport(in, io.Discard)

	req, err := tr.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, "ping", req.Method)
	assert.False(t, req.IsNotification())

	req, err = tr.ReadRequest()
	require.NoError(t, err)
	assert.True(t, req.IsNotification())

	req, err = tr.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, "a", req.ID)
	assert.JSONEq(t, `{}`, string(req.Params))

	_, err = tr.ReadRequest()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadRequestRejectsWrongVersion(t *testing.T) {
	tr := NewStreamTransport(strings.NewReader(`{"jsonrpc":"1.0","id":1,"method":"ping"}`), io.Discard)
	_, err := tr.ReadRequest()

	var rpcErr *protocol.JsonRpcError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, protocol.ErrInvalidRequest, rpcErr.Code)
}

func TestReadRequestSyntaxError(t *testing.T) {
	tr := NewStreamTransport(strings.NewReader(`{"jsonrpc": oops}`), io.Discard)
	_, err := tr.ReadRequest()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)

	var syntaxErr *json.SyntaxError
	assert.True(t, errors.As(err, &syntaxErr))
}

func TestWriteResponseIsOneLine(t *testing.T) {
	var out bytes.Buffer
	tr := NewStreamTransport(strings.NewReader(""), &out)

	resp, err := protocol.NewJsonRpcResponse(map[string]any{"ok": true}, 3)
	require.NoError(t, err)
	require.NoError(t, tr.WriteResponse(resp))
	require.NoError(t, tr.WriteResponse(protocol.NewJsonRpcErrorResponse(protocol.ErrMethodNotFound, "nope", nil, 4)))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	first, err := protocol.ParseJsonRpcResponse([]byte(lines[0]))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(first.Result))

	second, err := protocol.ParseJsonRpcResponse([]byte(lines[1]))
	require.NoError(t, err)
	require.NotNil(t, second.Error)
	assert.Equal(t, protocol.ErrMethodNotFound, second.Error.Code)
}
