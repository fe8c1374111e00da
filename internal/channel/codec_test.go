package channel

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"id":"7","channel":"disk_space","method":"getFreeDiskSpaceForPath","args":{"path":"C:\\","n":12}}`))
	require.NoError(t, err)

	assert.Equal(t, "7", req.ID)
	assert.Equal(t, "disk_space", req.Channel)
	assert.Equal(t, "getFreeDiskSpaceForPath", req.Method)

	args, ok := req.Args.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, `C:\`, args["path"])
	assert.Equal(t, json.Number("12"), args["n"])

	call := req.Call()
	assert.Equal(t, req.Method, call.Method)
	assert.Equal(t, req.Args, call.Arguments)
}

func TestDecodeRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `hello`},
		{"truncated", `{"method":"x"`},
		{"missing method", `{"id":"1"}`},
		{"wrong type", `{"method":5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDecodeArgs(t *testing.T) {
	args, err := DecodeArgs([]byte("  \n"))
	require.NoError(t, err)
	assert.Nil(t, args)

	args, err = DecodeArgs([]byte(`{"path":"/tmp"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": "/tmp"}, args)

	args, err = DecodeArgs([]byte(`"/tmp"`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp", args)

	_, err = DecodeArgs([]byte(`{`))
	assert.Error(t, err)
}

func TestEncodeResponse(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want string
	}{
		{
			name: "success",
			resp: Response{ID: "1", Result: 512.5},
			want: `{"id":"1","result":512.5}`,
		},
		{
			name: "null success keeps result key",
			resp: Response{ID: "2"},
			want: `{"id":"2","result":null}`,
		},
		{
			name: "error",
			resp: Response{ID: "3", Error: &ErrorBody{Code: "Bad Arguments", Message: "Expected string"}},
			want: `{"id":"3","error":{"code":"Bad Arguments","message":"Expected string"}}`,
		},
		{
			name: "not implemented",
			resp: Response{ID: "4", NotImplemented: true},
			want: `{"id":"4","not_implemented":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeResponse(tt.resp)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", string(data))
		})
	}
}

func TestResponseStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, Response{}.Status())
	assert.Equal(t, StatusNotImplemented, Response{NotImplemented: true}.Status())
	assert.Equal(t, StatusError, Response{Error: &ErrorBody{}}.Status())

	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "not_implemented", StatusNotImplemented.String())
}

func TestBadEnvelope(t *testing.T) {
	resp := BadEnvelope("9", errors.New("unexpected EOF"))

	require.Equal(t, StatusError, resp.Status())
	assert.Equal(t, "9", resp.ID)
	assert.Equal(t, CodeBadEnvelope, resp.Error.Code)
	assert.Equal(t, "unexpected EOF", resp.Error.Message)
}
