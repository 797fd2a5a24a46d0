package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRequestUsesWireFieldNames(t *testing.T) {
	b, err := EncodeRequest(Request{
		ID:      "req-1",
		Method:  "GET",
		Path:    "/hello?x=1",
		Headers: map[string]string{"Host": "example"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"req-1","method":"GET","path":"/hello?x=1","body":"","headers":{"Host":"example"}}`, string(b))
}

func TestDecodeResponse(t *testing.T) {
	r, err := DecodeResponse([]byte(`{"id":"req-7","status":201,"body":"ok","headers":{"X-A":"1"},"ignored":1}`))
	require.NoError(t, err)
	assert.Equal(t, Response{ID: "req-7", Status: 201, Body: "ok", Headers: map[string]string{"X-A": "1"}}, r)
}

func TestDecodeResponseWithoutID(t *testing.T) {
	_, err := DecodeResponse([]byte(`{"status":200,"body":"x"}`))
	assert.ErrorContains(t, err, "missing id")
}

func TestDecodeResponseGarbage(t *testing.T) {
	_, err := DecodeResponse([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodeKeepsBodyVerbatim(t *testing.T) {
	b, err := EncodeResponse(Response{ID: "req-2", Status: 200, Body: "<b>&amp;</b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"id":"req-2","status":200,"body":"<b>&amp;</b>"}`, string(b))
}

func TestDecodeRejectsTrailingContent(t *testing.T) {
	_, err := DecodeResponse([]byte(`{"id":"a","status":200} {"id":"b"}`))
	assert.ErrorIs(t, err, errTrailing)

	_, err = DecodeRequest([]byte(`{"id":"a"}garbage`))
	assert.ErrorIs(t, err, errTrailing)
}
