package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ContentType of every encoded envelope.
const ContentType = "application/json"

var errTrailing = errors.New("trailing content after envelope")

// EncodeRequest is the payload form used by byte-level transports.
func EncodeRequest(r Request) ([]byte, error) { return encode(r) }

// DecodeRequest is used by cores (and tests) reading off a byte transport.
func DecodeRequest(b []byte) (Request, error) {
	var r Request
	if err := decode(b, &r); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return r, nil
}

func EncodeResponse(r Response) ([]byte, error) { return encode(r) }

// DecodeResponse rejects payloads without an id; the bridge cannot correlate
// them. Unknown fields are ignored so cores may attach their own.
func DecodeResponse(b []byte) (Response, error) {
	var r Response
	if err := decode(b, &r); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if r.ID == "" {
		return Response{}, fmt.Errorf("decode response: missing id")
	}
	return r, nil
}

// encode leaves HTML untouched; bodies are opaque and must survive verbatim.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// decode accepts exactly one JSON value.
func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return errTrailing
	}
	return nil
}
