package server

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// jsonCodec replaces the protobuf based json codec of connect. The messages of this API are
// plain Go structs.
type jsonCodec struct{}

var _ connect.Codec = jsonCodec{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}

// Codec is the handler and client option selecting the json codec.
func Codec() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
