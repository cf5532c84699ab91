package api

import (
	"encoding/json"
	"fmt"
)

// JSONCodec encodes plain Go structs as JSON. It replaces Connect's default
// "json" codec, which only accepts protobuf messages.
type JSONCodec struct{}

// Name implements connect.Codec.
func (JSONCodec) Name() string {
	return "json"
}

// Marshal implements connect.Codec.
func (JSONCodec) Marshal(message any) ([]byte, error) {
	return json.Marshal(message)
}

// Unmarshal implements connect.Codec. An empty body decodes to the zero message.
func (JSONCodec) Unmarshal(data []byte, message any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, message); err != nil {
		return fmt.Errorf("decode %T: %w", message, err)
	}
	return nil
}
