package service

import (
	"encoding/json"
	"fmt"
)

// jsonCodec replaces connect's protobuf-JSON codec so that handlers can
// exchange plain Go structs. It answers to the same "json" name, so the
// Connect protocol's application/json content type keeps working.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("decode %T: %w", msg, err)
	}
	return nil
}
