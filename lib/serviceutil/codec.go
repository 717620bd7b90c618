package serviceutil

import (
	"encoding/json"
)

// JSONCodec lets connect handlers exchange plain Go structs as JSON, for
// services that have no protobuf schema.
type JSONCodec struct{}

func (JSONCodec) Name() string {
	return "json"
}

func (JSONCodec) Marshal(message any) ([]byte, error) {
	return json.Marshal(message)
}

func (JSONCodec) Unmarshal(data []byte, message any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, message)
}
