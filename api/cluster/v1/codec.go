package clusterv1

import (
	"encoding/json"
	"fmt"
)

// JSONCodec is a connect.Codec for plain Go structs.
//
// It registers under the name "json", replacing Connect's protobuf JSON
// codec, so requests travel as "application/json".
type JSONCodec struct{}

// Name implements connect.Codec.
func (JSONCodec) Name() string { return "json" }

// Marshal implements connect.Codec.
func (JSONCodec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("clusterv1: marshal %T: %w", msg, err)
	}
	return data, nil
}

// Unmarshal implements connect.Codec.
func (JSONCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("clusterv1: unmarshal %T: %w", msg, err)
	}
	return nil
}
