package persist

import "encoding/json"

// Codec converts cached values to bytes and back for snapshots.
// Values in an instance share one shape, so one codec per instance is
// enough.
type Codec interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// JSONCodec round-trips values through JSON. Decoded values come back in
// the generic JSON shapes (map[string]any, []any, float64, string, bool),
// which is what the API-response instances hold anyway.
type JSONCodec struct{}

func (JSONCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONCodec) Decode(data []byte) (any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}
