package codec

import (
	"encoding/json"
	"fmt"
)

// JSONName identifies the JSON codec.
const JSONName = "json"

// JSON stores the snapshot as an indented JSON document.
type JSON struct{}

func (JSON) Name() string { return JSONName }

func (JSON) Encode(s Snapshot) ([]byte, error) {
	return json.MarshalIndent(normalize(s), "", "  ")
}

func (JSON) Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode json snapshot: %w", err)
	}
	return normalize(s), nil
}
