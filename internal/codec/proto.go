package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoName identifies the protobuf codec.
const ProtoName = "proto"

// Proto stores the snapshot as a binary google.protobuf.Struct carrying the
// same logical document as the JSON codec.
type Proto struct{}

func (Proto) Name() string { return ProtoName }

func (Proto) Encode(s Snapshot) ([]byte, error) {
	doc, err := json.Marshal(normalize(s))
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, err
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}
	return proto.Marshal(st)
}

func (Proto) Decode(data []byte) (Snapshot, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return Snapshot{}, fmt.Errorf("decode proto snapshot: %w", err)
	}
	doc, err := json.Marshal(st.AsMap())
	if err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal(doc, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode proto snapshot: %w", err)
	}
	return normalize(s), nil
}
