package grpctransport

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Requests and responses travel as google.protobuf.Struct messages through
// grpc's default proto codec. Domain types keep their JSON field names on the
// wire, so the same payloads serve the HTTP transport and the outbox.

var unmarshalOptions = protojson.UnmarshalOptions{DiscardUnknown: true}

func toMessage(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}

	msg := &structpb.Struct{}
	if err := unmarshalOptions.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("failed to build message from %T: %w", v, err)
	}

	return msg, nil
}

func fromMessage(msg *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %T: %w", v, err)
	}

	return nil
}
