package activity

import (
	"fmt"

	"github.com/bytedance/sonic"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Published values are a serialized google.protobuf.Struct.
const (
	ContentTypeHeader   = "content-type"
	ContentTypeProtobuf = "application/x-protobuf; messageType=google.protobuf.Struct"
)

// EncodeEntry serializes entry as a protobuf Struct carrying its JSON fields.
func EncodeEntry(entry Entry) ([]byte, error) {
	raw, err := sonic.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activity entry: %w", err)
	}
	var fields map[string]interface{}
	if err := sonic.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to marshal activity entry: %w", err)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build activity struct: %w", err)
	}
	data, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activity struct: %w", err)
	}
	return data, nil
}

// DecodeEntry is the inverse of EncodeEntry.
func DecodeEntry(data []byte) (Entry, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(data, s); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal activity struct: %w", err)
	}
	raw, err := sonic.Marshal(s.AsMap())
	if err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal activity entry: %w", err)
	}
	var entry Entry
	if err := sonic.Unmarshal(raw, &entry); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal activity entry: %w", err)
	}
	return entry, nil
}
