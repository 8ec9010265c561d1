package grpcapi

import "fmt"

// Codec marshals the hand-written booking.v1 messages. It registers under
// the name "proto" so stock protobuf clients interoperate with it.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("grpcapi codec: cannot marshal %T", v)
	}
	return m.Marshal(), nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("grpcapi codec: cannot unmarshal into %T", v)
	}
	return m.Unmarshal(data)
}

func (Codec) Name() string { return "proto" }
