package routeconnect

import "encoding/json"

// jsonCodec implements connect.Codec over plain JSON. It stands in for the
// protobuf binary codec protoc-gen-connect-go would normally wire up: since
// routepb's messages are hand-authored structs rather than compiled
// proto.Message/FileDescriptor pairs, there is no descriptor to drive the
// protobuf codec without running protoc. JSON is the only other codec
// connect-rpc ships a name for ("json"), so clients that speak plain
// Connect-over-HTTP (not the gRPC wire protocol's length-prefixed framing)
// interoperate with this service out of the box.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
