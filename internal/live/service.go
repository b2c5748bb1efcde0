// Package live exposes selection sessions over a gRPC bidirectional stream.
// Clients send date/file/reload commands and receive every resulting state.
//
// Messages are google.protobuf.Struct values, so no generated code is
// needed:
//
//	client -> server: {"date": "2024-05-01"}, {"file": "picked_stocks_..."} or {"reload": ""}
//	server -> client: {"type": "state", "state": {...}} or {"type": "error", "error": "..."}
package live

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"stockpicks/internal/selection"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "stockpicks.v1.Picks"
	// WatchMethod is the full method path of the Watch stream.
	WatchMethod = "/" + ServiceName + "/Watch"
)

// PicksServer is the server API for the Picks service.
type PicksServer interface {
	Watch(stream grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]) error
}

// ServiceDesc describes the Picks service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PicksServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "stockpicks/v1/picks.proto",
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	return srv.(PicksServer).Watch(&grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// Update is one server message: either a state or a command error.
type Update struct {
	State *selection.View
	Err   string
}

func stateMessage(v selection.View) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"type": "state", "state": m})
}

func errorMessage(msg string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"type":  structpb.NewStringValue("error"),
		"error": structpb.NewStringValue(msg),
	}}
}

func commandMessage(key, value string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		key: structpb.NewStringValue(value),
	}}
}

func decodeUpdate(s *structpb.Struct) (Update, error) {
	switch t := s.GetFields()["type"].GetStringValue(); t {
	case "error":
		return Update{Err: s.GetFields()["error"].GetStringValue()}, nil
	case "state":
		data, err := s.GetFields()["state"].MarshalJSON()
		if err != nil {
			return Update{}, err
		}
		var v selection.View
		if err := json.Unmarshal(data, &v); err != nil {
			return Update{}, fmt.Errorf("decoding state: %w", err)
		}
		return Update{State: &v}, nil
	default:
		return Update{}, fmt.Errorf("unknown message type %q", t)
	}
}
