package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Session is a client-side Watch stream.
type Session struct {
	conn   *grpc.ClientConn
	stream *grpc.GenericClientStream[structpb.Struct, structpb.Struct]
	cancel context.CancelFunc
	log    *slog.Logger

	sendMu sync.Mutex
}

// Dial connects to addr and opens a Watch stream. Extra options are appended
// after the insecure transport credentials.
func Dial(ctx context.Context, addr string, log *slog.Logger, opts ...grpc.DialOption) (*Session, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	cs, err := conn.NewStream(ctx, &ServiceDesc.Streams[0], WatchMethod)
	if err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("starting stream: %w", err)
	}

	log.Info("connected to picks stream", "addr", addr)
	return &Session{
		conn:   conn,
		stream: &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: cs},
		cancel: cancel,
		log:    log,
	}, nil
}

// SetDate asks the server to switch dates.
func (s *Session) SetDate(date string) error {
	return s.send(commandMessage("date", date))
}

// SetFile asks the server to switch files.
func (s *Session) SetFile(file string) error {
	return s.send(commandMessage("file", file))
}

// Reload asks the server to refetch the catalog and the selected snapshot.
func (s *Session) Reload() error {
	return s.send(commandMessage("reload", ""))
}

func (s *Session) send(msg *structpb.Struct) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.stream.Send(msg)
}

// Recv blocks for the next server update.
func (s *Session) Recv() (Update, error) {
	msg, err := s.stream.Recv()
	if err != nil {
		return Update{}, err
	}
	return decodeUpdate(msg)
}

// Close ends the stream and the connection.
func (s *Session) Close() error {
	s.sendMu.Lock()
	_ = s.stream.CloseSend()
	s.sendMu.Unlock()
	s.cancel()
	return s.conn.Close()
}
