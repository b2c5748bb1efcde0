package live

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"stockpicks/internal/selection"
	"stockpicks/internal/snapshot"
	"stockpicks/internal/source"
)

// SessionObserver is notified of session lifecycle and controller activity.
type SessionObserver interface {
	selection.Observer
	SessionOpened()
	SessionClosed()
}

// Server implements the Watch gRPC endpoint. Each stream owns its own
// selection controller.
type Server struct {
	src      source.Source
	today    func() string
	observer SessionObserver // may be nil
	log      *slog.Logger
}

// NewServer creates a gRPC server over src. today seeds new sessions.
func NewServer(src source.Source, today func() string, observer SessionObserver, log *slog.Logger) *Server {
	return &Server{src: src, today: today, observer: observer, log: log}
}

// RegisterGRPC registers the server on the given gRPC server instance.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&ServiceDesc, s)
}

// Watch sends the current state, then a new state after every change. The
// stream ends when the client disconnects.
func (s *Server) Watch(stream grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]) error {
	ctx := stream.Context()
	log := s.log.With("session_id", uuid.NewString())

	var opts []selection.Option
	if s.observer != nil {
		opts = append(opts, selection.WithObserver(s.observer))
		s.observer.SessionOpened()
		defer s.observer.SessionClosed()
	}
	if n, ok := s.src.(source.RefreshNotifier); ok {
		refreshID, refreshed := n.SubscribeRefresh()
		defer n.UnsubscribeRefresh(refreshID)
		opts = append(opts, selection.WithCatalogUpdates(refreshed))
	}
	ctrl := selection.NewController(s.src, s.today, log, opts...)
	subID, states := ctrl.Subscribe(16)
	defer ctrl.Unsubscribe(subID)
	go ctrl.Run(ctx)

	log.Info("grpc session opened")

	errs := make(chan string, 4)
	recvDone := make(chan error, 1)
	go func() {
		recvDone <- s.readCommands(stream, ctrl, errs)
	}()

	send := func(v selection.View) error {
		msg, err := stateMessage(v)
		if err != nil {
			return err
		}
		return stream.Send(msg)
	}

	if err := send(ctrl.State().View()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("grpc session closed")
			return nil
		case err := <-recvDone:
			log.Info("grpc session closed", "error", err)
			return nil
		case st, ok := <-states:
			if !ok {
				return nil
			}
			if err := send(st.View()); err != nil {
				return err
			}
		case msg := <-errs:
			if err := stream.Send(errorMessage(msg)); err != nil {
				return err
			}
		}
	}
}

func (s *Server) readCommands(stream grpc.BidiStreamingServer[structpb.Struct, structpb.Struct], ctrl *selection.Controller, errs chan<- string) error {
	for {
		cmd, err := stream.Recv()
		if err != nil {
			return err
		}

		fields := cmd.GetFields()
		switch {
		case fields["date"] != nil:
			date := fields["date"].GetStringValue()
			if date != "" && !snapshot.ValidDate(date) {
				err = errors.New("date must be YYYY-MM-DD")
			} else {
				err = ctrl.SetDate(date)
			}
		case fields["file"] != nil:
			err = ctrl.SetFile(fields["file"].GetStringValue())
		case fields["reload"] != nil:
			ctrl.Reload(stream.Context())
		default:
			err = errors.New("command needs a date, file or reload field")
		}
		if err != nil {
			select {
			case errs <- err.Error():
			default:
			}
		}
	}
}
