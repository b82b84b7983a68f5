// Package server provides the HTTP API of a hosting process: the current snapshot, a live
// snapshot stream and the outcome of a race.
package server

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/gofrs/uuid/v5"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/outcome"
	"github.com/mpapenbr/racesim-engine/pkg/repository/api"
	"github.com/mpapenbr/racesim-engine/pkg/utils"
)

var errNotFinished = errors.New("race not finished yet")

func NewServer(opts ...Option) *raceServer {
	ret := &raceServer{
		l: log.Default().Named("server"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

type Option func(*raceServer)

func WithRaceLookup(lookup *utils.RaceLookup) Option {
	return func(srv *raceServer) {
		srv.lookup = lookup
	}
}

// WithRepositories enables results of races which are no longer hosted by this process.
func WithRepositories(repos api.Repositories) Option {
	return func(srv *raceServer) {
		srv.repos = repos
	}
}

func WithDebugWire(arg bool) Option {
	return func(srv *raceServer) {
		srv.debugWire = arg
	}
}

func WithLogger(l *log.Logger) Option {
	return func(srv *raceServer) {
		srv.l = l
	}
}

type raceServer struct {
	lookup    *utils.RaceLookup
	repos     api.Repositories
	debugWire bool // if true, debug events affecting "wire" actions (send/receive)
	l         *log.Logger
}

// Handler returns the path prefix and the handler serving all procedures of the service.
func (s *raceServer) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{Codec()}, opts...)
	mux := http.NewServeMux()
	mux.Handle(GetSnapshotProcedure,
		connect.NewUnaryHandler(GetSnapshotProcedure, s.GetSnapshot, opts...))
	mux.Handle(GetResultProcedure,
		connect.NewUnaryHandler(GetResultProcedure, s.GetResult, opts...))
	mux.Handle(WatchSnapshotsProcedure,
		connect.NewServerStreamHandler(WatchSnapshotsProcedure, s.WatchSnapshots, opts...))
	return "/" + ServiceName + "/", mux
}

//nolint:whitespace // can't make both editor and linter happy
func (s *raceServer) GetSnapshot(
	ctx context.Context,
	req *connect.Request[RaceRequest],
) (*connect.Response[SnapshotResponse], error) {
	rd, err := s.race(req.Msg.RaceID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&SnapshotResponse{State: rd.Snapshot()}), nil
}

//nolint:whitespace // can't make both editor and linter happy
func (s *raceServer) GetResult(
	ctx context.Context,
	req *connect.Request[RaceRequest],
) (*connect.Response[ResultResponse], error) {
	if s.lookup != nil {
		if rd, err := s.lookup.GetRace(req.Msg.RaceID); err == nil {
			o, ok := rd.Outcome()
			if !ok {
				return nil, connect.NewError(connect.CodeFailedPrecondition, errNotFinished)
			}
			return connect.NewResponse(fromOutcome(o, rd.Snapshot().Tick)), nil
		}
	}
	if s.repos == nil {
		return nil, connect.NewError(connect.CodeNotFound, utils.ErrRaceNotFound)
	}
	raceID, err := uuid.FromString(req.Msg.RaceID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return s.storedResult(ctx, raceID)
}

//nolint:whitespace // can't make both editor and linter happy
func (s *raceServer) storedResult(ctx context.Context, raceID uuid.UUID) (
	*connect.Response[ResultResponse], error,
) {
	res, err := s.repos.Result().LoadByRaceID(ctx, raceID)
	if err != nil {
		if errors.Is(err, api.ErrNoRows) {
			return nil, connect.NewError(connect.CodeNotFound, utils.ErrRaceNotFound)
		}
		s.l.Error("could not load result", log.ErrorField(err))
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	ret := &ResultResponse{
		RaceID:   raceID.String(),
		WinnerID: res.WinnerID,
		Ticks:    res.Ticks,
		Source:   "stored",
	}
	entry, err := s.repos.Ledger().LoadByRaceID(ctx, raceID)
	switch {
	case err == nil:
		ret.LoserID = entry.LoserID
		ret.Points = entry.Points
		ret.Tokens = entry.Tokens
	case errors.Is(err, api.ErrNoRows):
		s.l.Debug("result without ledger entry", log.String("race", raceID.String()))
	default:
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(ret), nil
}

// WatchSnapshots sends the current snapshot followed by every new one. The stream ends after
// the finishing snapshot was sent.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *raceServer) WatchSnapshots(
	ctx context.Context,
	req *connect.Request[RaceRequest],
	stream *connect.ServerStream[SnapshotResponse],
) error {
	rd, err := s.race(req.Msg.RaceID)
	if err != nil {
		return err
	}
	s.l.Debug("Sending snapshots", log.String("race", rd.RaceID))
	if rd.Snapshots == nil {
		return connect.NewError(connect.CodeUnavailable, errors.New("no live data"))
	}
	dataChan := rd.Snapshots.Subscribe()
	defer rd.Snapshots.CancelSubscription(dataChan)

	current := rd.Snapshot()
	if err := stream.Send(&SnapshotResponse{State: current}); err != nil {
		return err
	}
	if current.Finished {
		return nil
	}
	last := current.Tick
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-dataChan:
			if !ok {
				s.l.Debug("snapshot stream closed", log.String("race", rd.RaceID))
				return nil
			}
			if st.Tick <= last && !st.Finished {
				continue
			}
			last = st.Tick
			if s.debugWire {
				s.l.Debug("Send snapshot",
					log.String("race", rd.RaceID), log.Int("tick", st.Tick))
			}
			if err := stream.Send(&SnapshotResponse{State: st}); err != nil {
				return err
			}
			if st.Finished {
				return nil
			}
		}
	}
}

func (s *raceServer) race(raceID string) (*utils.RaceData, error) {
	if s.lookup == nil {
		return nil, connect.NewError(connect.CodeNotFound, utils.ErrRaceNotFound)
	}
	rd, err := s.lookup.GetRace(raceID)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	return rd, nil
}

func fromOutcome(o outcome.Outcome, ticks int) *ResultResponse {
	return &ResultResponse{
		RaceID:   o.RaceID.String(),
		WinnerID: o.WinnerID,
		LoserID:  o.LoserID,
		Ticks:    ticks,
		Gap:      o.Gap,
		Points:   o.Points,
		Tokens:   o.Tokens,
		Source:   "live",
	}
}
