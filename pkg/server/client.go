package server

import (
	"context"

	"connectrpc.com/connect"
)

// Client calls the race service.
type Client struct {
	getSnapshot    *connect.Client[RaceRequest, SnapshotResponse]
	getResult      *connect.Client[RaceRequest, ResultResponse]
	watchSnapshots *connect.Client[RaceRequest, SnapshotResponse]
}

//nolint:whitespace // can't make both editor and linter happy
func NewClient(
	httpClient connect.HTTPClient,
	baseURL string,
	opts ...connect.ClientOption,
) *Client {
	opts = append([]connect.ClientOption{Codec()}, opts...)
	return &Client{
		getSnapshot: connect.NewClient[RaceRequest, SnapshotResponse](
			httpClient, baseURL+GetSnapshotProcedure, opts...),
		getResult: connect.NewClient[RaceRequest, ResultResponse](
			httpClient, baseURL+GetResultProcedure, opts...),
		watchSnapshots: connect.NewClient[RaceRequest, SnapshotResponse](
			httpClient, baseURL+WatchSnapshotsProcedure, opts...),
	}
}

func (c *Client) GetSnapshot(ctx context.Context, raceID string) (*SnapshotResponse, error) {
	resp, err := c.getSnapshot.CallUnary(ctx, connect.NewRequest(&RaceRequest{RaceID: raceID}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) GetResult(ctx context.Context, raceID string) (*ResultResponse, error) {
	resp, err := c.getResult.CallUnary(ctx, connect.NewRequest(&RaceRequest{RaceID: raceID}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (c *Client) WatchSnapshots(ctx context.Context, raceID string) (
	*connect.ServerStreamForClient[SnapshotResponse], error,
) {
	return c.watchSnapshots.CallServerStream(ctx,
		connect.NewRequest(&RaceRequest{RaceID: raceID}))
}
