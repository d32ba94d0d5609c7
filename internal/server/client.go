package server

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ChuLiYu/shift-rota/internal/controller"
	"github.com/ChuLiYu/shift-rota/internal/reassign"
	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// Client typed client for rota.v1.RotaService
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial connects to addr without transport security. The caller closes the
// returned connection.
func Dial(addr string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewClient(conn), conn, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out proto.Message) error {
	return c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out)
}

// call sends req (nil for Empty) and decodes a BytesValue reply into out.
func (c *Client) call(ctx context.Context, method string, req any, out any) error {
	var in proto.Message = &emptypb.Empty{}
	if req != nil {
		b, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", method, err)
		}
		in = wrapperspb.Bytes(b)
	}

	if out == nil {
		return c.invoke(ctx, method, in, &emptypb.Empty{})
	}
	reply := &wrapperspb.BytesValue{}
	if err := c.invoke(ctx, method, in, reply); err != nil {
		return err
	}
	if err := json.Unmarshal(reply.GetValue(), out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// Generate builds a new week on the server.
func (c *Client) Generate(ctx context.Context) (controller.GenerateResult, error) {
	var res controller.GenerateResult
	err := c.call(ctx, "Generate", nil, &res)
	return res, err
}

// Move applies one manual move on the server.
func (c *Client) Move(ctx context.Context, m reassign.Move) (reassign.Result, error) {
	var res reassign.Result
	err := c.call(ctx, "Move", m, &res)
	return res, err
}

// GetSchedule fetches the current schedule.
func (c *Client) GetSchedule(ctx context.Context) (types.Schedule, error) {
	var s types.Schedule
	err := c.call(ctx, "GetSchedule", nil, &s)
	return s, err
}

// GetCounts fetches the weeks-worked table.
func (c *Client) GetCounts(ctx context.Context) (map[types.WorkerID]map[types.Position]int, error) {
	var counts map[types.WorkerID]map[types.Position]int
	err := c.call(ctx, "GetCounts", nil, &counts)
	return counts, err
}

// GetStatus fetches the controller summary.
func (c *Client) GetStatus(ctx context.Context) (controller.Status, error) {
	var st controller.Status
	err := c.call(ctx, "GetStatus", nil, &st)
	return st, err
}

// GetRoster fetches the roster.
func (c *Client) GetRoster(ctx context.Context) ([]types.Worker, error) {
	var roster []types.Worker
	err := c.call(ctx, "GetRoster", nil, &roster)
	return roster, err
}

// SetRoster replaces the roster on the server.
func (c *Client) SetRoster(ctx context.Context, roster []types.Worker) error {
	return c.call(ctx, "SetRoster", roster, nil)
}

// SetNeeds replaces the need matrix on the server.
func (c *Client) SetNeeds(ctx context.Context, needs types.NeedMatrix) error {
	return c.call(ctx, "SetNeeds", needs, nil)
}

// SetDays sets the number of active days on the server.
func (c *Client) SetDays(ctx context.Context, n int) error {
	return c.call(ctx, "SetDays", n, nil)
}

// Reset clears the current schedule on the server.
func (c *Client) Reset(ctx context.Context) error {
	return c.call(ctx, "Reset", nil, nil)
}
