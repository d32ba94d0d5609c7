package server

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/ChuLiYu/shift-rota/internal/controller"
	"github.com/ChuLiYu/shift-rota/internal/eligibility"
	"github.com/ChuLiYu/shift-rota/internal/engine"
	"github.com/ChuLiYu/shift-rota/internal/reassign"
	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// newBufconnClient starts a controller and the service on an in-memory
// listener and returns a connected client.
func newBufconnClient(t *testing.T) *Client {
	t.Helper()
	dir := t.TempDir()

	ctrl, err := controller.NewController(controller.Config{
		Engine: engine.Config{
			Catalog: types.Catalog{
				Positions: []types.Position{"flow", "wrap", "val"},
				OffBucket: "off",
				Days:      []types.Day{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
			},
			Rules:             eligibility.Rules{ProtectedPositions: []types.Position{"wrap"}, RestrictedWorkers: []string{"Paty"}},
			ReservedPositions: []types.Position{"val"},
			LookbackWeeks:     2,
		},
		DaysPerWeek:   5,
		WALPath:       filepath.Join(dir, "rota.wal"),
		SnapshotPath:  filepath.Join(dir, "rota.snapshot"),
		WALBufferSize: 1,
	}, engine.IdentityPermuter{})
	require.NoError(t, err)
	require.NoError(t, ctrl.Start())

	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(ctrl)
	go func() { _ = gs.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		gs.Stop()
		ctrl.Stop()
	})
	return NewClient(conn)
}

func seedRoster() []types.Worker {
	return []types.Worker{
		{ID: "1", Name: "Denise", Preferences: []types.Position{"flow"}},
		{ID: "2", Name: "Joseph", Preferences: []types.Position{"wrap"}},
		{ID: "3", Name: "Sid", LockedTo: "val"},
	}
}

func seedNeeds() types.NeedMatrix {
	needs := types.NeedMatrix{}
	for _, d := range []types.Day{"Mon", "Tue", "Wed", "Thu", "Fri"} {
		needs.Set("flow", d, 1)
		needs.Set("wrap", d, 1)
	}
	return needs
}

func TestGenerateOverGRPC(t *testing.T) {
	client := newBufconnClient(t)
	ctx := context.Background()

	require.NoError(t, client.SetRoster(ctx, seedRoster()))
	require.NoError(t, client.SetNeeds(ctx, seedNeeds()))

	res, err := client.Generate(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, res.WeekID)
	assert.Empty(t, res.Shortfalls)
	for _, d := range res.Schedule.Days {
		assert.True(t, res.Schedule.Assigned("flow", d, "1"))
		assert.True(t, res.Schedule.Assigned("wrap", d, "2"))
		assert.True(t, res.Schedule.Assigned("val", d, "3"))
	}

	s, err := client.GetSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Schedule, s)

	counts, err := client.GetCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["1"]["flow"])
	assert.Equal(t, 0, counts["1"]["wrap"])

	st, err := client.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, st.HasSchedule)
	assert.Equal(t, 3, st.RosterSize)

	roster, err := client.GetRoster(ctx)
	require.NoError(t, err)
	require.Len(t, roster, 3)
	assert.Equal(t, types.Position("val"), roster[2].LockedTo)
}

func TestMoveOverGRPC(t *testing.T) {
	client := newBufconnClient(t)
	ctx := context.Background()
	require.NoError(t, client.SetRoster(ctx, seedRoster()))
	require.NoError(t, client.SetNeeds(ctx, seedNeeds()))
	_, err := client.Generate(ctx)
	require.NoError(t, err)

	res, err := client.Move(ctx, reassign.Move{FromPosition: "flow", FromDay: "Tue", ToPosition: "wrap", ToDay: "Tue", ToIndex: 5})
	require.NoError(t, err)
	assert.Equal(t, reassign.OutcomeMoved, res.Outcome)
	assert.Equal(t, []types.Assignee{{ID: "2", Name: "Joseph"}, {ID: "1", Name: "Denise"}}, res.Schedule.At("wrap", "Tue"))

	counts, err := client.GetCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, counts["1"]["flow"])
	assert.Equal(t, 1, counts["1"]["wrap"])

	res, err = client.Move(ctx, reassign.Move{FromPosition: "flow", FromDay: "Tue", ToPosition: "wrap", ToDay: "Tue"})
	require.NoError(t, err)
	assert.Equal(t, reassign.OutcomeNoOp, res.Outcome, "source slot is now empty")
}

func TestErrorCodes(t *testing.T) {
	client := newBufconnClient(t)
	ctx := context.Background()

	_, err := client.Move(ctx, reassign.Move{FromPosition: "flow", FromDay: "Mon", ToPosition: "wrap", ToDay: "Mon"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	err = client.SetNeeds(ctx, types.NeedMatrix{"dock": {"Mon": 1}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	err = client.SetRoster(ctx, []types.Worker{{Name: "no id"}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	err = client.SetDays(ctx, 9)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSetDaysAndReset(t *testing.T) {
	client := newBufconnClient(t)
	ctx := context.Background()
	require.NoError(t, client.SetRoster(ctx, seedRoster()))
	require.NoError(t, client.SetDays(ctx, 6))

	res, err := client.Generate(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Schedule.Days, 6)

	require.NoError(t, client.Reset(ctx))
	s, err := client.GetSchedule(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsEmpty())
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{&types.ConfigurationError{Kind: "position", Label: "dock"}, codes.InvalidArgument},
		{controller.ErrNoSchedule, codes.FailedPrecondition},
		{controller.ErrStopped, codes.Unavailable},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{assert.AnError, codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(toStatus(tt.err)), tt.err.Error())
	}
}
