// Package status exposes the live connections and the unread badge of the
// running client over gRPC.
package status

import (
	"context"
	"sort"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oggyb/jobswipe/internal/app"
	svcErr "github.com/oggyb/jobswipe/internal/errors"
	"github.com/oggyb/jobswipe/internal/realtime"
)

// UnreadSource reports the live badge count, usually the notification
// session of the running client.
type UnreadSource interface {
	UnreadCount() int64
}

// Service implements StatusServer on top of the connection manager.
type Service struct {
	appCtx *app.AppContext
	unread UnreadSource
}

// NewStatusService creates the service. unread may be nil, in which case
// the count is read from the Redis mirror.
func NewStatusService(appCtx *app.AppContext, unread UnreadSource) *Service {
	return &Service{appCtx: appCtx, unread: unread}
}

// ListConnections returns every open connection, sorted by owner.
//
// Response shape:
//
//	{"connections": [{"owner": "chat", "scope": "7", "state": "CONNECTED", ...}]}
func (s *Service) ListConnections(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snaps := s.appCtx.Realtime.Snapshots()
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Owner < snaps[j].Owner })

	list := make([]any, 0, len(snaps))
	for _, snap := range snaps {
		list = append(list, connectionFields(snap))
	}
	resp, err := structpb.NewStruct(map[string]any{"connections": list})
	if err != nil {
		s.appCtx.Logger.Error("ListConnections encode failed", "err", err)
		return nil, svcErr.Map(err)
	}

	s.appCtx.Logger.Debug("ListConnections result", "count", len(list))
	return resp, nil
}

// GetConnection returns the connection of one owner.
func (s *Service) GetConnection(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	owner := req.GetValue()
	if owner == "" {
		return nil, svcErr.InvalidArgument("owner is required")
	}

	h, ok := s.appCtx.Realtime.Get(owner)
	if !ok {
		return nil, svcErr.Map(svcErr.Wrap(svcErr.ErrNotFound, "get connection", errNoOwner(owner)))
	}
	resp, err := structpb.NewStruct(connectionFields(h.Snapshot()))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return resp, nil
}

// GetUnreadCount returns the badge count of the signed-in user.
func (s *Service) GetUnreadCount(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	if s.unread != nil {
		return wrapperspb.Int64(s.unread.UnreadCount()), nil
	}

	rc := s.appCtx.RedisCache
	if rc == nil {
		return nil, svcErr.Map(svcErr.Wrap(svcErr.ErrNotFound, "get unread count", errNoSource))
	}
	userID, err := s.appCtx.UserID()
	if err != nil {
		return nil, svcErr.Map(err)
	}
	n, ok, err := rc.GetUnreadCount(ctx, userID)
	if err != nil {
		s.appCtx.Logger.Error("GetUnreadCount failed", "user", userID, "err", err)
		return nil, svcErr.Map(err)
	}
	if !ok {
		return nil, svcErr.Map(svcErr.Wrap(svcErr.ErrNotFound, "get unread count", errNoSource))
	}
	return wrapperspb.Int64(n), nil
}

func connectionFields(snap realtime.Snapshot) map[string]any {
	m := map[string]any{
		"owner":      snap.Owner,
		"scope":      snap.Scope,
		"session_id": snap.SessionID,
		"state":      string(snap.State),
	}
	if !snap.Since.IsZero() {
		m["since"] = snap.Since.UTC().Format(time.RFC3339Nano)
	}
	if snap.Err != nil {
		m["error"] = snap.Err.Error()
	}
	return m
}
