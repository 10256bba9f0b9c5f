package status

import (
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oggyb/jobswipe/internal/app"
	"github.com/oggyb/jobswipe/internal/realtime"
)

var errNoSource = errors.New("no unread count available")

func errNoOwner(owner string) error { return fmt.Errorf("no connection for owner %q", owner) }

// Registrar ties the status and health services into the gRPC server.
type Registrar struct {
	appCtx *app.AppContext
	unread UnreadSource
	health *health.Server
}

// NewRegistrar creates a new Registrar. unread may be nil.
func NewRegistrar(appCtx *app.AppContext, unread UnreadSource) *Registrar {
	return &Registrar{appCtx: appCtx, unread: unread, health: health.NewServer()}
}

// Health returns the health server, one service name per connection owner.
func (r *Registrar) Health() *health.Server { return r.health }

// Register attaches the status service and a health service that follows
// the connection states.
func (r *Registrar) Register(s grpc.ServiceRegistrar) {
	RegisterStatusServer(s, NewStatusService(r.appCtx, r.unread))
	healthpb.RegisterHealthServer(s, r.health)

	for _, snap := range r.appCtx.Realtime.Snapshots() {
		r.health.SetServingStatus(snap.Owner, servingStatus(snap.State))
	}
	r.appCtx.Realtime.Observe(func(snap realtime.Snapshot) {
		r.health.SetServingStatus(snap.Owner, servingStatus(snap.State))
	})
}

func servingStatus(s realtime.State) healthpb.HealthCheckResponse_ServingStatus {
	if s == realtime.Connected {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
