package shared

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// Actor identifies who performs an operation and in which tenant/branch.
type Actor struct {
	TenantID int64
	BranchID int64
	UserID   int64
	Role     string
}

// Valid reports whether the actor carries the identifiers every operation needs.
func (a Actor) Valid() bool {
	return a.TenantID > 0 && a.UserID > 0
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// Header names set by the authenticating gateway.
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderBranchID = "X-Branch-ID"
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// ActorResolver turns an inbound request into an Actor.
type ActorResolver interface {
	Resolve(r *http.Request) (Actor, error)
}

// HeaderActorResolver trusts identity headers injected by an upstream gateway.
type HeaderActorResolver struct{}

// Resolve reads the actor headers. Branch is optional.
func (HeaderActorResolver) Resolve(r *http.Request) (Actor, error) {
	tenantID, err := headerID(r, HeaderTenantID)
	if err != nil {
		return Actor{}, err
	}
	userID, err := headerID(r, HeaderUserID)
	if err != nil {
		return Actor{}, err
	}
	actor := Actor{TenantID: tenantID, UserID: userID, Role: strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderUserRole)))}
	if raw := strings.TrimSpace(r.Header.Get(HeaderBranchID)); raw != "" {
		branchID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || branchID <= 0 {
			return Actor{}, Validationf("invalid %s header", HeaderBranchID)
		}
		actor.BranchID = branchID
	}
	return actor, nil
}

func headerID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(name))
	if raw == "" {
		return 0, ErrUnauthorized
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrUnauthorized
	}
	return id, nil
}
