// Package identity carries the caller resolved by the upstream auth proxy.
package identity

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
)

const (
	HeaderUserID     = "X-User-Id"
	HeaderUserEmail  = "X-User-Email"
	HeaderUserName   = "X-User-Name"
	HeaderUserAdmin  = "X-User-Admin"
	HeaderProxyToken = "X-Proxy-Token"
)

type Identity struct {
	UserID  string
	Email   string
	Name    string
	IsAdmin bool
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// FromHeaders trusts the identity headers only when the proxy token matches. An empty
// configured token trusts nothing.
func FromHeaders(h http.Header, proxyToken string) (Identity, bool) {
	if proxyToken == "" {
		return Identity{}, false
	}
	presented := strings.TrimSpace(h.Get(HeaderProxyToken))
	if subtle.ConstantTimeCompare([]byte(presented), []byte(proxyToken)) != 1 {
		return Identity{}, false
	}

	userID := strings.TrimSpace(h.Get(HeaderUserID))
	if userID == "" {
		return Identity{}, false
	}
	admin, _ := strconv.ParseBool(strings.TrimSpace(h.Get(HeaderUserAdmin)))
	return Identity{
		UserID:  userID,
		Email:   strings.TrimSpace(h.Get(HeaderUserEmail)),
		Name:    strings.TrimSpace(h.Get(HeaderUserName)),
		IsAdmin: admin,
	}, true
}
