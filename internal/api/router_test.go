package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/snapvault/internal/api/ws"
	"github.com/your-org/snapvault/internal/auth"
)

func TestRouterRegistersGroupLifecycleRoutes(t *testing.T) {
	r := NewRouter(RouterConfig{
		Hub:    ws.NewHub(nil),
		Tokens: auth.NewTokenManager("test-secret", time.Hour),
	})

	type route struct{ method, path string }
	registered := map[route]bool{}
	for _, ri := range r.Routes() {
		registered[route{ri.Method, ri.Path}] = true
	}

	want := []route{
		{"POST", "/v1/groups"},
		{"GET", "/v1/groups"},
		{"GET", "/v1/groups/:id"},
		{"PATCH", "/v1/groups/:id"},
		{"DELETE", "/v1/groups/:id"},
		{"POST", "/v1/groups/join"},
		{"DELETE", "/v1/groups/:id/leave"},
		{"GET", "/v1/groups/:id/members"},
		{"PUT", "/v1/groups/:id/members/:userId/role"},
		{"PUT", "/v1/groups/:id/owner"},
		{"POST", "/v1/groups/:id/deactivate"},
		{"POST", "/v1/groups/:id/activate"},
	}
	for _, rt := range want {
		assert.True(t, registered[rt], "missing route %s %s", rt.method, rt.path)
	}
}
