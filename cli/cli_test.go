package cli

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/visionvansh/clipifypost-sub001/config"
	"github.com/visionvansh/clipifypost-sub001/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "approve-month", "refresh-stats", "sync-invites", "export"})
}

func TestApproveMonthRequiresMonth(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"approve-month"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "month")
}

func TestCommandsNeedDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	root := NewRootCommand()
	root.SetArgs([]string{"sync-invites"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func newTestRuntime(t *testing.T) *runtime {
	cfg := &config.Config{
		GatewayToken:   "gw-secret",
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	return newRuntime(cfg, zap.NewNop(), storagetest.NewDB(t))
}

func TestServerGatewayAndPublicRoutes(t *testing.T) {
	app := newServer(newTestRuntime(t))

	cases := []struct {
		name   string
		path   string
		token  string
		user   string
		status int
	}{
		{"health is public", "/health", "", "", http.StatusOK},
		{"metrics is public", "/metrics", "", "", http.StatusOK},
		{"api needs gateway token", "/brands", "", "alice", http.StatusUnauthorized},
		{"wrong token", "/brands", "nope", "alice", http.StatusUnauthorized},
		{"bearer token accepted", "/brands", "Bearer gw-secret", "alice", http.StatusOK},
		{"raw token accepted", "/brands", "gw-secret", "alice", http.StatusOK},
		{"user context still required", "/brands", "gw-secret", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", tc.token)
			}
			if tc.user != "" {
				req.Header.Set("X-User-ID", tc.user)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
