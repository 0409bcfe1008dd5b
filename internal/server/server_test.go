package server_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/avidquiz/internal/catalog"
	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/server"
)

func TestInit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	lessonsFile := filepath.Join(dir, "lessons.json")
	writeLessons(t, lessonsFile, 6)

	rs := miniredis.RunT(t)

	c := server.DefaultConfig()
	c.Log.Level = "error"
	c.Catalog.Files = []catalog.File{
		{Path: lessonsFile},
		{Path: filepath.Join(dir, "missing.json"), Source: "github", Optional: true},
	}
	c.Catalog.SQLitePath = filepath.Join(dir, "db", "lessons.db")
	c.Redis.Session.Addrs = []string{rs.Addr()}
	c.Redis.Pubsub.Addrs = []string{rs.Addr()}
	c.Redis.Leaderboard.Addrs = []string{rs.Addr()}
	c.Redis.Leaderboard.Prefix = "test"

	s, err := server.Init(c)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)

	tests := map[string]struct {
		method     string
		path       string
		body       string
		wantStatus int
		assert     func(t *testing.T, body string)
	}{
		"healthz": {
			method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK,
			assert: func(t *testing.T, body string) {
				assert.Equal(t, "ok", body)
			},
		},
		"metrics": {
			method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK,
			assert: func(t *testing.T, body string) {
				assert.Contains(t, body, "go_goroutines")
			},
		},
		"lessons": {
			method: http.MethodGet, path: "/api/lessons", wantStatus: http.StatusOK,
			assert: func(t *testing.T, body string) {
				var resp struct {
					Categories []string `json:"categories"`
				}
				require.NoError(t, json.Unmarshal([]byte(body), &resp))
				assert.Equal(t, []string{"cat-0", "cat-1"}, resp.Categories)
			},
		},
		"session stored in redis": {
			method: http.MethodPost, path: "/api/session?stage=add", body: `{"title": "Lesson 1"}`, wantStatus: http.StatusOK,
			assert: func(t *testing.T, body string) {
				assert.True(t, rs.Exists("avidquiz:session:server-test"), "keys: %v", rs.Keys())
			},
		},
		"ai disabled": {
			method: http.MethodGet, path: "/api/ai/config", wantStatus: http.StatusOK,
			assert: func(t *testing.T, body string) {
				assert.JSONEq(t, `{"aiEnabled": false, "provider": "", "maxPerDay": 10}`, body)
			},
		},
		"no challenges": {
			method: http.MethodGet, path: "/api/prochallenge", wantStatus: http.StatusServiceUnavailable,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Session-ID", "server-test")

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code, "body: %s", rec.Body.String())
			if tt.assert != nil {
				tt.assert(t, rec.Body.String())
			}
		})
	}
}

func TestInit_BadCatalog(t *testing.T) {
	c := server.DefaultConfig()
	c.Log.Level = "error"
	c.Catalog.Files = []catalog.File{{Path: filepath.Join(t.TempDir(), "missing.json")}}

	_, err := server.Init(c)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := map[string]struct {
		arrange func(c *server.Config)
		wantErr string
	}{
		"defaults": {
			arrange: func(c *server.Config) {},
		},
		"zero rewards are allowed": {
			arrange: func(c *server.Config) {
				c.Quiz.CoinsPerCorrect = 0
				c.Quiz.XPPerQuiz = 0
			},
		},
		"negative coins": {
			arrange: func(c *server.Config) {
				c.Quiz.CoinsPerCorrect = -1
			},
			wantErr: "coins per correct answer",
		},
		"negative xp": {
			arrange: func(c *server.Config) {
				c.Quiz.XPPerQuiz = -30
			},
			wantErr: "xp per quiz",
		},
		"negative hint cost": {
			arrange: func(c *server.Config) {
				c.Challenge.HintCost = -2
			},
			wantErr: "challenge.hintCost",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := server.DefaultConfig()
			tt.arrange(&c)

			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInit_InvalidConfig(t *testing.T) {
	c := server.DefaultConfig()
	c.Log.Level = "error"
	c.Quiz.CoinsPerCorrect = -10

	_, err := server.Init(c)
	assert.ErrorContains(t, err, "invalid config")
}

func writeLessons(t *testing.T, path string, n int) {
	t.Helper()

	var ls []domain.Lesson
	for i := range n {
		ls = append(ls, domain.Lesson{
			Title:    fmt.Sprintf("Lesson %d", i),
			Category: fmt.Sprintf("cat-%d", i%2),
			Explain:  fmt.Sprintf("Explanation %d", i),
		})
	}

	b, err := json.Marshal(ls)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
}
