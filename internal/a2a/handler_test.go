package a2a

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/discovery"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
)

type stubRunner struct {
	got  models.Profile
	opts discovery.Options
	res  *discovery.Result
	err  error
}

func (s *stubRunner) Run(_ context.Context, p models.Profile, opts discovery.Options) (*discovery.Result, error) {
	s.got = p
	s.opts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

func okRunner() *stubRunner {
	return &stubRunner{res: &discovery.Result{
		RunID: "run-1",
		Outputs: models.Outputs{
			ProfileAnalysis:             "analysis",
			StartupIdeasResearch:        "research",
			PersonalizedRecommendations: "recs",
		},
	}}
}

func newRouter(r Runner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewA2AHandler(r, nil)
	router := gin.New()
	router.POST("/a2a/discovery", h.HandleDiscovery)
	router.GET("/.well-known/agent.json", h.ServeAgentCard)
	return router
}

func post(t *testing.T, router http.Handler, body string) JSONRPCResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/a2a/discovery", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func taskOf(t *testing.T, resp JSONRPCResponse) TaskResult {
	t.Helper()
	require.Nil(t, resp.Error)
	b, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var task TaskResult
	require.NoError(t, json.Unmarshal(b, &task))
	return task
}

const dataRequest = `{
  "jsonrpc": "2.0",
  "id": 7,
  "method": "message/send",
  "params": {
    "message": {
      "kind": "message",
      "role": "user",
      "taskId": "task-42",
      "parts": [{"kind": "data", "data": {"profile": {"interest_area": "AI / Automation", "skill_strength": "technical"}}}]
    }
  }
}`

func TestHandleDiscoveryDataPart(t *testing.T) {
	runner := okRunner()
	resp := post(t, newRouter(runner), dataRequest)

	assert.JSONEq(t, "7", string(resp.ID))
	task := taskOf(t, resp)
	assert.Equal(t, "task-42", task.ID)
	assert.Equal(t, StateCompleted, task.Status.State)
	require.Len(t, task.Artifacts, 3)
	assert.Equal(t, "Profile Analysis", task.Artifacts[0].Name)
	assert.Equal(t, "recs", task.Artifacts[2].Parts[0].Text)

	assert.Equal(t, "AI / Automation", runner.got.InterestArea)
	assert.Equal(t, "a2a", runner.opts.UserID)
}

func TestHandleDiscoveryTextPart(t *testing.T) {
	runner := okRunner()
	body := `{"jsonrpc":"2.0","id":"abc","method":"message/send","params":{"message":{"kind":"message","role":"user",
		"parts":[{"kind":"text","text":"<p>{\"interest_area\": \"Fintech\"}</p>"}]}}}`
	task := taskOf(t, post(t, newRouter(runner), body))

	assert.Equal(t, StateCompleted, task.Status.State)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "Fintech", runner.got.InterestArea)
}

func TestHandleDiscoveryHistoryArray(t *testing.T) {
	runner := okRunner()
	body := `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"kind":"message","role":"user",
		"parts":[{"kind":"data","data":[{"kind":"text","text":"hi"},{"kind":"text","text":"{\"interest_area\":\"Climate\"}"}]}]}}}`
	task := taskOf(t, post(t, newRouter(runner), body))

	assert.Equal(t, StateCompleted, task.Status.State)
	assert.Equal(t, "Climate", runner.got.InterestArea)
}

func TestHandleDiscoveryNeedsProfile(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"kind":"message","role":"user",
		"parts":[{"kind":"text","text":"give me startup ideas"}]}}}`
	task := taskOf(t, post(t, newRouter(okRunner()), body))

	assert.Equal(t, StateInputRequired, task.Status.State)
	assert.Contains(t, task.Status.Message.Parts[0].Text, "founder profile")
	assert.Empty(t, task.Artifacts)
}

func TestHandleDiscoveryPipelineFailure(t *testing.T) {
	runner := &stubRunner{err: discovery.NewError(discovery.KindNoResults, "No usable results were produced.", nil)}
	task := taskOf(t, post(t, newRouter(runner), dataRequest))

	assert.Equal(t, StateFailed, task.Status.State)
	assert.Equal(t, "No usable results were produced.", task.Status.Message.Parts[0].Text)
}

func TestHandleDiscoveryRPCErrors(t *testing.T) {
	router := newRouter(okRunner())

	resp := post(t, router, `{"jsonrpc":"1.0","id":1,"method":"message/send","params":{}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)

	resp = post(t, router, `{"jsonrpc":"2.0","id":2,"method":"tasks/cancel","params":{}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
	assert.JSONEq(t, "2", string(resp.ID))

	resp = post(t, router, `{"jsonrpc":"2.0","id":3,"method":"message/send","params":"nope"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)

	resp = post(t, router, `not json`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
}

func TestHandleDirectMessage(t *testing.T) {
	runner := okRunner()
	body := `{"message":{"kind":"message","role":"user","parts":[{"kind":"data","data":{"interest_area":"Edtech"}}]}}`
	resp := post(t, newRouter(runner), body)

	assert.JSONEq(t, `"direct-message"`, string(resp.ID))
	task := taskOf(t, resp)
	assert.Equal(t, StateCompleted, task.Status.State)
	assert.Equal(t, "Edtech", runner.got.InterestArea)
}

func TestServeAgentCard(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(okRunner()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/agent.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "startup_discovery")
}
