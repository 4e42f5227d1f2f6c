package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aescanero/dago-node-prompt/internal/config"
	"github.com/aescanero/dago-node-prompt/internal/registry"
	"github.com/aescanero/dago-node-prompt/internal/renderer"
	"github.com/aescanero/dago-node-prompt/pkg/prompt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseRequest(t *testing.T) {
	req, err := parseRequest(map[string]interface{}{
		"data": `{"request_id":"42","template":"greet","args":["John"],"kwargs":{"age":40},"complete":true}`,
	})
	require.NoError(t, err)

	assert.Equal(t, "42", req.RequestID)
	assert.Equal(t, "greet", req.Template)
	assert.Equal(t, []interface{}{"John"}, req.Args)
	assert.Equal(t, map[string]interface{}{"age": float64(40)}, req.Kwargs)
	assert.True(t, req.Complete)
}

func TestParseRequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
	}{
		{name: "missing data", values: map[string]interface{}{}},
		{name: "wrong type", values: map[string]interface{}{"data": 7}},
		{name: "bad json", values: map[string]interface{}{"data": "{"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRequest(tt.values)
			assert.Error(t, err)
		})
	}
}

func TestResultEvent(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	event := resultEvent(&renderer.Result{RequestID: "1", Template: "greet", Prompt: "Hi"}, now)
	assert.Equal(t, "Hi", event["prompt"])
	assert.NotContains(t, event, "completion")

	event = resultEvent(&renderer.Result{RequestID: "1", Template: "greet", Prompt: "Hi", Completion: "Hello", Model: "m"}, now)
	assert.Equal(t, "Hello", event["completion"])
	assert.Equal(t, "m", event["model"])
}

func TestErrorEvent(t *testing.T) {
	now := time.Now()
	req := &renderer.Request{RequestID: "7", Template: "greet"}

	event := errorEvent(req, &prompt.UndefinedVariableError{Name: "age"}, now)
	assert.Equal(t, "7", event["request_id"])
	assert.Equal(t, renderer.KindUndefinedVariable, event["kind"])
	assert.Equal(t, "'age' is undefined", event["error"])

	event = errorEvent(req, errors.New("boom"), now)
	assert.Equal(t, renderer.KindInternal, event["kind"])

	_, err := json.Marshal(event)
	assert.NoError(t, err)
}

func TestErrorStream(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)

	w := NewWorker(cfg, nil, nil, zap.NewNop())
	assert.Equal(t, "prompt.rendered.errors", w.ErrorStream())
}

func TestHandleMessage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)

	m, err := registry.ParseManifest([]byte("name: greet\nparams:\n  - name: name\ntemplate: Hi {{ name }}\n"))
	require.NoError(t, err)
	reg := registry.New(nil, nil, nil)
	require.NoError(t, reg.Load([]*registry.Manifest{m}))

	w := NewWorker(cfg, client, renderer.NewRenderer(reg, nil, renderer.Options{}, nil), zap.NewNop())
	require.NoError(t, w.ensureConsumerGroup())
	require.NoError(t, w.ensureConsumerGroup())

	w.handleMessage(redis.XMessage{ID: "1-0", Values: map[string]interface{}{
		"data": `{"template":"greet","args":["Ana"]}`,
	}})
	w.handleMessage(redis.XMessage{ID: "2-0", Values: map[string]interface{}{
		"data": `{"request_id":"r2","template":"greet"}`,
	}})

	ctx := context.Background()
	decode := func(msg redis.XMessage) map[string]interface{} {
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(msg.Values["data"].(string)), &event))
		return event
	}

	results, err := client.XRange(ctx, cfg.ResultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, results, 1)
	event := decode(results[0])
	assert.Equal(t, "1-0", event["request_id"])
	assert.Equal(t, "Hi Ana", event["prompt"])

	failures, err := client.XRange(ctx, w.ErrorStream(), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, failures, 1)
	event = decode(failures[0])
	assert.Equal(t, "r2", event["request_id"])
	assert.Equal(t, renderer.KindBinding, event["kind"])
}

type staticTemplates []string

func (s staticTemplates) Names() []string { return s }

func TestHealthUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	hs := NewHealthServer(0, client, staticTemplates{"greet"}, zap.NewNop())
	handler := hs.handler()

	for _, path := range []string{"/health", "/ready"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.NotEqual(t, "healthy", body.Status)
		})
	}
}

func TestHealthReadyListsTemplates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	handler := NewHealthServer(0, client, staticTemplates{"greet", "summarize"}, zap.NewNop()).handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, []string{"greet", "summarize"}, body.Templates)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body = HealthResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "2 loaded", body.Checks["templates"])
}

func TestHealthStopWithoutStart(t *testing.T) {
	hs := NewHealthServer(0, nil, nil, zap.NewNop())
	assert.NoError(t, hs.Stop())
}
