package modules

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/haleyos/haley/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineering_Chat(t *testing.T) {
	srv := newMatrixServer(t, http.StatusOK, model.EngineeringResponse{
		Success:  true,
		Response: "Use a queue.",
		ToolUses: []model.ToolUse{{ID: "t1", Name: "search"}},
	})
	e := NewEngineering(NewClient(Options{MatrixURL: srv.URL}))

	resp, err := e.Chat(context.Background(), "how do I scale?", true)
	require.NoError(t, err)
	assert.Equal(t, "Use a queue.", resp.Response)
	require.Len(t, resp.ToolUses, 1)

	req := <-srv.requests
	assert.Equal(t, "engineering", req.Module)
	assert.Equal(t, "chat_with_tools", req.Action)
	assert.Equal(t, "how do I scale?", req.Params["message"])
}

func TestEngineering_ChatWithoutTools(t *testing.T) {
	srv := newMatrixServer(t, http.StatusOK, model.EngineeringResponse{Success: true, Response: "ok"})
	e := NewEngineering(NewClient(Options{MatrixURL: srv.URL}))

	_, err := e.Chat(context.Background(), "hi", false)
	require.NoError(t, err)
	assert.Equal(t, "chat", (<-srv.requests).Action)
}

func TestEngineering_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		result  any
		message string
	}{
		{"module error", http.StatusOK, model.EngineeringResponse{Error: "model overloaded"}, "model overloaded"},
		{"unknown error", http.StatusOK, model.EngineeringResponse{}, "unknown engineering module error"},
		{"http error", http.StatusInternalServerError, nil, "request failed: Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newMatrixServer(t, tt.status, tt.result)
			e := NewEngineering(NewClient(Options{MatrixURL: srv.URL}))

			_, err := e.Chat(context.Background(), "hi", false)
			require.Error(t, err)
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestEngineering_ClearHistory(t *testing.T) {
	srv := newMatrixServer(t, http.StatusOK, map[string]any{"success": true})
	e := NewEngineering(NewClient(Options{MatrixURL: srv.URL}))

	require.NoError(t, e.ClearHistory(context.Background()))
	req := <-srv.requests
	assert.Equal(t, "clear_history", req.Action)
	assert.Empty(t, req.Params)
}

func TestRoblox_Generate(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/module/robloxexpert/execute", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(model.SceneResult{
			LuaCode:       "print('castle')",
			PreviewConfig: model.PreviewConfig{Elements: []model.PreviewElement{{Type: "part", Name: "Wall"}}},
		})
	}))
	defer srv.Close()

	r := NewRoblox(NewClient(Options{LogicEngineURL: srv.URL}), true, nil)
	result, err := r.Generate(context.Background(), SceneParams{Description: " a castle "})
	require.NoError(t, err)

	assert.Equal(t, "generate_scene", body["action"])
	assert.Equal(t, "a castle", body["description"])
	assert.Equal(t, "print('castle')", result.LuaCode)
	assert.Equal(t, 1, result.ElementsCreated)
	assert.False(t, result.Fallback)
}

func TestRoblox_Fallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewRoblox(NewClient(Options{LogicEngineURL: srv.URL}), true, nil)
	result, err := r.Generate(context.Background(), SceneParams{Description: "a forest"})
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	assert.True(t, strings.HasPrefix(result.LuaCode, "-- Scene: a forest\n-- Generated by Roblox Expert"))
	assert.Equal(t, 8, result.ElementsCreated)
	assert.Len(t, result.PreviewConfig.Elements, 8)
	assert.Equal(t, "default", result.PreviewConfig.Lighting)
	assert.Equal(t, "forest", result.PreviewConfig.Environment)

	strict := NewRoblox(NewClient(Options{LogicEngineURL: srv.URL}), false, nil)
	_, err = strict.Generate(context.Background(), SceneParams{Description: "a forest"})
	assert.EqualError(t, err, "Backend returned 502")

	_, err = r.Generate(context.Background(), SceneParams{})
	assert.Error(t, err)
}
