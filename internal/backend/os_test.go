package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSClient_Operations(t *testing.T) {
	var bodies []map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/operation", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		_, _ = w.Write([]byte(`{"status":"success","result":{"ok":true},"state_changed":true}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewOSClient(server.URL, nil)
	ctx := context.Background()

	resp, err := client.SendMessage(ctx, "what is 2+2")
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.True(t, resp.StateChanged)

	_, err = client.ExecuteModule(ctx, "ideaharvester", "harvest", map[string]any{"post_text": "x"})
	require.NoError(t, err)

	_, err = client.QueryRegistry(ctx, "")
	require.NoError(t, err)

	require.Len(t, bodies, 3)
	assert.Equal(t, "compute", bodies[0]["operation"])
	params := bodies[0]["params"].(map[string]any)
	assert.Equal(t, "what is 2+2", params["problem"])
	assert.Equal(t, map[string]any{}, params["context"])

	assert.Equal(t, "exec", bodies[1]["operation"])
	params = bodies[1]["params"].(map[string]any)
	assert.Equal(t, "ideaharvester", params["module"])
	assert.Equal(t, "harvest", params["op"])

	assert.Equal(t, "query_registry", bodies[2]["operation"])
	assert.Equal(t, "*", bodies[2]["params"].(map[string]any)["query"])
}

func TestOSClient_LLMStatusInfoSyscall(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/llm", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "default", body["mode"])
		assert.Equal(t, "gpt", body["llm"])
		_, _ = w.Write([]byte(`{"response":"4"}`))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"os":"HaleyOS","kernel_status":{"kernel":"running","syscalls":12,"processes":3},"baby_pid":1001,"note":"ok"}`))
	})
	mux.HandleFunc("/syscall", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "READ_STATE", body["syscall"])
		assert.EqualValues(t, 1001, body["pid"])
		assert.Equal(t, map[string]any{}, body["context"])
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"system":"HaleyOS","type":"os","kernel":"logic_engine","version":"2.0","architecture":{"kernel":"logic"},"api":{"status":"/status"}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewOSClient(server.URL+"/", nil)
	ctx := context.Background()

	llmResp, err := client.CallLLM(ctx, "gpt", "2+2", "")
	require.NoError(t, err)
	assert.Equal(t, "4", llmResp["response"])

	status, err := client.GetSystemStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "HaleyOS", status.OS)
	assert.Equal(t, 12, status.KernelStatus.Syscalls)
	assert.Equal(t, 1001, status.BabyPID)

	info, err := client.GetOSInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.0", info.Version)
	assert.Equal(t, "/status", info.API["status"])

	sys, err := client.MakeSyscall(ctx, "READ_STATE", 1001, map[string]any{"key": "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, sys["success"])
}

func TestOSClient_ErrorFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewOSClient(server.URL, nil)
	_, err := client.GetSystemStatus(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Status check failed: 503 Service Unavailable", err.Error())

	_, err = client.ExecuteModule(context.Background(), "m", "op", nil)
	require.Error(t, err)
	assert.Equal(t, "Module execution failed: 503 Service Unavailable", err.Error())
}
