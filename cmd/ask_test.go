package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, llmURL string) string {
	t.Helper()
	cfg := fmt.Sprintf(`{
  "general": {"log_level": "error", "log_format": "json"},
  "rate_limit": {"store": "memory", "quota": 5},
  "cache": {"backend": "memory"},
  "llm": {"provider": "openai", "api_key": "test", "base_url": %q, "model": "test-model"}
}`, llmURL)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestAskWithoutURL(t *testing.T) {
	var prompts atomic.Int32
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prompts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"test-model",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant",
"content":"{\"response\":\"Go is a language.\",\"followUpQuestions\":[\"Who made it?\"]}"}}]}`))
	}))
	defer llm.Close()

	cfgPath := writeConfig(t, llm.URL+"/v1/")
	cmd := askCMD(&cfgPath)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"what", "is", "go?"})
	require.NoError(t, cmd.Execute())

	var got struct {
		Message struct {
			Response          string   `json:"response"`
			FollowUpQuestions []string `json:"followUpQuestions"`
		} `json:"message"`
		URL *string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got), out.String())
	assert.Equal(t, "Go is a language.", got.Message.Response)
	assert.Equal(t, []string{"Who made it?"}, got.Message.FollowUpQuestions)
	assert.Nil(t, got.URL)
	assert.Equal(t, int32(1), prompts.Load())
}

func TestAskMalformedGeneration(t *testing.T) {
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"sure thing"}}]}`))
	}))
	defer llm.Close()

	cfgPath := writeConfig(t, llm.URL+"/v1/")
	cmd := askCMD(&cfgPath)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"hello"})
	assert.Error(t, cmd.Execute())

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got), out.String())
	assert.Equal(t, "generation_format", got["message"])
}

func TestAskRequiresMessage(t *testing.T) {
	cfgPath := ""
	cmd := askCMD(&cfgPath)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}
