package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/bobmcallan/vire-insights/internal/models"
	"github.com/bobmcallan/vire-insights/internal/services/insights"
)

func TestComplete(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-test:generateContent"), r.URL.Path)
		assert.Equal(t, "trace-9", r.Header.Get(TraceHeader))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates":[{"content":{"role":"model","parts":[{"text":"{\"annotations\":"},{"text":"[]}"}]}}],
			"usageMetadata":{"totalTokenCount":42},
			"modelVersion":"gemini-test-001"
		}`))
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), "test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), models.CompletionRequest{
		Model:        "gemini-test",
		SystemPrompt: "be brief",
		UserPrompt:   "annotate",
		JSONSchema:   insights.AnnotationSchema(),
		TraceID:      "trace-9",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"annotations":[]}`, resp.Text)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.Equal(t, "gemini-test-001", resp.ModelVersion)

	raw, _ := json.Marshal(gotBody)
	assert.Contains(t, string(raw), "application/json")
	assert.Contains(t, string(raw), "be brief")
}

func TestComplete_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), "test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), models.CompletionRequest{UserPrompt: "x", TraceID: "t"})
	assert.ErrorContains(t, err, "no content generated")
}

func TestToSchema(t *testing.T) {
	s := toSchema(insights.AnnotationSchema())

	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"annotations"}, s.Required)

	items := s.Properties["annotations"].Items
	require.NotNil(t, items)
	assert.Equal(t, genai.TypeObject, items.Type)
	assert.ElementsMatch(t, []string{"symbol", "thesis", "risks", "action", "signals"}, items.Required)
	assert.Equal(t, []string{"Add", "Hold", "Trim", "Hedge"}, items.Properties["action"].Enum)
	require.NotNil(t, items.Properties["thesis"].MaxLength)
	assert.Equal(t, int64(models.MaxThesisChars), *items.Properties["thesis"].MaxLength)
	require.NotNil(t, items.Properties["risks"].MaxItems)
	assert.Equal(t, int64(models.MaxRisks), *items.Properties["risks"].MaxItems)

	assert.Nil(t, toSchema(nil))
}
