package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHintResponse(t *testing.T) {
	result, err := parseHintResponse(`{"hint":"  Cuenta los lados de la figura. "}`)
	require.NoError(t, err)
	require.Equal(t, "Cuenta los lados de la figura.", result.Hint)

	_, err = parseHintResponse(`{"hint":"   "}`)
	require.Error(t, err)

	_, err = parseHintResponse(`not json`)
	require.Error(t, err)

	long, err := parseHintResponse(`{"hint":"` + strings.Repeat("a", 400) + `"}`)
	require.NoError(t, err)
	require.Len(t, []rune(long.Hint), maxHintRunes)
}

func TestBuildUserPromptRedactsAnswers(t *testing.T) {
	prompt := buildUserPrompt(HintInput{
		ActivityTitle: "Fracciones",
		Kind:          "cloze",
		Statement:     "Completa",
		Data:          map[string]interface{}{"text": "1/2 + 1/2 = ___", "answers": []interface{}{"1"}},
	})
	require.Contains(t, prompt, "Fracciones")
	require.Contains(t, prompt, "1/2 + 1/2")
	require.NotContains(t, prompt, `"answers"`)
}

func TestOpenAIHinterAgainstFakeServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]interface{}{{"index": 0, "message": map[string]string{"role": "assistant", "content": `{"hint":"Piensa en mitades."}`}}},
		})
	}))
	defer server.Close()

	hinter, err := NewOpenAIHinter(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	result, err := hinter.Hint(context.Background(), HintInput{ActivityTitle: "Fracciones", Kind: "trivia"})
	require.NoError(t, err)
	require.Equal(t, "Piensa en mitades.", result.Hint)
	require.Equal(t, "gpt-4o-mini", result.Model)
}

func TestNewOpenAIHinterRequiresKey(t *testing.T) {
	_, err := NewOpenAIHinter(OpenAIConfig{})
	require.Error(t, err)
}
