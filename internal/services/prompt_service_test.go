package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackPrompt_TruncatesAndStripsEmoji(t *testing.T) {
	words := make([]string, 30)
	for i := range words {
		words[i] = fmt.Sprintf("word%02d", i+1)
	}
	caption := "🎉 " + strings.Join(words, " ") + " 🍰"

	out := fallbackPrompt(PromptInput{Caption: caption, Purpose: PurposeCandidate})

	assert.NotContains(t, out, "🎉")
	assert.NotContains(t, out, "🍰")
	assert.Contains(t, out, "word20")
	assert.NotContains(t, out, "word21")
	assert.True(t, strings.HasPrefix(out, "Professional local business marketing image"))
}

func TestFallbackPrompt_EmptyCaption(t *testing.T) {
	out := fallbackPrompt(PromptInput{Caption: "   "})
	assert.Contains(t, out, "service, friendly, trustworthy")
}

func TestFallbackPrompt_SensitiveCategoryFinalize(t *testing.T) {
	out := fallbackPrompt(PromptInput{
		Caption:  "Relaxing deep tissue session",
		Category: "Massage Therapy",
		Purpose:  PurposeFinalize,
	})
	assert.Contains(t, out, "Photorealistic")
	assert.Contains(t, out, "family-safe")

	// Non-sensitive finalize gets photorealism without the safety clause
	out = fallbackPrompt(PromptInput{
		Caption:  "Fresh bread daily",
		Category: "bakery",
		Purpose:  PurposeFinalize,
	})
	assert.Contains(t, out, "Photorealistic")
	assert.NotContains(t, out, "family-safe")
}

func TestIsSensitiveCategory(t *testing.T) {
	assert.True(t, isSensitiveCategory("massage"))
	assert.True(t, isSensitiveCategory("Massage Therapy"))
	assert.True(t, isSensitiveCategory("nail_salon"))
	assert.True(t, isSensitiveCategory(" Day Spa "))
	assert.False(t, isSensitiveCategory("bakery"))
	assert.False(t, isSensitiveCategory(""))
}

func TestFromCaption_UsesChatCompletion(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "Photorealistic scene of a sunlit bakery counter,\nfresh croissants, warm morning light"}},
			},
		})
	}))
	defer srv.Close()

	g := &OpenAIPromptGenerator{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-4o-mini", Client: srv.Client()}
	out := g.FromCaption(context.Background(), PromptInput{
		Caption:      "Fresh croissants every morning",
		Category:     "bakery",
		BusinessName: "Sunrise Bakery",
		City:         "Austin",
		State:        "TX",
		Purpose:      PurposeCandidate,
	})

	assert.Equal(t, "Photorealistic scene of a sunlit bakery counter, fresh croissants, warm morning light", out)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	assert.Len(t, gotReq.Messages, 2)
	assert.Contains(t, gotReq.Messages[1].Content, "Business category: bakery")
	assert.Contains(t, gotReq.Messages[1].Content, "Fresh croissants every morning")
	assert.NotContains(t, gotReq.Messages[0].Content, "[Finalize only]")
}

func TestFromCaption_FinalizeAddsSafetyForSensitiveCategory(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "Photorealistic professional spa interior, soft light, clean decor"}},
			},
		})
	}))
	defer srv.Close()

	g := &OpenAIPromptGenerator{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-4o-mini", Client: srv.Client()}
	g.FromCaption(context.Background(), PromptInput{
		Caption:  "Unwind with our signature massage",
		Category: "massage",
		Purpose:  PurposeFinalize,
	})

	assert.Contains(t, gotReq.Messages[0].Content, "[Finalize only]")
	assert.Contains(t, gotReq.Messages[0].Content, "[Safety]")
}

func TestFromCaption_FallbackPaths(t *testing.T) {
	caption := "Fresh croissants every morning at our cozy bakery downtown"

	t.Run("no api key", func(t *testing.T) {
		g := &OpenAIPromptGenerator{Client: http.DefaultClient}
		out := g.FromCaption(context.Background(), PromptInput{Caption: caption})
		assert.Contains(t, out, "croissants")
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		g := &OpenAIPromptGenerator{APIKey: "k", BaseURL: srv.URL, Model: "m", Client: srv.Client()}
		out := g.FromCaption(context.Background(), PromptInput{Caption: caption})
		assert.Contains(t, out, "croissants")
	})

	t.Run("implausibly short response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{
					{"message": map[string]string{"content": "ok"}},
				},
			})
		}))
		defer srv.Close()

		g := &OpenAIPromptGenerator{APIKey: "k", BaseURL: srv.URL, Model: "m", Client: srv.Client()}
		out := g.FromCaption(context.Background(), PromptInput{Caption: caption})
		assert.Contains(t, out, "croissants")
	})

	t.Run("empty choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
		}))
		defer srv.Close()

		g := &OpenAIPromptGenerator{APIKey: "k", BaseURL: srv.URL, Model: "m", Client: srv.Client()}
		out := g.FromCaption(context.Background(), PromptInput{Caption: caption})
		assert.Contains(t, out, "croissants")
	})
}
