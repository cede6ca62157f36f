package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ambdigitalagency/hivepost/config"
	"github.com/ambdigitalagency/hivepost/internal/utils"

	"go.uber.org/zap"
)

// PromptPurpose selects the prompt register: candidates are loose, finalize
// enforces photorealism and category safety.
type PromptPurpose string

const (
	PurposeCandidate PromptPurpose = "candidate"
	PurposeFinalize  PromptPurpose = "finalize"
)

// PromptInput is the fully-typed per-call business context for the prompt
// collaborator. Named optional fields, not an open map, so the contract is
// statically checkable.
type PromptInput struct {
	Caption      string
	Category     string
	BusinessName string
	City         string
	State        string
	Language     string
	Purpose      PromptPurpose
}

// PromptGenerator turns a confirmed caption into a short visual prompt for
// the image model.
type PromptGenerator interface {
	FromCaption(ctx context.Context, in PromptInput) string
}

// Ad images for these categories must stay strictly family-safe.
var sensitiveCategories = map[string]bool{
	"massage":    true,
	"spa":        true,
	"nail":       true,
	"nail_salon": true,
	"barber":     true,
	"hair_salon": true,
}

func isSensitiveCategory(category string) bool {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		return false
	}
	if sensitiveCategories[c] {
		return true
	}
	return strings.Contains(c, "massage") || strings.Contains(c, "spa") || strings.Contains(c, "nail")
}

// OpenAIPromptGenerator calls an OpenAI-compatible chat completions endpoint.
// When unconfigured or on any error it falls back to a deterministic
// truncation of the caption, so the pipeline never blocks on copy tooling.
type OpenAIPromptGenerator struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOpenAIPromptGenerator(cfg *config.Config) *OpenAIPromptGenerator {
	return &OpenAIPromptGenerator{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Client:  utils.NewHTTPClient(30 * time.Second),
	}
}

const promptSystemMessage = `You are an image prompt assistant. Convert marketing copy into a visual description suitable for AI image generation (SDXL).
Requirements: Output in English only; 50-80 words; describe the scene: subject, setting, lighting, style; concrete and visual; avoid abstract words, marketing jargon, emojis.
Format: Photorealistic/stylized scene of [subject], [setting], [lighting], [mood].`

const finalizeSystemAddendum = `
[Finalize only] Style must be fully photorealistic: real people, real objects, real settings, like real venue photography.`

const safetySystemAddendum = `
[Safety] For this category ad images must be strictly family-safe and professional: no suggestive poses, no revealing clothing, no intimate scenarios; only professional environment suitable for public advertising.`

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *OpenAIPromptGenerator) FromCaption(ctx context.Context, in PromptInput) string {
	if strings.TrimSpace(g.APIKey) == "" {
		return fallbackPrompt(in)
	}

	system := promptSystemMessage
	if in.Purpose == PurposeFinalize {
		system += finalizeSystemAddendum
		if isSensitiveCategory(in.Category) {
			system += safetySystemAddendum
		}
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = "local business"
	}
	parts := []string{"Business category: " + category}
	if in.BusinessName != "" {
		parts = append(parts, "Business name: "+in.BusinessName)
	}
	if in.City != "" && in.State != "" {
		parts = append(parts, fmt.Sprintf("Location: %s, %s", in.City, in.State))
	}
	if in.Purpose == PurposeFinalize {
		parts = append(parts, "Purpose: finalize (photorealistic, ad-ready image).")
	}
	parts = append(parts, "Marketing caption to convert:\n"+truncate(in.Caption, 600))

	payload, _ := json.Marshal(chatRequest{
		Model: g.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: strings.Join(parts, "\n\n")},
		},
		MaxTokens:   200,
		Temperature: 0.4,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/chat/completions", bytes.NewBuffer(payload))
	if err != nil {
		return fallbackPrompt(in)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)

	resp, err := g.Client.Do(req)
	if err != nil {
		zap.L().Warn("prompt generation call failed, using fallback", zap.Error(err))
		return fallbackPrompt(in)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		zap.L().Warn("prompt generation rejected, using fallback", zap.Int("status", resp.StatusCode))
		return fallbackPrompt(in)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fallbackPrompt(in)
	}
	if len(out.Choices) == 0 {
		return fallbackPrompt(in)
	}

	raw := strings.TrimSpace(out.Choices[0].Message.Content)
	if len(raw) <= 20 {
		return fallbackPrompt(in)
	}
	return truncate(strings.ReplaceAll(raw, "\n", " "), 500)
}

var emojiPattern = regexp.MustCompile(`[\x{2600}-\x{27BF}\x{1F300}-\x{1FAFF}]`)

func fallbackPrompt(in PromptInput) string {
	cleaned := emojiPattern.ReplaceAllString(in.Caption, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	words := strings.Fields(cleaned)
	if len(words) > 20 {
		words = words[:20]
	}
	subject := strings.Join(words, " ")
	if subject == "" {
		subject = "service, friendly, trustworthy"
	}

	base := "Professional local business marketing image, " + subject
	if in.Purpose == PurposeFinalize {
		base = "Photorealistic scene, real people and real setting, " + subject
		if isSensitiveCategory(in.Category) {
			base += ", family-safe, professional attire, clean interior, suitable for public advertising"
		}
	}
	return truncate(base, 500)
}
