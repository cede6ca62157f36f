package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ambdigitalagency/hivepost/config"
	"github.com/ambdigitalagency/hivepost/internal/utils"
)

// ImageProvider is the narrow adapter around the external text-to-image and
// image-to-image calls. Implementations do not retry internally; retry policy
// lives in the orchestrator so pacing is uniform across both modes. Each
// successful call is exactly one billable unit.
type ImageProvider interface {
	GenerateFromText(ctx context.Context, prompt string) (string, error)
	GenerateFromImage(ctx context.Context, sourceURL, prompt string, strength float64) (string, error)
}

const (
	negativePrompt    = "blurry, low quality, distorted, cartoon, illustration"
	maxPromptLen      = 1000
	pollInterval      = 2 * time.Second
	predictionTimeout = 5 * time.Minute
)

// CandidateImageCostUSD and FinalImageCostUSD are the per-unit estimates
// written to the cost ledger.
const (
	CandidateImageCostUSD = 0.002
	FinalImageCostUSD     = 0.004
)

// ReplicateProvider drives Replicate's predictions API: submit, then poll
// until the prediction reaches a terminal status.
type ReplicateProvider struct {
	Token   string
	Model   string
	BaseURL string
	Client  *http.Client
}

func NewReplicateProvider(cfg *config.Config) *ReplicateProvider {
	return &ReplicateProvider{
		Token:   cfg.ReplicateAPIToken,
		Model:   cfg.ReplicateModel,
		BaseURL: "https://api.replicate.com/v1",
		Client:  utils.NewHTTPClient(60 * time.Second),
	}
}

// Configured reports whether the provider can issue calls at all.
func (p *ReplicateProvider) Configured() bool {
	return strings.TrimSpace(p.Token) != ""
}

type predictionRequest struct {
	Input map[string]interface{} `json:"input"`
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  *string         `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

func (p *ReplicateProvider) GenerateFromText(ctx context.Context, prompt string) (string, error) {
	input := map[string]interface{}{
		"prompt":          truncate(prompt, maxPromptLen),
		"negative_prompt": negativePrompt,
		"num_outputs":     1,
		"width":           512,
		"height":          512,
	}
	return p.run(ctx, input)
}

func (p *ReplicateProvider) GenerateFromImage(ctx context.Context, sourceURL, prompt string, strength float64) (string, error) {
	input := map[string]interface{}{
		"image":           sourceURL,
		"prompt":          truncate(prompt, maxPromptLen),
		"negative_prompt": negativePrompt,
		"prompt_strength": strength,
		"num_outputs":     1,
		"width":           1024,
		"height":          1024,
	}
	return p.run(ctx, input)
}

func (p *ReplicateProvider) run(ctx context.Context, input map[string]interface{}) (string, error) {
	if !p.Configured() {
		return "", errors.New("REPLICATE_API_TOKEN not configured")
	}

	pred, err := p.createPrediction(ctx, input)
	if err != nil {
		return "", err
	}

	if isTerminal(pred.Status) {
		return extractOutputURL(pred)
	}

	pollURL := pred.URLs.Get
	if pollURL == "" {
		pollURL = fmt.Sprintf("%s/predictions/%s", p.BaseURL, pred.ID)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	timeout := time.After(predictionTimeout)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timeout:
			return "", errors.New("prediction polling timed out")
		case <-ticker.C:
			current, err := p.getPrediction(ctx, pollURL)
			if err != nil {
				// Transient poll errors are ignored, next tick retries
				continue
			}
			if isTerminal(current.Status) {
				return extractOutputURL(current)
			}
		}
	}
}

func (p *ReplicateProvider) createPrediction(ctx context.Context, input map[string]interface{}) (*predictionResponse, error) {
	payload, err := json.Marshal(predictionRequest{Input: input})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s/predictions", p.BaseURL, p.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.Token)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api returned error status: %d, body: %s", resp.StatusCode, string(body))
	}

	var pred predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}
	return &pred, nil
}

func (p *ReplicateProvider) getPrediction(ctx context.Context, url string) (*predictionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.Token)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var pred predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, err
	}
	return &pred, nil
}

func isTerminal(status string) bool {
	switch strings.ToLower(status) {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

func extractOutputURL(pred *predictionResponse) (string, error) {
	if strings.ToLower(pred.Status) != "succeeded" {
		reason := "unknown"
		if pred.Error != nil {
			reason = *pred.Error
		}
		return "", fmt.Errorf("prediction %s: %s", pred.Status, reason)
	}

	// Output is either a bare URL string or an array of URLs
	var single string
	if err := json.Unmarshal(pred.Output, &single); err == nil && single != "" {
		return single, nil
	}
	var many []string
	if err := json.Unmarshal(pred.Output, &many); err == nil && len(many) > 0 && many[0] != "" {
		return many[0], nil
	}
	return "", errors.New("no image URL in response")
}

// IsRateLimitError detects the provider's throttling responses from error
// text, used to pick the user-facing remediation.
func IsRateLimitError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(msg, "429") || strings.Contains(lower, "throttl")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
