package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// CredentialEnvVar is the environment variable holding the adapter's API
// key. Its absence selects heuristic normalization rather than failing —
// NewHTTPAdapterFromEnv returns (nil, false) in that case.
const CredentialEnvVar = "RESOLVER_LLM_API_KEY"

// HTTPAdapter calls a JSON-over-HTTP chat-completion style endpoint to
// implement the two LLM capabilities. It is deliberately provider-agnostic:
// Endpoint and Model point at whatever OpenAI-compatible service is
// configured.
type HTTPAdapter struct {
	Endpoint   string
	Model      string
	APIKey     string
	HTTPClient *http.Client
}

// NewHTTPAdapterFromEnv builds an adapter if and only if the credential
// env var is set; otherwise it reports ok=false so callers fall back to
// heuristic mode instead of failing.
func NewHTTPAdapterFromEnv(endpoint, model string) (adapter *HTTPAdapter, ok bool) {
	key := os.Getenv(CredentialEnvVar)
	if key == "" {
		return nil, false
	}
	return &HTTPAdapter{
		Endpoint:   endpoint,
		Model:      model,
		APIKey:     key,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}, true
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (a *HTTPAdapter) call(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: a.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return "", Unavailable{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", Unavailable{Cause: fmt.Errorf("llm adapter returned status %d", resp.StatusCode)}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", Unavailable{Cause: err}
	}
	if len(parsed.Choices) == 0 {
		return "", Unavailable{Cause: fmt.Errorf("llm adapter returned no choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}

const normalizeSystemPrompt = `You clean up noisy supplier records for a business registry match.
Given a company name, address, postal code, and city, return ONLY a JSON object:
{"clean_name": "...", "search_token": "...", "clean_postal": "...", "clean_city": "..."}
Rules: correct obvious misspellings in the name; strip legal suffixes (SAS, SARL, EURL, SA,
SNC, SCI, SCP, SASU, ...); upper-case clean_name; search_token is the single most distinctive
content token, never a generic word like MARKET, FRANCE, or GROUPE; clean_postal is the first
5-digit substring found in any address-like field, or "" if none exists; clean_city is the
upper-cased city, or "" if absent.`

// Normalize asks the model to clean a record. Callers are responsible for
// falling back to the heuristic normalizer on any returned error.
func (a *HTTPAdapter) Normalize(ctx context.Context, req NormalizeRequest) (NormalizeResponse, error) {
	user, err := json.Marshal(req)
	if err != nil {
		return NormalizeResponse{}, err
	}

	content, err := a.call(ctx, normalizeSystemPrompt, string(user))
	if err != nil {
		return NormalizeResponse{}, err
	}

	var out NormalizeResponse
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return NormalizeResponse{}, Unavailable{Cause: fmt.Errorf("unparseable normalize response: %w", err)}
	}
	return out, nil
}

const arbitrateSystemPrompt = `You choose between two candidate business establishments for a
supplier record. Given the cleaned input and the two candidates' names and addresses, reply
with ONLY a JSON object: {"choice": "A"} or {"choice": "B"} or {"choice": "none"}. Pick "none"
if you cannot confidently tell which is a better match.`

// Arbitrate asks the model to break a tie between two close candidates.
// Unavailability or "none" both mean "keep the automatic top" to the caller.
func (a *HTTPAdapter) Arbitrate(ctx context.Context, req ArbitrateRequest) (Choice, error) {
	user, err := json.Marshal(req)
	if err != nil {
		return ChoiceNone, err
	}

	content, err := a.call(ctx, arbitrateSystemPrompt, string(user))
	if err != nil {
		return ChoiceNone, err
	}

	var out struct {
		Choice string `json:"choice"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return ChoiceNone, Unavailable{Cause: fmt.Errorf("unparseable arbitrate response: %w", err)}
	}

	switch Choice(out.Choice) {
	case ChoiceA:
		return ChoiceA, nil
	case ChoiceB:
		return ChoiceB, nil
	default:
		return ChoiceNone, nil
	}
}

var _ Adapter = (*HTTPAdapter)(nil)
