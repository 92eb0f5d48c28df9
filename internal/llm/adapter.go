// Package llm exposes the two LLM-backed capabilities the cascade uses:
// record normalization and candidate arbitration. Both may fail or time
// out; callers are expected to degrade rather than propagate the error.
package llm

import (
	"context"
	"time"
)

// NormalizeRequest is the JSON-shaped payload sent to the adapter. Any
// date-like input fields are coerced to ISO-8601 strings before this point.
type NormalizeRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Postal  string `json:"postal"`
	City    string `json:"city"`
}

// NormalizeResponse is the parsed reply. Fields are strings because the
// adapter contract is a small key/value map: empty string means
// "not present", not zero-value ambiguity.
type NormalizeResponse struct {
	CleanName   string `json:"clean_name"`
	SearchToken string `json:"search_token"`
	CleanPostal string `json:"clean_postal"`
	CleanCity   string `json:"clean_city"`
}

// Choice is the arbiter's verdict between two candidates.
type Choice string

const (
	ChoiceA    Choice = "A"
	ChoiceB    Choice = "B"
	ChoiceNone Choice = "none"
)

// ArbitrateRequest gives the adapter just enough to break a tie: the
// addresses of the two leading candidates and the cleaned input they are
// being scored against.
type ArbitrateRequest struct {
	CleanName    string
	CleanCity    string
	InputAddress string
	CandidateA   ArbitrateCandidate
	CandidateB   ArbitrateCandidate
}

type ArbitrateCandidate struct {
	EstablishmentID string
	OfficialName    string
	Address         string
}

// Adapter is the capability surface the cascade depends on. Both methods
// are expected to honor ctx's deadline. The HTTPAdapter built by
// NewHTTPAdapterFromEnv also bounds every request with DefaultTimeout
// through its http.Client.
type Adapter interface {
	Normalize(ctx context.Context, req NormalizeRequest) (NormalizeResponse, error)
	Arbitrate(ctx context.Context, req ArbitrateRequest) (Choice, error)
}

// DefaultTimeout is the grace period given to an in-flight call before it
// is treated as adapter unavailability rather than failure. Seconds, not
// minutes, per the cascade's cancellation contract.
const DefaultTimeout = 4 * time.Second

// Unavailable wraps a short timeout/transport error so callers can
// distinguish "the adapter said no" from "the adapter didn't answer in
// time" without inspecting error strings.
type Unavailable struct {
	Cause error
}

func (u Unavailable) Error() string {
	if u.Cause == nil {
		return "llm adapter unavailable"
	}
	return "llm adapter unavailable: " + u.Cause.Error()
}

func (u Unavailable) Unwrap() error { return u.Cause }
