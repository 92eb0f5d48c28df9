package domain

import (
	"regexp"
	"time"
)

var postalPattern = regexp.MustCompile(`^[0-9]{5}$`)

// CleanedRecord is the normalized form of a RawRecord. Invariant: if
// CleanPostal is non-nil it matches ^[0-9]{5}$.
type CleanedRecord struct {
	CleanName   string
	SearchToken string
	CleanPostal *string
	CleanCity   *string
}

// ValidPostal reports whether CleanPostal, if set, is a well-formed 5-digit
// string.
func (c CleanedRecord) ValidPostal() bool {
	return c.CleanPostal == nil || postalPattern.MatchString(*c.CleanPostal)
}

// Candidate is a single registry establishment eligible for matching.
// Invariant: CompanyID == EstablishmentID[0:9]. Only administratively-active
// establishments are ever materialized here.
type Candidate struct {
	EstablishmentID string
	CompanyID       string
	OfficialName    string
	City            string
	Address         string
	IsHeadOffice    bool
}

// Method is the decision path that produced a MatchResult.
type Method string

const (
	MethodDirectID     Method = "DIRECT_ID"
	MethodStrictLocal  Method = "STRICT_LOCAL"
	MethodCalculated   Method = "CALCULATED"
	MethodArbiter      Method = "ARBITER"
	MethodNotFound     Method = "NOT_FOUND"
	MethodError        Method = "ERROR"
)

// MaxAlternatives is the export-time cap on the alternatives list. The
// source inconsistently trimmed it ("up to 5", "next 2"); here the cap is
// always 5, so a result lists up to 5 alternatives (fewer only when fewer
// ranked candidates remain).
const MaxAlternatives = 5

// MatchResult is the per-input outcome of the matching cascade.
//
// Invariants:
//   - Method == NOT_FOUND iff ResolvedEstablishmentID == nil && Error == nil
//   - Confidence == 0.0 for NOT_FOUND and ERROR
//   - Confidence == 1.0 for DIRECT_ID
type MatchResult struct {
	InputID                 string
	ResolvedEstablishmentID *string
	OfficialName            *string
	Confidence              float64
	Method                   Method
	Alternatives            []string
	Error                    *string
	Debug                    map[string]string
}

// NewNotFound builds a NOT_FOUND result, optionally annotated with a debug
// step marker (e.g. "NO_LOCATION").
func NewNotFound(inputID string, debug map[string]string) MatchResult {
	if debug == nil {
		debug = map[string]string{}
	}
	return MatchResult{InputID: inputID, Method: MethodNotFound, Confidence: 0.0, Debug: debug}
}

// NewError builds an ERROR result. err is a short "type: message" string,
// never a full stack trace.
func NewError(inputID, errMsg string) MatchResult {
	e := errMsg
	return MatchResult{InputID: inputID, Method: MethodError, Confidence: 0.0, Error: &e, Alternatives: nil}
}

// Valid reports whether the result satisfies the cross-field invariants
// listed above. Nothing in this module calls it: the checkpoint writer
// persists results without checking them.
func (m MatchResult) Valid() bool {
	if m.Method == MethodNotFound && (m.ResolvedEstablishmentID != nil || m.Error != nil) {
		return false
	}
	if m.Method != MethodNotFound && m.ResolvedEstablishmentID == nil && m.Error == nil {
		return false
	}
	if (m.Method == MethodNotFound || m.Method == MethodError) && m.Confidence != 0.0 {
		return false
	}
	if m.Method == MethodDirectID && m.Confidence != 1.0 {
		return false
	}
	if m.Confidence < 0.0 || m.Confidence > 1.0 {
		return false
	}
	return true
}

// CheckpointRow is one persisted MatchResult plus its last-write timestamp.
type CheckpointRow struct {
	Result    MatchResult
	UpdatedAt time.Time
}
