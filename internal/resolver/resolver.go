// Package resolver drives the matching cascade (§4.4): a fixed sequence of
// states from DIRECT_LOOKUP through ARBITER, each one transition away from
// emitting a MatchResult. One Resolver is owned per worker, composed from
// that worker's own Normalizer and Querier and the LLM adapter it is given
// (cmd/resolver passes the same adapter to every worker).
package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/supplier-resolver/resolver/internal/domain"
	"github.com/supplier-resolver/resolver/internal/llm"
	"github.com/supplier-resolver/resolver/internal/normalizer"
	"github.com/supplier-resolver/resolver/internal/registry"
	"github.com/supplier-resolver/resolver/internal/scoring"
)

var (
	fourteenDigits = regexp.MustCompile(`^[0-9]{14}$`)
	nineDigits     = regexp.MustCompile(`^[0-9]{9}$`)
)

const (
	ftsLimit = 20

	strictLocalConfidence = 0.95

	scoreFloor        = 50
	scoreCeiling      = 80
	tieBreakMargin    = 2

	citySecondaryDist    = 3
	addressSecondaryDist = 10
)

// Resolver runs the cascade for a single RawRecord. Not safe for concurrent
// use by multiple goroutines; each worker owns one.
type Resolver struct {
	normalizer *normalizer.Normalizer
	querier    registry.Querier
	adapter    llm.Adapter // nil disables ARBITER; the cascade degrades to CALCULATED
}

// New builds a Resolver. adapter may be nil.
func New(n *normalizer.Normalizer, q registry.Querier, adapter llm.Adapter) *Resolver {
	return &Resolver{normalizer: n, querier: q, adapter: adapter}
}

// Resolve runs the full cascade for one record. It never panics outward: any
// unexpected error from a sub-step is converted to a MatchResult with
// method=ERROR, scoped to this record only.
func (r *Resolver) Resolve(ctx context.Context, raw domain.RawRecord) domain.MatchResult {
	result, err := r.resolve(ctx, raw)
	if err != nil {
		return domain.NewError(raw.InputID, shortError(err))
	}
	return result
}

func shortError(err error) string {
	return fmt.Sprintf("%T: %s", err, err.Error())
}

func (r *Resolver) resolve(ctx context.Context, raw domain.RawRecord) (domain.MatchResult, error) {
	// DIRECT_LOOKUP
	if id, ok := directID(raw); ok {
		cand, err := r.querier.DirectLookup(ctx, id)
		if err != nil {
			return domain.MatchResult{}, err
		}
		if cand != nil {
			return emitDirect(raw.InputID, *cand), nil
		}
	}

	// NORMALIZE
	cleaned := r.normalizer.Normalize(ctx, raw)
	inputAddress := raw.FullAddress()

	if cleaned.CleanPostal == nil && cleaned.CleanCity == nil {
		return domain.NewNotFound(raw.InputID, map[string]string{"step": "NO_LOCATION"}), nil
	}
	if cleaned.CleanPostal != nil && cleaned.SearchToken == "" {
		return domain.NewNotFound(raw.InputID, nil), nil
	}
	if cleaned.CleanName == "" {
		return domain.NewNotFound(raw.InputID, nil), nil
	}

	// STRICT_LOCAL
	if cleaned.CleanPostal != nil {
		hits, err := r.querier.StrictLocalLookup(ctx, *cleaned.CleanPostal, cleaned.CleanName)
		if err != nil {
			return domain.MatchResult{}, err
		}
		if len(hits) == 1 {
			return emitStrictLocal(raw.InputID, hits[0]), nil
		}
	}

	candidates, err := r.fts(ctx, cleaned)
	if err != nil {
		return domain.MatchResult{}, err
	}
	if len(candidates) == 0 {
		return domain.NewNotFound(raw.InputID, nil), nil
	}

	// SECONDARY_FILTER
	filtered := secondaryFilter(candidates, cleaned, inputAddress)
	if len(filtered) == 0 {
		return domain.NewNotFound(raw.InputID, nil), nil
	}

	// SCORE
	ranked := scoring.ScoreAll(cleaned, inputAddress, filtered)
	top := ranked[0]

	switch {
	case top.Score < scoreFloor:
		return domain.NewNotFound(raw.InputID, nil), nil
	case top.Score >= scoreCeiling && tieMargin(ranked) > tieBreakMargin:
		return emitCalculated(raw.InputID, ranked), nil
	default:
		return r.arbitrate(ctx, raw.InputID, cleaned, inputAddress, ranked)
	}
}

// directID reports whether raw carries a syntactically valid 14-digit
// establishment id. A 9-digit legal-entity id is a different concept and
// must not be synthesized into a direct lookup.
func directID(raw domain.RawRecord) (string, bool) {
	siret := strings.TrimSpace(raw.Get(domain.FieldSiret).AsString())
	if fourteenDigits.MatchString(siret) {
		return siret, true
	}
	return "", false
}

// fts runs FTS_candidates then fetch_establishments. Scope is department
// when clean_postal is present, nationwide otherwise — the city-only
// fallback depends on this branch.
func (r *Resolver) fts(ctx context.Context, cleaned domain.CleanedRecord) ([]domain.Candidate, error) {
	hits, err := r.querier.FTSCandidates(ctx, cleaned.SearchToken, ftsLimit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.CompanyID)
	}

	if cleaned.CleanPostal != nil {
		dept := (*cleaned.CleanPostal)[:2]
		return r.querier.FetchEstablishments(ctx, ids, registry.ScopeDepartment, dept)
	}
	return r.querier.FetchEstablishments(ctx, ids, registry.ScopeNationwide, "")
}

// secondaryFilter keeps candidates whose city is at edit distance less than
// 3 from clean_city (if set) and whose address is at edit distance less
// than 10 from the input address (if non-empty). A predicate with no input on our side is
// skipped, not failed.
func secondaryFilter(candidates []domain.Candidate, cleaned domain.CleanedRecord, inputAddress string) []domain.Candidate {
	out := candidates[:0:0]
	for _, c := range candidates {
		if cleaned.CleanCity != nil {
			if levenshtein.ComputeDistance(strings.ToUpper(c.City), *cleaned.CleanCity) >= citySecondaryDist {
				continue
			}
		}
		if inputAddress != "" {
			if levenshtein.ComputeDistance(strings.ToUpper(c.Address), inputAddress) >= addressSecondaryDist {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// tieMargin returns the gap between the top and second-ranked score, or a
// value greater than tieBreakMargin when there is only one candidate (no
// tie possible).
func tieMargin(ranked []scoring.Scored) int {
	if len(ranked) < 2 {
		return tieBreakMargin + 1
	}
	return ranked[0].Score - ranked[1].Score
}

func emitDirect(inputID string, cand domain.Candidate) domain.MatchResult {
	id := cand.EstablishmentID
	name := cand.OfficialName
	return domain.MatchResult{
		InputID:                 inputID,
		ResolvedEstablishmentID: &id,
		OfficialName:            &name,
		Confidence:              1.0,
		Method:                  domain.MethodDirectID,
	}
}

// emitStrictLocal emits the sole STRICT_LOCAL hit directly, bypassing
// SECONDARY_FILTER/SCORE entirely: a unique department-partition match on
// postal + fuzzy name is itself the decision (§4.4).
func emitStrictLocal(inputID string, cand domain.Candidate) domain.MatchResult {
	id := cand.EstablishmentID
	name := cand.OfficialName
	return domain.MatchResult{
		InputID:                 inputID,
		ResolvedEstablishmentID: &id,
		OfficialName:            &name,
		Confidence:              strictLocalConfidence,
		Method:                  domain.MethodStrictLocal,
	}
}

func emitCalculated(inputID string, ranked []scoring.Scored) domain.MatchResult {
	top := ranked[0]
	id := top.Candidate.EstablishmentID
	name := top.Candidate.OfficialName
	return domain.MatchResult{
		InputID:                 inputID,
		ResolvedEstablishmentID: &id,
		OfficialName:            &name,
		Confidence:              float64(top.Score) / 100.0,
		Method:                  domain.MethodCalculated,
		Alternatives:            alternatives(ranked),
	}
}

// alternatives returns the next up-to-five candidates after the chosen one,
// in the same scoring order.
func alternatives(ranked []scoring.Scored) []string {
	if len(ranked) <= 1 {
		return nil
	}
	rest := ranked[1:]
	if len(rest) > domain.MaxAlternatives {
		rest = rest[:domain.MaxAlternatives]
	}
	out := make([]string, 0, len(rest))
	for _, s := range rest {
		out = append(out, s.Candidate.EstablishmentID)
	}
	return out
}

// arbitrate asks the LLM adapter to pick between the top two candidates.
// Unavailability, "none", or a missing adapter all mean "keep the automatic
// top" — this step can never produce NOT_FOUND or ERROR on its own.
func (r *Resolver) arbitrate(ctx context.Context, inputID string, cleaned domain.CleanedRecord, inputAddress string, ranked []scoring.Scored) (domain.MatchResult, error) {
	if r.adapter == nil || len(ranked) < 2 {
		return emitCalculated(inputID, ranked), nil
	}

	cityStr := ""
	if cleaned.CleanCity != nil {
		cityStr = *cleaned.CleanCity
	}
	req := llm.ArbitrateRequest{
		CleanName:    cleaned.CleanName,
		CleanCity:    cityStr,
		InputAddress: inputAddress,
		CandidateA:   toArbitrateCandidate(ranked[0].Candidate),
		CandidateB:   toArbitrateCandidate(ranked[1].Candidate),
	}

	ctx, cancel := context.WithTimeout(ctx, llm.DefaultTimeout)
	defer cancel()
	choice, err := r.adapter.Arbitrate(ctx, req)
	if err != nil {
		return emitCalculated(inputID, ranked), nil
	}

	chosenIdx := 0
	switch choice {
	case llm.ChoiceA:
		chosenIdx = 0
	case llm.ChoiceB:
		chosenIdx = 1
	default:
		return emitCalculated(inputID, ranked), nil
	}

	chosen := ranked[chosenIdx]
	id := chosen.Candidate.EstablishmentID
	name := chosen.Candidate.OfficialName
	return domain.MatchResult{
		InputID:                 inputID,
		ResolvedEstablishmentID: &id,
		OfficialName:            &name,
		Confidence:              float64(chosen.Score) / 100.0,
		Method:                  domain.MethodArbiter,
		Alternatives:            arbiterAlternatives(ranked, chosenIdx),
	}, nil
}

func toArbitrateCandidate(c domain.Candidate) llm.ArbitrateCandidate {
	return llm.ArbitrateCandidate{EstablishmentID: c.EstablishmentID, OfficialName: c.OfficialName, Address: c.Address}
}

// arbiterAlternatives reorders ranked so the chosen candidate is first, then
// returns the same up-to-five-after-chosen slice alternatives uses.
func arbiterAlternatives(ranked []scoring.Scored, chosenIdx int) []string {
	reordered := make([]scoring.Scored, 0, len(ranked))
	reordered = append(reordered, ranked[chosenIdx])
	for i, s := range ranked {
		if i != chosenIdx {
			reordered = append(reordered, s)
		}
	}
	return alternatives(reordered)
}
