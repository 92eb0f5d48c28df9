// Package scoring computes the weighted-sum similarity score between a
// cleaned input record and a registry Candidate, and breaks ties
// deterministically so concurrent workers resolving the same input always
// agree.
package scoring

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/mozillazg/go-unidecode"
	"github.com/xrash/smetrics"

	"github.com/supplier-resolver/resolver/internal/domain"
)

// Weight thresholds and points, §4.3.
const (
	nameWeight    = 40
	cityWeight    = 30
	addressWeight = 20
	headOffice    = 10

	nameThreshold    = 0.9
	addressThreshold = 0.8
)

// Scored pairs a Candidate with its integer score and the raw name
// similarity used for tie-breaking.
type Scored struct {
	Candidate  domain.Candidate
	Score      int
	NameSimilarity float64
}

// Score computes score(cleaned, candidate) per §4.3: an integer in [0,100].
func Score(cleaned domain.CleanedRecord, inputAddress string, candidate domain.Candidate) Scored {
	nameSim := tokenSortRatio(candidate.OfficialName, cleaned.CleanName)

	total := 0
	if nameSim >= nameThreshold {
		total += nameWeight
	}
	if cleaned.CleanCity != nil && strings.EqualFold(candidate.City, *cleaned.CleanCity) {
		total += cityWeight
	}
	if tokenSetRatio(candidate.Address, inputAddress) >= addressThreshold {
		total += addressWeight
	}
	if candidate.IsHeadOffice {
		total += headOffice
	}

	return Scored{Candidate: candidate, Score: total, NameSimilarity: nameSim}
}

// ScoreAll scores every candidate and returns them ordered by the total
// order described in Rank: highest score first, then the deterministic
// tie-break.
func ScoreAll(cleaned domain.CleanedRecord, inputAddress string, candidates []domain.Candidate) []Scored {
	out := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Score(cleaned, inputAddress, c))
	}
	Rank(out)
	return out
}

// Rank sorts scored candidates in place by the §4.3 total order: (1) higher
// integer score, (2) higher name token-sort similarity, (3) head office
// before non-head-office, (4) lexicographically smaller establishment id.
// This order is total, so concurrent workers scoring identical inputs
// produce byte-identical rankings.
func Rank(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.NameSimilarity != b.NameSimilarity {
			return a.NameSimilarity > b.NameSimilarity
		}
		if a.Candidate.IsHeadOffice != b.Candidate.IsHeadOffice {
			return a.Candidate.IsHeadOffice
		}
		return a.Candidate.EstablishmentID < b.Candidate.EstablishmentID
	})
}

// tokenSortRatio reorders each string's whitespace-delimited tokens
// alphabetically before comparing, so word order differences don't
// penalize the similarity (RapidFuzz token_sort_ratio semantics).
func tokenSortRatio(a, b string) float64 {
	return sim(sortedTokens(a), sortedTokens(b))
}

// tokenSetRatio compares the intersection/union of each string's token set
// rather than the raw strings, so extra tokens on one side (a longer
// address with a suite number) don't drag the score down the way a plain
// edit-distance comparison would (RapidFuzz token_set_ratio semantics).
func tokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	intersection := make([]string, 0)
	for t := range ta {
		if _, ok := tb[t]; ok {
			intersection = append(intersection, t)
		}
	}
	sort.Strings(intersection)

	aOnly := sortedDiff(ta, tb)
	bOnly := sortedDiff(tb, ta)
	base := strings.Join(intersection, " ")

	s1 := strings.TrimSpace(base + " " + strings.Join(aOnly, " "))
	s2 := strings.TrimSpace(base + " " + strings.Join(bOnly, " "))
	return max3(sim(s1, s2), sim(base, s1), sim(base, s2))
}

func sortedDiff(a, b map[string]struct{}) []string {
	out := make([]string, 0, len(a))
	for t := range a {
		if _, ok := b[t]; !ok {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToUpper(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func sortedTokens(s string) string {
	fields := strings.Fields(strings.ToUpper(s))
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

// sim blends Jaro-Winkler and normalized Levenshtein similarity, both in
// [0,1], the same way the ratio functions above treat whole-string
// comparisons once tokens are sorted or merged.
func sim(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	a, b = unaccent(a), unaccent(b)
	jw := smetrics.JaroWinkler(a, b, 0.7, 4)
	dist := levenshtein.ComputeDistance(a, b)
	denom := float64(maxInt(len(a), len(b)))
	lev := 1.0 - float64(dist)/denom
	return 0.7*jw + 0.3*lev
}

func unaccent(s string) string { return strings.ToLower(unidecode.Unidecode(s)) }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
