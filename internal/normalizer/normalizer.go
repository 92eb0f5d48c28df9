// Package normalizer turns a noisy RawRecord into a CleanedRecord: an
// upper-cased, legal-suffix-stripped name, a distinctive search token, a
// 5-digit postal code, and an upper-cased city. It never fails — on
// upstream model failure it falls back to a deterministic heuristic.
package normalizer

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/supplier-resolver/resolver/internal/domain"
	"github.com/supplier-resolver/resolver/internal/llm"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

var fiveDigitPattern = regexp.MustCompile(`[0-9]{5}`)
var fourDigitPattern = regexp.MustCompile(`^[0-9]{4}$`)

// cacheKey is the pure-function input Normalize is keyed on.
type cacheKey struct {
	name    string
	addr1   string
	postal  string
	city    string
}

// Normalizer implements C1. One instance is owned per worker and its cache
// is never shared across worker goroutines; the adapter is whatever
// WithAdapter was given, and cmd/resolver gives every worker the same one.
type Normalizer struct {
	adapter      llm.Adapter // nil disables the model-backed path
	logger       *zap.Logger
	cache        *lru.Cache[cacheKey, domain.CleanedRecord]
	suffixes     map[string]struct{}
	genericWords map[string]struct{}

	loggedAdapterFailure sync.Once
}

// Option configures a Normalizer at construction time.
type Option func(*Normalizer)

// WithAdapter enables the model-backed primary path. Passing a nil adapter
// (or never calling this option) means model_backed_normalization is off
// and every record goes through the heuristic path.
func WithAdapter(a llm.Adapter) Option {
	return func(n *Normalizer) { n.adapter = a }
}

// WithCacheSize overrides the default LRU cache size (4096 entries).
func WithCacheSize(size int) Option {
	return func(n *Normalizer) {
		if size <= 0 {
			return
		}
		c, err := lru.New[cacheKey, domain.CleanedRecord](size)
		if err == nil {
			n.cache = c
		}
	}
}

const defaultCacheSize = 4096

// New builds a Normalizer. logger must not be nil.
func New(logger *zap.Logger, opts ...Option) *Normalizer {
	cache, _ := lru.New[cacheKey, domain.CleanedRecord](defaultCacheSize)
	rules, err := LoadRulesConfig()
	if err != nil {
		// The embedded table failing to parse is a build-time defect, not
		// a runtime condition; fall back to an empty table rather than
		// panic so normalization degrades to upper-casing only.
		rules = &RulesConfig{}
	}

	n := &Normalizer{
		logger:       logger,
		cache:        cache,
		suffixes:     toSet(rules.Suffixes),
		genericWords: toSet(rules.GenericWords),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[strings.ToUpper(it)] = struct{}{}
	}
	return s
}

// Normalize implements the Normalizer contract. It never returns an error;
// callers that need a failure signal should inspect the returned record's
// CleanName for emptiness instead (the resolver's NORMALIZE transition
// treats empty clean_name the same as "no usable signal").
func (n *Normalizer) Normalize(ctx context.Context, raw domain.RawRecord) domain.CleanedRecord {
	name := raw.Get(domain.FieldName).AsString()
	addr1 := raw.Get(domain.FieldAddress1).AsString()
	postal := raw.Get(domain.FieldPostal).AsString()
	city := raw.Get(domain.FieldCity).AsString()

	key := cacheKey{name: name, addr1: addr1, postal: postal, city: city}
	if n.cache != nil {
		if cached, ok := n.cache.Get(key); ok {
			return cached
		}
	}

	var cleaned domain.CleanedRecord
	if n.adapter != nil {
		if resp, err := n.adapter.Normalize(ctx, llm.NormalizeRequest{
			Name:    name,
			Address: addr1,
			Postal:  postal,
			City:    city,
		}); err == nil {
			cleaned = fromModelResponse(resp)
		} else {
			n.loggedAdapterFailure.Do(func() {
				n.logger.Warn("normalization adapter unavailable, falling back to heuristic", zap.Error(err))
			})
			cleaned = n.heuristic(name, addr1, postal, city)
		}
	} else {
		cleaned = n.heuristic(name, addr1, postal, city)
	}

	if n.cache != nil {
		n.cache.Add(key, cleaned)
	}
	return cleaned
}

func fromModelResponse(resp llm.NormalizeResponse) domain.CleanedRecord {
	c := domain.CleanedRecord{
		CleanName:   strings.ToUpper(strings.TrimSpace(resp.CleanName)),
		SearchToken: strings.ToUpper(strings.TrimSpace(resp.SearchToken)),
	}
	if p := padPostal(strings.TrimSpace(resp.CleanPostal)); p != "" {
		c.CleanPostal = &p
	}
	if city := strings.ToUpper(strings.TrimSpace(resp.CleanCity)); city != "" {
		c.CleanCity = &city
	}
	return c
}

// heuristic is the deterministic fallback path: upper-case, strip legal
// suffixes at token boundaries, collapse whitespace, then pick the longest
// remaining token >=4 chars (first token otherwise).
func (n *Normalizer) heuristic(name, addr1, postal, city string) domain.CleanedRecord {
	upper := strings.ToUpper(StripDiacritics(name))
	tokens := strings.Fields(upper)

	kept := tokens[:0:0]
	for _, t := range tokens {
		if _, isSuffix := n.suffixes[t]; isSuffix {
			continue
		}
		kept = append(kept, t)
	}
	cleanName := strings.Join(kept, " ")

	var token string
	longest := -1
	for _, t := range kept {
		if _, generic := n.genericWords[t]; generic {
			continue
		}
		if len(t) >= 4 && len(t) > longest {
			longest = len(t)
			token = t
		}
	}
	if token == "" && len(kept) > 0 {
		token = kept[0]
	}

	c := domain.CleanedRecord{
		CleanName:   cleanName,
		SearchToken: token,
	}

	if p := padPostal(firstFiveDigitRun(postal, addr1)); p != "" {
		c.CleanPostal = &p
	}
	if trimmedCity := strings.ToUpper(StripDiacritics(strings.TrimSpace(city))); trimmedCity != "" {
		c.CleanCity = &trimmedCity
	}
	return c
}

// firstFiveDigitRun returns the first 5-digit substring found across the
// given fields, checked in order.
func firstFiveDigitRun(fields ...string) string {
	for _, f := range fields {
		if m := fiveDigitPattern.FindString(f); m != "" {
			return m
		}
	}
	// A purely numeric 4-digit postal is padded with one leading zero.
	for _, f := range fields {
		t := strings.TrimSpace(f)
		if fourDigitPattern.MatchString(t) {
			return "0" + t
		}
	}
	return ""
}

// padPostal pads a bare 4-digit numeric postal with a leading zero; any
// other input is returned unchanged (including "", which signals absence).
func padPostal(postal string) string {
	if postal == "" {
		return ""
	}
	if fourDigitPattern.MatchString(postal) {
		return "0" + postal
	}
	return postal
}
