// Package expand turns free-text queries into structured term
// expansions using a static domain lexicon, optionally enriched by a
// generative model when lexicon coverage is weak.
package expand

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/odfp/odfp/internal/ai"
)

// enrichmentThreshold is the lexicon confidence below which the
// generative backend is consulted for additional terms.
const enrichmentThreshold = 0.7

// Enrichment outcomes reported to the observer registered with
// OnEnrichment.
const (
	EnrichmentApplied       = "applied"
	EnrichmentNotConfigured = "not_configured"
	EnrichmentError         = "error"
	EnrichmentUnparseable   = "unparseable"
)

// Expansion is the structured interpretation of a raw query.
type Expansion struct {
	Original      string   `json:"original"`
	ExpandedTerms []string `json:"expandedTerms"`
	Concepts      []string `json:"concepts"`
	Locations     []string `json:"locations"`
	TemporalHints []string `json:"temporalHints"`
	Confidence    float64  `json:"confidence"`
}

// Expander matches queries against the lexicon and gazetteer. A nil or
// unconfigured completer limits expansion to the static tables.
type Expander struct {
	lexicon   *Lexicon
	completer ai.Completer
	logger    *slog.Logger
	report    func(outcome string)
}

// NewExpander builds an expander over the given lexicon. Pass nil for
// completer to disable generative enrichment entirely.
func NewExpander(lexicon *Lexicon, completer ai.Completer, logger *slog.Logger) *Expander {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{
		lexicon:   lexicon,
		completer: completer,
		logger:    logger.With("component", "expander"),
	}
}

// OnEnrichment registers an observer for generative enrichment
// outcomes, typically a metrics counter labelled by outcome. Call
// before serving queries; the expander does not lock the field.
func (e *Expander) OnEnrichment(fn func(outcome string)) {
	e.report = fn
}

func (e *Expander) reportEnrichment(outcome string) {
	if e.report != nil {
		e.report(outcome)
	}
}

var tokenSplit = regexp.MustCompile(`[\s,\-_]+`)

// Expand resolves the query against the lexicon and, when confidence
// stays low, asks the generative backend for more terms. Enrichment
// failures are absorbed: the lexicon-only expansion is always usable.
func (e *Expander) Expand(ctx context.Context, query string) Expansion {
	normalized := strings.ToLower(strings.TrimSpace(query))
	exp := Expansion{
		Original:   query,
		Confidence: 0.5,
	}
	if normalized == "" {
		return exp
	}

	seen := map[string]bool{}
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || seen[term] {
			return
		}
		seen[term] = true
		exp.ExpandedTerms = append(exp.ExpandedTerms, term)
	}
	add(normalized)

	tokens := tokenSplit.Split(normalized, -1)

	for _, name := range e.conceptNames() {
		concept := e.lexicon.Concepts[name]
		if !matchesConcept(normalized, tokens, name, concept) {
			continue
		}
		exp.Concepts = append(exp.Concepts, name)
		exp.Confidence += 0.1
		add(name)
		for _, s := range concept.Synonyms {
			add(s)
		}
		for _, r := range concept.Related {
			add(r)
		}
		for _, c := range concept.Contexts {
			add(name + " " + c)
			add(c + " " + name)
		}
	}

	for _, loc := range e.locationNames() {
		if !strings.Contains(normalized, loc) {
			continue
		}
		exp.Locations = append(exp.Locations, loc)
		exp.Confidence += 0.15
		add(loc)
		for _, alias := range e.lexicon.Locations[loc] {
			add(alias)
		}
	}

	for _, tp := range e.lexicon.Temporal {
		if tp.Pattern.MatchString(normalized) {
			exp.TemporalHints = append(exp.TemporalHints, tp.Hint)
			exp.Confidence += 0.1
		}
	}

	if exp.Confidence > 1.0 {
		exp.Confidence = 1.0
	}

	if exp.Confidence < enrichmentThreshold && e.completer != nil {
		e.enrich(ctx, &exp, seen)
	}
	return exp
}

// matchesConcept reports whether the query mentions the concept by name
// or by any synonym. Matching is substring in both directions so that
// "sst" hits "temperature" and "sea surface temperature anomaly" hits
// "sst".
func matchesConcept(normalized string, tokens []string, name string, concept Concept) bool {
	if strings.Contains(normalized, name) {
		return true
	}
	for _, syn := range concept.Synonyms {
		syn = strings.ToLower(syn)
		if strings.Contains(normalized, syn) {
			return true
		}
		for _, tok := range tokens {
			if tok != "" && strings.Contains(syn, tok) && len(tok) >= 3 {
				return true
			}
		}
	}
	return false
}

func (e *Expander) conceptNames() []string {
	names := make([]string, 0, len(e.lexicon.Concepts))
	for name := range e.lexicon.Concepts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Expander) locationNames() []string {
	names := make([]string, 0, len(e.lexicon.Locations))
	for name := range e.lexicon.Locations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type enrichmentResponse struct {
	Terms         []string `json:"terms"`
	Concepts      []string `json:"concepts"`
	TemporalHints []string `json:"temporalHints"`
}

// enrich asks the completer for additional search terms. Any failure
// (sentinel answer, malformed JSON, backend error) leaves the lexicon
// expansion untouched.
func (e *Expander) enrich(ctx context.Context, exp *Expansion, seen map[string]bool) {
	prompt := fmt.Sprintf(`You expand oceanographic data search queries. Given the query below, list additional scientific variable names, standard vocabulary terms, and instrument or platform names a dataset catalog might use.

Query: %q
Known concepts: %s

Respond with JSON only, no prose:
{"terms": ["..."], "concepts": ["..."], "temporalHints": ["..."]}`,
		exp.Original, strings.Join(exp.Concepts, ", "))

	raw, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		e.reportEnrichment(EnrichmentError)
		e.logger.Warn("expansion enrichment failed", "err", err)
		return
	}
	if ai.IsNotConfigured(raw) {
		e.reportEnrichment(EnrichmentNotConfigured)
		return
	}

	var parsed enrichmentResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		e.reportEnrichment(EnrichmentUnparseable)
		e.logger.Warn("expansion enrichment returned unparseable response", "err", err)
		return
	}
	e.reportEnrichment(EnrichmentApplied)

	added := 0
	for _, t := range parsed.Terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		exp.ExpandedTerms = append(exp.ExpandedTerms, t)
		added++
	}
	for _, c := range parsed.Concepts {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || containsString(exp.Concepts, c) {
			continue
		}
		exp.Concepts = append(exp.Concepts, c)
	}
	for _, h := range parsed.TemporalHints {
		h = strings.TrimSpace(h)
		if h == "" || containsString(exp.TemporalHints, h) {
			continue
		}
		exp.TemporalHints = append(exp.TemporalHints, h)
	}
	if added > 0 {
		exp.Confidence += 0.1
		if exp.Confidence > 1.0 {
			exp.Confidence = 1.0
		}
	}
}

// stripFences removes markdown code fences that chat models wrap JSON
// in, tolerating a language tag after the opening fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "json" || first == "JSON" || first == "" {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
