package search

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// BM25Config tunes the BM25 provider. Defaults match Okapi BM25's usual
// values: k1=1.2, b=0.75, over the name+description fields.
type BM25Config struct {
	K1     float64  `json:"k1,omitempty"`
	B      float64  `json:"b,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

const (
	defaultK1 = 1.2
	defaultB  = 0.75
)

var defaultBM25Fields = []string{"name", "description"}

var tokenSplitter = regexp.MustCompile(`[^A-Za-z0-9]+`)

func tokenize(s string) []string {
	raw := tokenSplitter.Split(strings.ToLower(s), -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// BM25Provider builds a fresh index over the candidate pool for every
// query — spec.md's Non-goals explicitly exclude persisting search
// indices, so there is nothing to keep between calls.
type BM25Provider struct {
	mu     sync.Mutex
	config BM25Config
}

func NewBM25Provider() *BM25Provider {
	return &BM25Provider{}
}

func (p *BM25Provider) Name() string { return "BM25" }

func (p *BM25Provider) Initialize(_ context.Context, config json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cfg := BM25Config{K1: defaultK1, B: defaultB}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("bm25 provider: invalid config: %w", err)
		}
	}
	if cfg.K1 == 0 {
		cfg.K1 = defaultK1
	}
	if cfg.B == 0 {
		cfg.B = defaultB
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = defaultBM25Fields
	}
	p.config = cfg
	return nil
}

func (p *BM25Provider) Dispose() error { return nil }

type bm25Doc struct {
	tool       Tool
	serverUUID string
	tf         map[string]int
	length     int
}

func (p *BM25Provider) Search(_ context.Context, q Query, availableTools []AvailableTool) ([]Result, error) {
	p.mu.Lock()
	cfg := p.config
	p.mu.Unlock()

	if cfg.Fields == nil {
		cfg.Fields = defaultBM25Fields
	}
	k1 := cfg.K1
	if k1 == 0 {
		k1 = defaultK1
	}
	b := cfg.B

	if strings.TrimSpace(q.Query) == "" {
		return emptyQueryResults(availableTools, q.MaxResults), nil
	}

	queryTokens := tokenize(q.Query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	docs := make([]bm25Doc, 0, len(availableTools))
	df := make(map[string]int)
	var totalLength int

	for _, at := range availableTools {
		text := buildFieldText(at.Tool, cfg.Fields)
		tokens := tokenize(text)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		docs = append(docs, bm25Doc{tool: at.Tool, serverUUID: at.ServerUUID, tf: tf, length: len(tokens)})
		totalLength += len(tokens)
		for term := range tf {
			df[term]++
		}
	}

	n := len(docs)
	if n == 0 {
		return nil, nil
	}
	avgdl := float64(totalLength) / float64(n)
	if avgdl == 0 {
		return nil, nil
	}

	idf := make(map[string]float64, len(queryTokens))
	for _, t := range queryTokens {
		d := float64(df[t])
		idf[t] = math.Log((float64(n)-d+0.5)/(d+0.5) + 1)
	}

	normDenom := float64(len(queryTokens)) * math.Log(float64(n)+1) * (k1 + 1)

	var results []Result
	for _, doc := range docs {
		var raw float64
		var matchedTerms []string
		for _, t := range queryTokens {
			tf := doc.tf[t]
			if tf == 0 {
				continue
			}
			num := idf[t] * float64(tf) * (k1 + 1)
			den := float64(tf) + k1*(1-b+b*float64(doc.length)/avgdl)
			raw += num / den
			matchedTerms = append(matchedTerms, t)
		}
		if raw <= 0 {
			continue
		}
		score := raw
		if normDenom > 0 {
			score = raw / normDenom
		}
		if score > 1 {
			score = 1
		}
		if score <= 0 {
			continue
		}
		results = append(results, Result{
			Tool:        doc.tool,
			ServerUUID:  doc.serverUUID,
			Score:       score,
			MatchReason: matchReasonFromTerms(matchedTerms),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return clampResults(results, q.MaxResults), nil
}

func buildFieldText(t Tool, fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		switch f {
		case "name":
			parts = append(parts, t.Name)
		case "description":
			parts = append(parts, t.Description)
		}
	}
	return strings.Join(parts, " ")
}

func matchReasonFromTerms(terms []string) string {
	if len(terms) == 0 {
		return "Matched 0 terms"
	}
	if len(terms) <= 3 {
		quoted := make([]string, len(terms))
		for i, t := range terms {
			quoted[i] = `"` + t + `"`
		}
		return "Matched " + strings.Join(quoted, ", ")
	}
	return fmt.Sprintf("Matched %d terms", len(terms))
}
