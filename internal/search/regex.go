package search

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// RegexConfig tunes the REGEX provider. An explicit Pattern is tried
// first; if it fails to compile, the provider falls back to a literal
// substring match of the query rather than erroring.
type RegexConfig struct {
	Pattern       string   `json:"pattern,omitempty"`
	CaseSensitive bool     `json:"case_sensitive,omitempty"`
	Fields        []string `json:"fields,omitempty"`
}

var defaultRegexFields = []string{"name", "description"}

var fieldWeight = map[string]float64{
	"name":        0.6,
	"description": 0.3,
}

// metaCharEscaper escapes all regex metacharacters so an unconfigured query
// is treated as a literal substring.
var metaCharEscaper = strings.NewReplacer(
	`.`, `\.`, `*`, `\*`, `+`, `\+`, `?`, `\?`, `^`, `\^`, `$`, `\$`,
	`{`, `\{`, `}`, `\}`, `(`, `\(`, `)`, `\)`, `|`, `\|`, `[`, `\[`,
	`]`, `\]`, `\`, `\\`,
)

// RegexProvider matches an explicitly configured pattern, or the user
// query treated as a literal substring, against the configured fields.
type RegexProvider struct {
	mu     sync.Mutex
	config RegexConfig
}

// NewRegexProvider constructs an unconfigured REGEX provider.
func NewRegexProvider() *RegexProvider {
	return &RegexProvider{}
}

func (p *RegexProvider) Name() string { return "REGEX" }

// Initialize is idempotent for the same config: re-calling with an
// identical RegexConfig is a no-op beyond re-assigning the same value.
func (p *RegexProvider) Initialize(_ context.Context, config json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var cfg RegexConfig
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("regex provider: invalid config: %w", err)
		}
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = defaultRegexFields
	}
	p.config = cfg
	return nil
}

func (p *RegexProvider) Dispose() error { return nil }

type fieldMatch struct {
	field      string
	index      int
	matchLength int
}

func (p *RegexProvider) Search(_ context.Context, q Query, availableTools []AvailableTool) ([]Result, error) {
	p.mu.Lock()
	cfg := p.config
	p.mu.Unlock()

	fields := cfg.Fields
	if len(fields) == 0 {
		fields = defaultRegexFields
	}

	if strings.TrimSpace(q.Query) == "" {
		return emptyQueryResults(availableTools, q.MaxResults), nil
	}

	re := p.compile(cfg, q.Query)

	var results []Result
	for _, at := range availableTools {
		matches := p.fieldMatches(re, at.Tool, fields)
		if len(matches) == 0 {
			continue
		}
		score, matchedFields := scoreFieldMatches(matches)
		if score <= 0 {
			continue
		}
		results = append(results, Result{
			Tool:        at.Tool,
			ServerUUID:  at.ServerUUID,
			Score:       score,
			MatchReason: "Matched in " + strings.Join(matchedFields, ", "),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return clampResults(results, q.MaxResults), nil
}

// compile builds the matcher: the configured Pattern if it compiles,
// otherwise a literal-substring pattern built from the query.
func (p *RegexProvider) compile(cfg RegexConfig, query string) *regexp.Regexp {
	flags := "i"
	if cfg.CaseSensitive {
		flags = ""
	}

	if cfg.Pattern != "" {
		pat := cfg.Pattern
		if flags != "" {
			pat = "(?" + flags + ")" + pat
		}
		if re, err := regexp.Compile(pat); err == nil {
			return re
		}
		// Configured pattern failed to compile: fall back to literal
		// substring of the query, never error.
	}

	literal := metaCharEscaper.Replace(query)
	pat := literal
	if flags != "" {
		pat = "(?" + flags + ")" + pat
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		// query itself is unrepresentable (shouldn't happen once
		// escaped); fall back to a pattern that never matches.
		re = regexp.MustCompile(`$^`)
	}
	return re
}

// fieldMatches records at most one match per field.
func (p *RegexProvider) fieldMatches(re *regexp.Regexp, t Tool, fields []string) []fieldMatch {
	var matches []fieldMatch
	for _, field := range fields {
		var text string
		switch field {
		case "name":
			text = t.Name
		case "description":
			text = t.Description
		default:
			continue
		}
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		matches = append(matches, fieldMatch{
			field:       field,
			index:       loc[0],
			matchLength: loc[1] - loc[0],
		})
	}
	return matches
}

func scoreFieldMatches(matches []fieldMatch) (float64, []string) {
	var score float64
	fields := make([]string, 0, len(matches))
	for _, m := range matches {
		weight := fieldWeight[m.field]
		positionBonus := 0.20 - 0.003*float64(m.index)
		if positionBonus < 0.05 {
			positionBonus = 0.05
		}
		lengthBonus := 0.02 * float64(m.matchLength)
		if lengthBonus > 0.20 {
			lengthBonus = 0.20
		}
		score += weight + positionBonus + lengthBonus
		fields = append(fields, m.field)
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, fields
}
