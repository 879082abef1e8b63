// Package policy supplies the per-item exclusion verdicts consumed by
// the analysis engine.
package policy

import (
	"strings"

	"github.com/aurafarma/backend-go/internal/domain"
)

// DefaultColdChainKeywords match immunization items that are supplied
// through a separate cold-chain program and must never generate a
// requirement.
var DefaultColdChainKeywords = []string{"VACUNA", "DILUYENTE"}

// KeywordExclusion excludes items whose name contains any of the
// configured keywords, case-insensitively.
type KeywordExclusion struct {
	keywords []string
}

// NewKeywordExclusion builds a matcher; an empty list falls back to the
// default cold-chain keywords.
func NewKeywordExclusion(keywords []string) *KeywordExclusion {
	if len(keywords) == 0 {
		keywords = DefaultColdChainKeywords
	}
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToUpper(strings.TrimSpace(kw))
		if kw != "" {
			normalized = append(normalized, kw)
		}
	}
	return &KeywordExclusion{keywords: normalized}
}

// Excluded reports whether the item name matches an exclusion keyword.
func (p *KeywordExclusion) Excluded(item domain.ItemRecord) bool {
	name := strings.ToUpper(item.Name)
	for _, kw := range p.keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}
