// Package moderation implements rule-based text screening and the
// hide/unhide workflow for forum content.
package moderation

import (
	"net"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Verdict reasons surfaced to users
const (
	ReasonExcessiveCaps      = "excessive caps"
	ReasonProhibited         = "prohibited words or links"
	ReasonExcessiveRepeating = "excessive repetition"
)

const (
	minLengthForCaps   = 10
	maxCapsRatio       = 0.6
	minTokensForRepeat = 10
	minUniqueRatio     = 0.3
)

// Verdict is the outcome of classifying a text
type Verdict struct {
	IsClean bool   `json:"is_clean"`
	Reason  string `json:"reason,omitempty"`
}

func clean() Verdict { return Verdict{IsClean: true} }

func flagged(reason string) Verdict { return Verdict{Reason: reason} }

var linkPattern = regexp.MustCompile(`(?i)(?:https?://([^\s/?#<>"'\]\[]+)|\bwww\.([^\s/?#<>"'\]\[]+))`)

// Classifier screens user text against caps, pattern and repetition checks.
// It holds only compiled, read-only state and is safe for concurrent use.
type Classifier struct {
	blocked        []*regexp.Regexp
	allowedDomains []string
}

// NewClassifier compiles the blocked patterns of rules
func NewClassifier(rules *RuleSet) (*Classifier, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	blocked, err := compilePatterns("blocked_patterns", rules.BlockedPatterns)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		blocked:        blocked,
		allowedDomains: normalizeDomains(rules.AllowedDomains),
	}, nil
}

// Classify runs the checks in order and returns the first failure.
// Text is NFKC-folded first so compatibility forms match the patterns.
func (c *Classifier) Classify(text string) Verdict {
	if text == "" {
		return clean()
	}
	text = norm.NFKC.String(text)

	if hasExcessiveCaps(text) {
		return flagged(ReasonExcessiveCaps)
	}

	if c.matchesBlocked(text) || c.hasForeignLink(text) {
		return flagged(ReasonProhibited)
	}

	if hasExcessiveRepetition(text) {
		return flagged(ReasonExcessiveRepeating)
	}

	return clean()
}

func hasExcessiveCaps(text string) bool {
	length := utf8.RuneCountInString(text)
	if length <= minLengthForCaps {
		return false
	}
	upper := 0
	for _, r := range text {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper)/float64(length) > maxCapsRatio
}

func (c *Classifier) matchesBlocked(text string) bool {
	for _, re := range c.blocked {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (c *Classifier) hasForeignLink(text string) bool {
	for _, host := range extractLinkHosts(text) {
		if !c.domainAllowed(host) {
			return true
		}
	}
	return false
}

func (c *Classifier) domainAllowed(host string) bool {
	for _, d := range c.allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// extractLinkHosts returns the lowercased host of every link in text
func extractLinkHosts(text string) []string {
	matches := linkPattern.FindAllStringSubmatch(text, -1)
	hosts := make([]string, 0, len(matches))
	for _, m := range matches {
		host := m[1]
		if host == "" {
			host = "www." + m[2]
		}
		if at := strings.LastIndex(host, "@"); at >= 0 {
			host = host[at+1:]
		}
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		host = strings.TrimSuffix(strings.ToLower(host), ".")
		host = strings.TrimPrefix(host, "www.")
		hosts = append(hosts, host)
	}
	return hosts
}

func hasExcessiveRepetition(text string) bool {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) <= minTokensForRepeat {
		return false
	}
	unique := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		unique[t] = struct{}{}
	}
	return float64(len(unique))/float64(len(tokens)) < minUniqueRatio
}
