package moderation

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleSet is the declarative pattern configuration used by the classifiers.
// Patterns are regular expressions matched case-insensitively.
type RuleSet struct {
	// BlockedPatterns are checked in order by Classify; first match wins
	BlockedPatterns []string `yaml:"blocked_patterns"`
	// AllowedDomains may be linked freely; subdomains are allowed too
	AllowedDomains []string `yaml:"allowed_domains"`
	// AdultPatterns are only checked by the strict scanner
	AdultPatterns []string `yaml:"adult_patterns"`
	// Advertisement signal categories for the strict scanner
	PhonePatterns        []string `yaml:"phone_patterns"`
	MessengerPatterns    []string `yaml:"messenger_patterns"`
	SolicitationPatterns []string `yaml:"solicitation_patterns"`
	// LinkDensityThreshold is the number of links that counts as an ad signal
	LinkDensityThreshold int `yaml:"link_density_threshold"`
}

// DefaultRules returns the built-in rule set
func DefaultRules() *RuleSet {
	return &RuleSet{
		BlockedPatterns: []string{
			// spam
			`viagra|cialis|заработ(ок|ай)\s+без\s+вложений|make\s+money\s+fast|free\s+money`,
			// gambling
			`казино|casino|ставк[аи]|букмекер|betting|poker|покер|джекпот|jackpot|лотере[яи]`,
			// imperative sales verbs
			`купите|закажите|покупайте|buy\s+now|order\s+now|limited\s+offer`,
		},
		AllowedDomains: []string{
			"prohub.ru",
			"github.com",
			"youtube.com",
			"youtu.be",
			"stackoverflow.com",
			"wikipedia.org",
		},
		AdultPatterns: []string{
			`porn|порно|xxx|секс\s*знакомств|эротик|escort|эскорт|onlyfans|nsfw`,
		},
		PhonePatterns: []string{
			`\+?\d[\d\-\s().]{8,}\d`,
		},
		MessengerPatterns: []string{
			`telegram|телеграм|whatsapp|ватсап|viber|вайбер|t\.me/|wa\.me/`,
		},
		SolicitationPatterns: []string{
			`пиши(те)?\s+в\s+(лс|личку)|звони(те)?|contact\s+me|dm\s+me|write\s+to\s+me`,
		},
		LinkDensityThreshold: 3,
	}
}

// LoadRules reads a YAML rule file and merges it over the defaults.
// Lists are appended to the defaults; a non-zero threshold replaces it.
// An empty path returns the defaults.
func LoadRules(path string) (*RuleSet, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var extra RuleSet
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	rules.Merge(&extra)
	return rules, nil
}

// Merge appends the lists of other onto r
func (r *RuleSet) Merge(other *RuleSet) {
	r.BlockedPatterns = append(r.BlockedPatterns, other.BlockedPatterns...)
	r.AllowedDomains = append(r.AllowedDomains, other.AllowedDomains...)
	r.AdultPatterns = append(r.AdultPatterns, other.AdultPatterns...)
	r.PhonePatterns = append(r.PhonePatterns, other.PhonePatterns...)
	r.MessengerPatterns = append(r.MessengerPatterns, other.MessengerPatterns...)
	r.SolicitationPatterns = append(r.SolicitationPatterns, other.SolicitationPatterns...)
	if other.LinkDensityThreshold > 0 {
		r.LinkDensityThreshold = other.LinkDensityThreshold
	}
}

func compilePatterns(field string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, "www.")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
