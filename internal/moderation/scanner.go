package moderation

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Advertisement signal categories
const (
	AdPhone        = "phone"
	AdMessenger    = "messenger"
	AdLinkDensity  = "link_density"
	AdSolicitation = "solicitation"
)

const (
	ReasonAdultContent  = "adult content"
	ReasonAdvertisement = "advertisement"

	// minAdCategories is how many distinct ad signals must corroborate each other
	minAdCategories = 2
)

// ScanResult is the outcome of a strict scan
type ScanResult struct {
	Prohibited   bool     `json:"prohibited"`
	Reason       string   `json:"reason,omitempty"`
	AdCategories []string `json:"ad_categories,omitempty"`
}

// StrictScanner is the stricter classifier applied to already submitted content.
// It runs the base checks, then adult vocabulary, then advertisement signals.
type StrictScanner struct {
	base          *Classifier
	adult         []*regexp.Regexp
	adSignals     []adSignal
	linkThreshold int
}

type adSignal struct {
	category string
	patterns []*regexp.Regexp
}

// NewStrictScanner compiles the strict rule set
func NewStrictScanner(rules *RuleSet) (*StrictScanner, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	base, err := NewClassifier(rules)
	if err != nil {
		return nil, err
	}
	adult, err := compilePatterns("adult_patterns", rules.AdultPatterns)
	if err != nil {
		return nil, err
	}

	s := &StrictScanner{
		base:          base,
		adult:         adult,
		linkThreshold: rules.LinkDensityThreshold,
	}
	if s.linkThreshold <= 0 {
		s.linkThreshold = DefaultRules().LinkDensityThreshold
	}

	for _, cat := range []struct {
		name     string
		field    string
		patterns []string
	}{
		{AdPhone, "phone_patterns", rules.PhonePatterns},
		{AdMessenger, "messenger_patterns", rules.MessengerPatterns},
		{AdSolicitation, "solicitation_patterns", rules.SolicitationPatterns},
	} {
		compiled, err := compilePatterns(cat.field, cat.patterns)
		if err != nil {
			return nil, err
		}
		s.adSignals = append(s.adSignals, adSignal{category: cat.name, patterns: compiled})
	}

	return s, nil
}

// Scan classifies text for automatic moderation
func (s *StrictScanner) Scan(text string) ScanResult {
	if strings.TrimSpace(text) == "" {
		return ScanResult{}
	}

	if v := s.base.Classify(text); !v.IsClean {
		return ScanResult{Prohibited: true, Reason: v.Reason}
	}

	// Fold compatibility forms (fullwidth letters, ligatures) so obfuscated
	// vocabulary still matches
	folded := norm.NFKC.String(text)

	for _, re := range s.adult {
		if re.MatchString(folded) {
			return ScanResult{Prohibited: true, Reason: ReasonAdultContent}
		}
	}

	categories := s.adCategories(folded)
	if len(categories) >= minAdCategories {
		return ScanResult{
			Prohibited:   true,
			Reason:       ReasonAdvertisement,
			AdCategories: categories,
		}
	}

	return ScanResult{AdCategories: categories}
}

func (s *StrictScanner) adCategories(text string) []string {
	var categories []string
	for _, sig := range s.adSignals {
		for _, re := range sig.patterns {
			if re.MatchString(text) {
				categories = append(categories, sig.category)
				break
			}
		}
	}
	if len(extractLinkHosts(text)) >= s.linkThreshold {
		categories = append(categories, AdLinkDensity)
	}
	return categories
}
