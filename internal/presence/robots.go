package presence

import "regexp"

// robotSignatures are checked in order against the user agent
var robotSignatures = []*regexp.Regexp{
	regexp.MustCompile(`(?i)googlebot|adsbot-google|mediapartners-google`),
	regexp.MustCompile(`(?i)yandex(bot|images|metrika|direct)`),
	regexp.MustCompile(`(?i)bingbot|msnbot|bingpreview`),
	regexp.MustCompile(`(?i)duckduckbot|baiduspider|sogou|exabot|slurp`),
	regexp.MustCompile(`(?i)mail\.ru_bot|rambler`),
	regexp.MustCompile(`(?i)facebookexternalhit|twitterbot|telegrambot|vkshare|whatsapp|discordbot|slackbot`),
	regexp.MustCompile(`(?i)ahrefsbot|semrushbot|mj12bot|dotbot|petalbot|bytespider|applebot`),
	regexp.MustCompile(`(?i)gptbot|claudebot|ccbot|perplexitybot`),
	regexp.MustCompile(`(?i)curl/|wget/|python-requests|go-http-client|okhttp|headlesschrome|phantomjs`),
	regexp.MustCompile(`(?i)\b(bot|crawler|spider|scraper)\b`),
}

// IsRobot reports whether userAgent matches a known crawler signature
func IsRobot(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	for _, re := range robotSignatures {
		if re.MatchString(userAgent) {
			return true
		}
	}
	return false
}
