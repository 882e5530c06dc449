package padmapper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"padmapper-scraper/utils"
)

// blockedTokens are substrings whose presence anywhere in a page marks it as
// a protection or challenge page. Matched case-insensitively.
var blockedTokens = []string{
	"cloudflare",
	"cf-browser-verification",
	"challenge-running",
	"challenge-platform",
	"checking your browser",
	"just a moment",
	"attention required",
	"verify you are human",
	"recaptcha",
	"hcaptcha",
	"captcha",
	"access denied",
	"cf-ray",
}

// ProtectionDetector classifies acquired content as blocked or clean.
type ProtectionDetector struct {
	logger *utils.Logger
}

// NewProtectionDetector returns a detector logging through logger.
func NewProtectionDetector(logger *utils.Logger) *ProtectionDetector {
	return &ProtectionDetector{logger: logger}
}

// Blocked reports whether content looks like an anti-automation challenge
// page. A content payload that cannot be evaluated is treated as blocked.
func (d *ProtectionDetector) Blocked(content string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		d.logger.Warn("[protect] could not parse content, assuming blocked: %v", err)
		return true
	}

	// DOM probes for known challenge markup.
	blocked := false
	doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(s.Text()), "verify you are a human") {
			blocked = true
			return false
		}
		return true
	})
	if blocked {
		return true
	}

	if title := doc.Find("title").First().Text(); strings.Contains(title, "Security Check") {
		return true
	}
	if doc.Find("div.cf-browser-verification").Length() > 0 {
		return true
	}
	if doc.Find("div#challenge-running").Length() > 0 {
		return true
	}

	return containsAny(strings.ToLower(content), blockedTokens)
}

// containsAny reports whether text contains any of the given keywords.
func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
