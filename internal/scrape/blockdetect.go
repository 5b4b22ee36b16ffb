package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes why a fetched page cannot be analyzed.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockLogin      BlockType = "login"
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// DetectBlock checks a fetched page for a login wall, anti-bot protection,
// or a script-only shell that needs a real browser.
func DetectBlock(resp *http.Response, body []byte) BlockType {
	if resp == nil {
		return BlockNone
	}

	// LMS redirect to the sign-in page.
	if resp.Request != nil && resp.Request.URL != nil && strings.Contains(resp.Request.URL.Path, "/login/") {
		return BlockLogin
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("server") == "cloudflare" {
			return BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, `name="password"`) &&
		(strings.Contains(lower, "login/index.php") || strings.Contains(lower, `id="login"`)) {
		return BlockLogin
	}

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") {
		return BlockCloudflare
	}

	if strings.Contains(lower, "recaptcha") || strings.Contains(lower, "hcaptcha") ||
		strings.Contains(lower, "g-recaptcha") {
		return BlockCaptcha
	}

	// Script-rendered quiz shells carry no question markup until JS runs.
	if len(body) < 2000 && strings.Contains(lower, "<noscript") {
		return BlockJSShell
	}

	return BlockNone
}
