package crawler

import (
	"bytes"
	"fmt"
	"net/http"
	"regexp"

	"github.com/nao1215/irharvest/internal/model"
)

// challengeScanLimit is the largest body inspected for bot-wall markers.
// Interstitials are small; large pages mentioning a marker in passing
// (a captcha on a contact form, say) are real content.
const challengeScanLimit = 64 * 1024

// challengeMarkers are lowercase fragments of anti-bot interstitial pages.
var challengeMarkers = [][]byte{
	[]byte("cf-browser-verification"),
	[]byte("challenge-platform"),
	[]byte("<title>just a moment...</title>"),
	[]byte("attention required! | cloudflare"),
	[]byte("_incapsula_resource"),
	[]byte("request unsuccessful. incapsula"),
	[]byte("px-captcha"),
	[]byte("distil_r_captcha"),
	[]byte("<title>access denied</title>"),
	[]byte("please enable js and disable any ad blocker"),
}

var (
	scriptTagPattern = regexp.MustCompile(`(?i)<script[\s>/]`)
	anchorTagPattern = regexp.MustCompile(`(?i)<a[\s>/]`)
)

// Classify maps a response to a FetchStatus and a short reason.
//
// statusCode zero means "unknown" and is treated as 200; this is the case
// for rendered pages. minBodySize is the Empty threshold in bytes.
func Classify(statusCode int, body []byte, minBodySize int) (model.FetchStatus, string) {
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	switch {
	case statusCode == http.StatusForbidden, statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusUnauthorized:
		return model.StatusBlocked, fmt.Sprintf("HTTP %d", statusCode)
	case statusCode == http.StatusServiceUnavailable && isChallenge(body):
		return model.StatusBlocked, "bot challenge (HTTP 503)"
	case statusCode < 200 || statusCode > 299:
		return model.StatusNetworkError, fmt.Sprintf("HTTP %d", statusCode)
	}

	if isChallenge(body) {
		return model.StatusBlocked, "bot challenge page"
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) < minBodySize {
		return model.StatusEmpty, fmt.Sprintf("body is %d bytes (minimum %d)", len(trimmed), minBodySize)
	}
	if looksClientRendered(trimmed) {
		return model.StatusEmpty, "no anchors in script-driven page"
	}

	return model.StatusUsable, fmt.Sprintf("HTTP %d, %d bytes", statusCode, len(body))
}

func isChallenge(body []byte) bool {
	if len(body) == 0 || len(body) > challengeScanLimit {
		return false
	}
	lower := bytes.ToLower(body)
	for _, marker := range challengeMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// looksClientRendered reports an HTML shell that carries scripts but no
// anchors at all, the usual shape of a single-page app before hydration.
func looksClientRendered(body []byte) bool {
	return scriptTagPattern.Match(body) && !anchorTagPattern.Match(body)
}
