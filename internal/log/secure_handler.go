package log

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// sensitiveKeys are attribute keys (lowercase) whose values are always masked.
var sensitiveKeys = map[string]bool{
	// HTTP headers sent to investor-relations sites
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,

	// Market data credentials
	"apca-api-key-id":     true,
	"apca-api-secret-key": true,
	"alpaca_api_key":      true,
	"alpaca_api_secret":   true,
	"api_key":             true,
	"apikey":              true,
	"api_secret":          true,

	// Generic
	"password":   true,
	"secret":     true,
	"token":      true,
	"session":    true,
	"session_id": true,
}

// sensitiveKeywords mask any key containing them. The bare word "key" is
// deliberately absent: "cache_key" or "sort_key" are not secrets.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "cookie",
}

// sensitiveQueryParams are URL query parameters whose values are masked.
var sensitiveQueryParams = map[string]bool{
	"token":        true,
	"access_token": true,
	"apikey":       true,
	"api_key":      true,
	"key":          true,
	"sig":          true,
	"signature":    true,
	"auth":         true,
}

// sensitivePatterns match secret-looking values regardless of key.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^[AP]K[A-Z0-9]{18}$`),  // Alpaca key ID
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),   // AWS access key
	regexp.MustCompile(`^[a-zA-Z0-9]{40,}$`),   // long opaque secrets
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// SecureHandler wraps an slog.Handler and masks sensitive attribute values
// before passing records on.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler means slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs masks attrs before adding them.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitized)}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindGroup:
		attrs := a.Value.Group()
		sanitized := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			sanitized[i] = sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	case slog.KindAny:
		if hdr, ok := a.Value.Any().(http.Header); ok {
			return slog.Any(a.Key, sanitizeHeader(hdr))
		}
		if hdr, ok := a.Value.Any().(map[string]string); ok {
			return slog.Any(a.Key, sanitizeStringMap(hdr))
		}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		s := a.Value.String()
		if isSensitiveValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		if masked, changed := sanitizeURL(s); changed {
			return slog.String(a.Key, masked)
		}
	}

	return a
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	return sensitiveKeys[lower] || containsSensitiveKeyword(lower)
}

func containsSensitiveKeyword(key string) bool {
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// sanitizeURL masks sensitive query parameters and userinfo passwords in
// an absolute URL. Non-URLs are returned unchanged.
func sanitizeURL(s string) (string, bool) {
	if !strings.Contains(s, "://") {
		return s, false
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s, false
	}

	changed := false
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), MaskValue)
		changed = true
	}

	q := u.Query()
	for name := range q {
		if sensitiveQueryParams[strings.ToLower(name)] {
			q.Set(name, MaskValue)
			changed = true
		}
	}
	if !changed {
		return s, false
	}
	u.RawQuery = q.Encode()
	return u.String(), true
}

func sanitizeHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for name, values := range h {
		if isSensitiveKey(name) {
			out[name] = []string{MaskValue}
			continue
		}
		out[name] = values
	}
	return out
}

func sanitizeStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if isSensitiveKey(k) || isSensitiveValue(v) {
			out[k] = MaskValue
			continue
		}
		out[k] = v
	}
	return out
}

// Options selects the logger's level and format.
type Options struct {
	// Verbose enables debug output; otherwise the level is Info.
	Verbose bool

	// JSON selects the JSON handler instead of text.
	JSON bool
}

// New creates a logger writing to w with sensitive values masked.
func New(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(NewSecureHandler(handler))
}

// Discard returns a logger that drops everything, for tests and quiet modes.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
