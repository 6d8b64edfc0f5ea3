// Package log builds the application's slog loggers.
//
// Every logger returned here wraps its handler in a SecureHandler, which
// masks credentials before they reach the output:
//   - per-company request headers and cookies from the roster
//   - market data API keys (Alpaca key IDs and secrets)
//   - tokens embedded in seed URL query strings
//   - values that look like bearer tokens, JWTs or private keys
//
// # Usage
//
//	logger := log.New(os.Stderr, log.Options{Verbose: true})
//	logger.Info("fetching", "url", seed, "cookie", target.Cookie) // cookie is masked
//	slog.SetDefault(logger)
package log
