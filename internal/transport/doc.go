// Package transport builds the HTTP client shared by the fetcher and the
// download manager, and rate-limits requests per host.
//
// The client optionally routes through a SOCKS5 proxy, keeps cookies for
// the duration of a run, and caps redirects. Timeouts are applied per
// request by callers through their context, so a page fetch and a large
// document transfer can have different bounds on the same client.
package transport
