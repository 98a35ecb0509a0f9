// Package logging provides opt-in file-based logging with rotation for the
// search engine's server and background reindex workers.
//
// When debug logging is enabled, comprehensive logs are written to
// ~/.docsearch/logs/ for troubleshooting. By default, logging is minimal
// and goes to stderr only.
package logging
