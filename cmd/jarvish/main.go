// Jarvish validates advisor-authored promotional content against financial
// promotion rules and delivers compliant content to subscribers.
//
// It runs as an HTTP service providing:
//   - Rule-based and semantic compliance checks with auto-fix
//   - An append-only audit trail with compliance exports
//   - A quota-bounded, rate-limited delivery queue
//
// Usage:
//
//	# Start the service with default configuration
//	jarvish run
//
//	# Start with a custom configuration file
//	jarvish run --config /etc/jarvish/config.yaml
//
//	# Validate content offline
//	jarvish validate post.txt --fix
//
//	# Export the audit trail for a regulator
//	jarvish audit export --start 2026-01-01T00:00:00Z --end 2026-02-01T00:00:00Z --format csv --out jan.csv
//
//	# Lint a rulebook
//	jarvish rules lint rules.yaml
package main

func main() {
	Execute()
}
