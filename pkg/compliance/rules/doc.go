// Package rules implements the deterministic compliance rule engine.
//
// The Engine checks content against a Rulebook: prohibited phrases,
// discouraged phrases, mandatory disclaimers, the advisor's regulatory
// identifier and educational markers. A prohibited phrase is critical and
// pins the risk score to 100. Everything else adds a weighted contribution
// and, where possible, can be repaired by AutoFix. AutoFix never repairs
// content that carries a critical violation.
//
// Rulebooks are YAML. The built-in one can be replaced by a file, which a
// Watcher reloads on change, or by a file in a Git repository kept current
// by a GitSource.
package rules
