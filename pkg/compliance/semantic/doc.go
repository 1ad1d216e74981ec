// Package semantic provides the semantic analysis stage of the compliance
// pipeline: an external reasoning service that scores tone,
// misleading-claim risk and clarity.
//
// Every failure is reported as an *AIServiceError so the pipeline can fall
// back to a rules-only verdict. Results are cached by content hash, which
// makes repeated validation of identical text near-free.
package semantic
