// Package pipeline orchestrates compliance validation.
//
// Each content item moves through a small state machine: RuleCheck,
// SemanticCheck, Aggregate, Done. A critical rule violation jumps straight
// to Done, so no semantic call is made and no favourable semantic score can
// override the rejection. A failing semantic analyzer does not fail the
// validation; the verdict is computed from the rules alone and marked
// FallbackUsed.
//
// Every stage is reported in the result, skipped ones included, and every
// verdict is passed to the configured Recorder.
package pipeline
