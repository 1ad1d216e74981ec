// Package compliance holds the types shared by the rule engine, the
// semantic analyzer and the validation pipeline: content items, violations,
// stage results and the final verdict.
//
// Risk scores range 0-100 and map to a colour code:
//
//	green   0-30
//	yellow  31-70
//	red     71-100
package compliance
