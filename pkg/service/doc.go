// Package service ties content validation to delivery.
//
// Submit runs content through the compliance pipeline and only enqueues it
// for delivery when the verdict is compliant. Verdicts, enqueues and
// terminal delivery outcomes are all written to the audit trail.
package service
