package tracing

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys used across Jarvish.
const (
	AttrContentID   = "jarvish.content.id"
	AttrAdvisorID   = "jarvish.advisor.id"
	AttrContentHash = "jarvish.content.hash"
	AttrStage       = "jarvish.pipeline.stage"
	AttrRiskScore   = "jarvish.pipeline.risk_score"
	AttrColorCode   = "jarvish.pipeline.color"
	AttrFallback    = "jarvish.pipeline.fallback"
	AttrDeliveryID  = "jarvish.delivery.id"
	AttrJobID       = "jarvish.delivery.job_id"
	AttrAttempt     = "jarvish.delivery.attempt"
	AttrErrorKind   = "jarvish.delivery.error_kind"
)

// ContentAttributes returns the identifying attributes of a content item.
func ContentAttributes(contentID, advisorID, hash string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrContentID, contentID),
		attribute.String(AttrAdvisorID, advisorID),
		attribute.String(AttrContentHash, hash),
	}
}

// DeliveryAttributes returns the identifying attributes of a delivery job.
func DeliveryAttributes(jobID, deliveryID string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrJobID, jobID),
		attribute.String(AttrDeliveryID, deliveryID),
		attribute.Int(AttrAttempt, attempt),
	}
}
