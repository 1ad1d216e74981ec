package audit

import (
	"errors"
	"fmt"
)

// Validate checks the query for malformed filters.
func (q *Query) Validate() error {
	if q.Limit < 0 {
		return NewQueryError(q, errors.New("limit must be non-negative"))
	}
	if q.Offset < 0 {
		return NewQueryError(q, errors.New("offset must be non-negative"))
	}
	switch q.SortOrder {
	case "", SortAsc, SortDesc:
	default:
		return NewQueryError(q, fmt.Errorf("invalid sort order %q", q.SortOrder))
	}
	if q.StartTime != nil && q.EndTime != nil && !q.StartTime.Before(*q.EndTime) {
		return NewQueryError(q, errors.New("start time must be before end time"))
	}
	for _, a := range q.Actions {
		if !a.Valid() {
			return NewQueryError(q, fmt.Errorf("unknown action %q", a))
		}
	}
	if q.MinRiskScore != nil && (*q.MinRiskScore < 0 || *q.MinRiskScore > 100) {
		return NewQueryError(q, errors.New("min risk score must be between 0 and 100"))
	}
	return nil
}

// Matches reports whether e satisfies the query filters. Pagination is ignored.
func (q *Query) Matches(e *Entry) bool {
	if q.AdvisorID != "" && e.AdvisorID != q.AdvisorID {
		return false
	}
	if q.ContentID != "" && e.ContentID != q.ContentID {
		return false
	}
	if q.DeliveryID != "" && e.DeliveryID != q.DeliveryID {
		return false
	}
	if len(q.Actions) > 0 {
		found := false
		for _, a := range q.Actions {
			if e.Action == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.StartTime != nil && e.Timestamp.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && !e.Timestamp.Before(*q.EndTime) {
		return false
	}
	if q.Flagged != nil && e.Flagged != *q.Flagged {
		return false
	}
	if q.MinRiskScore != nil && e.RiskScore < *q.MinRiskScore {
		return false
	}
	if q.ExportableOnly && !e.Exportable {
		return false
	}
	return true
}

// Descending reports whether results are ordered newest first.
func (q *Query) Descending() bool {
	return q.SortOrder != SortAsc
}
