// Package trail implements the audit trail service on top of an audit.Storage.
//
// The Trail assigns entry IDs, stamps a retention date of timestamp plus the
// configured retention years, and flags high-risk verdicts (risk score above
// 70 or non-compliant) at write time, notifying every registered Flagger.
// It also serves paginated queries, checksummed compliance exports and
// retention purges.
package trail
