// Package export serializes audit entries for regulators.
//
// Build produces an Export whose checksum is the SHA-256 of the serialized
// payload. Verify re-parses a payload and returns the record count and
// checksum, so a round trip through storage or transfer can be checked:
//
//	exp, _ := export.Build(ctx, entries, export.FormatCSV, false)
//	count, sum, err := export.Verify(exp.Data, exp.Format)
//	// count == exp.RecordCount && sum == exp.Checksum
package export
