package storage

// SchemaVersion is the current audit database schema version.
const SchemaVersion = 1

// Schema creates the audit tables. Timestamps are stored as Unix nanoseconds
// in UTC so range predicates compare integers.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
    id TEXT PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    action TEXT NOT NULL,

    advisor_id TEXT NOT NULL,
    content_id TEXT,
    delivery_id TEXT,
    content_hash TEXT,

    risk_score INTEGER NOT NULL DEFAULT 0,
    color_code TEXT,
    is_compliant BOOLEAN NOT NULL DEFAULT 0,
    fallback_used BOOLEAN NOT NULL DEFAULT 0,
    violation_types TEXT,
    stages TEXT,
    regulatory_identifier TEXT,
    processing_time_ms INTEGER,

    delivery_status TEXT,
    message_id TEXT,
    attempts INTEGER,
    error_kind TEXT,
    error TEXT,

    retention_date INTEGER NOT NULL,
    exportable BOOLEAN NOT NULL DEFAULT 1,
    flagged BOOLEAN NOT NULL DEFAULT 0,
    flag_reason TEXT
);

CREATE TRIGGER IF NOT EXISTS audit_entries_immutable
BEFORE UPDATE ON audit_entries
BEGIN
    SELECT RAISE(ABORT, 'audit entries are immutable');
END;

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_entries(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_advisor_id ON audit_entries(advisor_id);
CREATE INDEX IF NOT EXISTS idx_audit_content_id ON audit_entries(content_id);
CREATE INDEX IF NOT EXISTS idx_audit_delivery_id ON audit_entries(delivery_id);
CREATE INDEX IF NOT EXISTS idx_audit_retention_date ON audit_entries(retention_date);
CREATE INDEX IF NOT EXISTS idx_audit_flagged ON audit_entries(flagged);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion reads the newest schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const insertEntry = `
INSERT INTO audit_entries (
    id, timestamp, action,
    advisor_id, content_id, delivery_id, content_hash,
    risk_score, color_code, is_compliant, fallback_used, violation_types, stages,
    regulatory_identifier, processing_time_ms,
    delivery_status, message_id, attempts, error_kind, error,
    retention_date, exportable, flagged, flag_reason
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`

const selectColumns = `
    id, timestamp, action,
    advisor_id, content_id, delivery_id, content_hash,
    risk_score, color_code, is_compliant, fallback_used, violation_types, stages,
    regulatory_identifier, processing_time_ms,
    delivery_status, message_id, attempts, error_kind, error,
    retention_date, exportable, flagged, flag_reason
`
