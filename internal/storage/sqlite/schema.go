package sqlite

import "github.com/steveyegge/vitality/internal/storage/migrations"

// All timestamps are stored as INTEGER unix nanoseconds (UTC) so that ordering
// and range queries compare numerically.
const schemaV1 = `
-- Tracked subjects
CREATE TABLE IF NOT EXISTS subjects (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

-- Append-only metric samples
CREATE TABLE IF NOT EXISTS metric_samples (
    subject_id TEXT NOT NULL,
    metric TEXT NOT NULL CHECK(metric IN ('count', 'motility', 'morphology')),
    taken_at INTEGER NOT NULL,
    value REAL NOT NULL,
    recorded_at INTEGER NOT NULL,
    PRIMARY KEY (subject_id, metric, taken_at),
    FOREIGN KEY (subject_id) REFERENCES subjects(id) ON DELETE CASCADE
);

-- Generated advice, never updated
CREATE TABLE IF NOT EXISTS recommendations (
    id TEXT PRIMARY KEY,
    subject_id TEXT NOT NULL,
    metric TEXT NOT NULL,
    text TEXT NOT NULL,
    direction TEXT NOT NULL,
    confidence REAL NOT NULL,
    slope REAL NOT NULL,
    samples INTEGER NOT NULL,
    state TEXT NOT NULL,
    latest REAL NOT NULL,
    target REAL NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (subject_id) REFERENCES subjects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_recommendations_subject ON recommendations(subject_id, created_at);

-- Recurring reminders
CREATE TABLE IF NOT EXISTS reminder_rules (
    id TEXT PRIMARY KEY,
    subject_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    message TEXT NOT NULL CHECK(length(message) <= 1000),
    frequency TEXT NOT NULL CHECK(frequency IN ('daily', 'weekly', 'monthly')),
    state TEXT NOT NULL CHECK(state IN ('scheduled', 'fired', 'snoozed', 'cancelled')),
    anchor_at INTEGER NOT NULL,
    last_fired_at INTEGER,
    next_fire_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (subject_id) REFERENCES subjects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_reminder_rules_state ON reminder_rules(state, next_fire_at);
CREATE INDEX IF NOT EXISTS idx_reminder_rules_subject ON reminder_rules(subject_id);
`

const schemaV2 = `
-- In-app notification inbox
CREATE TABLE IF NOT EXISTS inbox_items (
    id TEXT PRIMARY KEY,
    subject_id TEXT NOT NULL,
    subject TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    job_id TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL,
    read_at INTEGER,
    FOREIGN KEY (subject_id) REFERENCES subjects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_inbox_subject ON inbox_items(subject_id, created_at);

-- Terminal outcome of every dispatched job
CREATE TABLE IF NOT EXISTS delivery_attempts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id TEXT NOT NULL,
    recipient TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    rule_id TEXT NOT NULL DEFAULT '',
    attempts INTEGER NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('pending', 'delivered', 'failed-transient', 'failed-permanent')),
    last_error TEXT NOT NULL DEFAULT '',
    finished_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_delivery_attempts_status ON delivery_attempts(status, finished_at);
CREATE INDEX IF NOT EXISTS idx_delivery_attempts_job ON delivery_attempts(job_id);
`

// Rule times are stored in UTC; the anchor's zone is kept alongside so monthly
// cadence stays on the anchor's local calendar after a reload.
const schemaV3 = `
ALTER TABLE reminder_rules ADD COLUMN anchor_tz TEXT NOT NULL DEFAULT 'UTC';
ALTER TABLE reminder_rules ADD COLUMN anchor_offset INTEGER NOT NULL DEFAULT 0;
`

func schemaMigrations() []migrations.Migration {
	return []migrations.Migration{
		{
			Version:     1,
			Description: "subjects, samples, recommendations, reminder rules",
			Up:          schemaV1,
			Down: `
				DROP TABLE IF EXISTS reminder_rules;
				DROP TABLE IF EXISTS recommendations;
				DROP TABLE IF EXISTS metric_samples;
				DROP TABLE IF EXISTS subjects;
			`,
		},
		{
			Version:     2,
			Description: "inbox and delivery attempts",
			Up:          schemaV2,
			Down: `
				DROP TABLE IF EXISTS delivery_attempts;
				DROP TABLE IF EXISTS inbox_items;
			`,
		},
		{
			Version:     3,
			Description: "reminder anchor time zone",
			Up:          schemaV3,
			Down: `
				ALTER TABLE reminder_rules DROP COLUMN anchor_offset;
				ALTER TABLE reminder_rules DROP COLUMN anchor_tz;
			`,
		},
	}
}
