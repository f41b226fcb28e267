package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create messages",
		SQL: `
			CREATE TABLE messages (
				id          TEXT PRIMARY KEY,
				room_id     TEXT NOT NULL,
				sender_id   TEXT NOT NULL,
				sender_name TEXT NOT NULL DEFAULT '',
				content     TEXT NOT NULL,
				language    TEXT NOT NULL DEFAULT '',
				origin      TEXT NOT NULL DEFAULT 'human',
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_messages_room ON messages (room_id, created_at);
			CREATE INDEX idx_messages_sender ON messages (sender_id);
		`,
	},
	{
		Version: 2,
		Name:    "create applications",
		SQL: `
			CREATE TABLE applications (
				id           TEXT PRIMARY KEY,
				applicant_id TEXT NOT NULL,
				officer_id   TEXT NOT NULL DEFAULT '',
				service      TEXT NOT NULL DEFAULT '',
				status       TEXT NOT NULL DEFAULT 'open',
				created_at   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_applications_applicant ON applications (applicant_id);
			CREATE INDEX idx_applications_officer ON applications (officer_id);
		`,
	},
}
