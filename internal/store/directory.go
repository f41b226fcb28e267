package store

import (
	"context"
	"fmt"

	"github.com/amerhub/amerhub/internal/hub"
)

// Directory implements hub.ApplicationDirectory over the applications
// table. Room ids are derived deterministically from application record
// ids, so anyone with legitimate access to a record can be auto-joined
// without a separate lookup.
type Directory struct {
	db *DB
}

// NewDirectory creates a directory using the given database.
func NewDirectory(db *DB) *Directory {
	return &Directory{db: db}
}

// RoomID derives the broadcast-group room id for an application record.
func RoomID(applicationID string) string {
	return "app_" + applicationID
}

// RoomsFor returns the application rooms an identity should auto-join.
// Applicants follow their own open applications, officers the ones
// assigned to them. Admins join nothing automatically.
func (d *Directory) RoomsFor(ctx context.Context, identity, role string) ([]string, error) {
	var query string
	switch role {
	case hub.RoleApplicant:
		query = `SELECT id FROM applications WHERE applicant_id = ? AND status = 'open'`
	case hub.RoleOfficer:
		query = `SELECT id FROM applications WHERE officer_id = ? AND status = 'open'`
	default:
		return nil, nil
	}

	rows, err := d.db.sql.QueryContext(ctx, query, identity)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	defer rows.Close()

	var rooms []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning application: %w", err)
		}
		rooms = append(rooms, RoomID(id))
	}
	return rooms, rows.Err()
}

// UpsertApplication records an application so its room can be
// auto-joined. Used by provisioning tooling and tests; the CRUD surface
// that normally writes these rows lives outside the hub.
func (d *Directory) UpsertApplication(ctx context.Context, id, applicantID, officerID, service, status string) error {
	if status == "" {
		status = "open"
	}
	_, err := d.db.sql.ExecContext(ctx,
		`INSERT INTO applications (id, applicant_id, officer_id, service, status)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			applicant_id = excluded.applicant_id,
			officer_id = excluded.officer_id,
			service = excluded.service,
			status = excluded.status`,
		id, applicantID, officerID, service, status,
	)
	if err != nil {
		return fmt.Errorf("upserting application: %w", err)
	}
	return nil
}
