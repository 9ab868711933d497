package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"voterfield/internal/domain"
)

const assignmentColumns = `id, org_id, list_id, canvasser_id, status, created_at, updated_at`

func scanAssignment(row pgx.Row) (domain.Assignment, error) {
	var a domain.Assignment
	err := row.Scan(&a.ID, &a.OrgID, &a.ListID, &a.CanvasserID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (db *DB) ListAssignments(ctx context.Context, orgID, canvasserID string) ([]domain.Assignment, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT `+assignmentColumns+` FROM assignments
        WHERE org_id = $1 AND ($2 = '' OR canvasser_id::text = $2)
        ORDER BY created_at DESC, id`, orgID, canvasserID)
	if err != nil {
		return nil, mapErr(err, "assignments")
	}
	defer rows.Close()
	out := []domain.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, mapErr(err, "assignments")
		}
		out = append(out, a)
	}
	return out, mapErr(rows.Err(), "assignments")
}

func (db *DB) GetAssignment(ctx context.Context, orgID, assignmentID string) (domain.Assignment, error) {
	a, err := scanAssignment(db.Pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE org_id = $1 AND id = $2`, orgID, assignmentID))
	return a, mapErr(err, "assignment")
}

func (db *DB) UpsertAssignment(ctx context.Context, a domain.Assignment) (domain.Assignment, error) {
	out, err := scanAssignment(db.Pool.QueryRow(ctx, `
        INSERT INTO assignments (id, org_id, list_id, canvasser_id, status)
        VALUES ($1, $2, $3, $4, 'assigned')
        ON CONFLICT (org_id, list_id) DO UPDATE SET
            canvasser_id = EXCLUDED.canvasser_id,
            status = 'assigned',
            updated_at = now()
        RETURNING `+assignmentColumns, a.ID, a.OrgID, a.ListID, a.CanvasserID))
	return out, mapErr(err, "assignment")
}

func (db *DB) SetAssignmentStatus(ctx context.Context, orgID, assignmentID string, status domain.AssignmentStatus) (domain.Assignment, error) {
	a, err := scanAssignment(db.Pool.QueryRow(ctx, `
        UPDATE assignments SET status = $3, updated_at = now()
        WHERE org_id = $1 AND id = $2
        RETURNING `+assignmentColumns, orgID, assignmentID, string(status)))
	return a, mapErr(err, "assignment")
}

// advanceAssignment moves an assignment forward after an interaction is
// recorded under it: assigned becomes in_progress, and any open assignment
// becomes completed once every voter on its list has an interaction.
func advanceAssignment(ctx context.Context, tx pgx.Tx, orgID, assignmentID string) error {
	_, err := tx.Exec(ctx, `
        UPDATE assignments a SET
            status = CASE
                WHEN NOT EXISTS (
                    SELECT 1 FROM walk_list_voters m
                    WHERE m.list_id = a.list_id
                      AND NOT EXISTS (
                          SELECT 1 FROM interactions i
                          WHERE i.org_id = a.org_id AND i.assignment_id = a.id AND i.voter_id = m.voter_id))
                THEN 'completed'
                ELSE 'in_progress'
            END,
            updated_at = now()
        WHERE a.org_id = $1 AND a.id = $2 AND a.status <> 'completed'`, orgID, assignmentID)
	return err
}
