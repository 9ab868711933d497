package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"voterfield/internal/domain"
)

const listSelect = `
    SELECT l.id, l.org_id, l.name, l.created_by, l.created_at,
           COALESCE(array_agg(m.voter_id::text ORDER BY m.position) FILTER (WHERE m.voter_id IS NOT NULL), '{}')
    FROM walk_lists l
    LEFT JOIN walk_list_voters m ON m.list_id = l.id`

func scanWalkList(row pgx.Row) (domain.WalkList, error) {
	var l domain.WalkList
	err := row.Scan(&l.ID, &l.OrgID, &l.Name, &l.CreatedByUserID, &l.CreatedAt, &l.VoterIDs)
	if l.VoterIDs == nil {
		l.VoterIDs = []string{}
	}
	return l, err
}

func (db *DB) ListWalkLists(ctx context.Context, orgID string) ([]domain.WalkList, error) {
	rows, err := db.Pool.Query(ctx, listSelect+`
        WHERE l.org_id = $1
        GROUP BY l.id
        ORDER BY l.created_at DESC, l.id`, orgID)
	if err != nil {
		return nil, mapErr(err, "walk lists")
	}
	defer rows.Close()
	out := []domain.WalkList{}
	for rows.Next() {
		l, err := scanWalkList(rows)
		if err != nil {
			return nil, mapErr(err, "walk lists")
		}
		out = append(out, l)
	}
	return out, mapErr(rows.Err(), "walk lists")
}

func (db *DB) GetWalkList(ctx context.Context, orgID, listID string) (domain.WalkList, error) {
	l, err := scanWalkList(db.Pool.QueryRow(ctx, listSelect+`
        WHERE l.org_id = $1 AND l.id = $2
        GROUP BY l.id`, orgID, listID))
	return l, mapErr(err, "walk list")
}

// CreateWalkList stores the list and its membership in one transaction. The
// voter ids must already be distinct.
func (db *DB) CreateWalkList(ctx context.Context, l domain.WalkList) (domain.WalkList, error) {
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		var known int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM voters WHERE org_id = $1 AND id = ANY($2::text[]::uuid[])`,
			l.OrgID, l.VoterIDs).Scan(&known); err != nil {
			return err
		}
		if known != len(l.VoterIDs) {
			return domain.BadRequest("voterIds contains ids that are not voters of this organization")
		}
		if _, err := tx.Exec(ctx, `
            INSERT INTO walk_lists (id, org_id, name, created_by)
            VALUES ($1, $2, $3, $4)`, l.ID, l.OrgID, l.Name, l.CreatedByUserID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
            INSERT INTO walk_list_voters (org_id, list_id, voter_id, position)
            SELECT $1::uuid, $2::uuid, m.voter_id, m.ord
            FROM unnest($3::text[]::uuid[]) WITH ORDINALITY AS m(voter_id, ord)`,
			l.OrgID, l.ID, l.VoterIDs)
		return err
	})
	if err != nil {
		return domain.WalkList{}, mapErr(err, "walk list")
	}
	return db.GetWalkList(ctx, l.OrgID, l.ID)
}
