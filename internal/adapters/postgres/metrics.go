package postgres

import (
	"context"

	"voterfield/internal/domain"
)

// OrgCounts gathers the metrics aggregates in a single round trip.
func (db *DB) OrgCounts(ctx context.Context, orgID string) (domain.OrgCounts, error) {
	out := domain.OrgCounts{
		ResultsByCode:       map[domain.ResultCode]int{},
		AssignmentsByStatus: map[domain.AssignmentStatus]int{},
	}
	var byCode, byStatus []byte
	err := db.Pool.QueryRow(ctx, `
        SELECT
            (SELECT count(*) FROM voters WHERE org_id = $1),
            (SELECT count(*) FROM interactions WHERE org_id = $1),
            (SELECT COALESCE(jsonb_object_agg(result_code, n), '{}'::jsonb)
               FROM (SELECT result_code, count(*) AS n FROM interactions WHERE org_id = $1 GROUP BY result_code) r),
            (SELECT COALESCE(jsonb_object_agg(status, n), '{}'::jsonb)
               FROM (SELECT status, count(*) AS n FROM assignments WHERE org_id = $1 GROUP BY status) s)`,
		orgID).Scan(&out.Voters, &out.Interactions, &byCode, &byStatus)
	if err != nil {
		return out, mapErr(err, "metrics")
	}
	codes, err := decodeJSON[map[domain.ResultCode]int](byCode)
	if err != nil {
		return out, err
	}
	statuses, err := decodeJSON[map[domain.AssignmentStatus]int](byStatus)
	if err != nil {
		return out, err
	}
	for k, v := range codes {
		out.ResultsByCode[k] = v
	}
	for k, v := range statuses {
		out.AssignmentsByStatus[k] = v
	}
	return out, nil
}
