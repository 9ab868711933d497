package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"voterfield/internal/domain"
)

const orgColumns = `id, name, status, plan_id, limits, last_activity_at, created_at`

func scanOrg(row pgx.Row) (domain.Organization, error) {
	var (
		o      domain.Organization
		limits []byte
	)
	if err := row.Scan(&o.ID, &o.Name, &o.Status, &o.PlanID, &limits, &o.LastActivityAt, &o.CreatedAt); err != nil {
		return o, err
	}
	m, err := decodeJSON[map[string]int](limits)
	if err != nil {
		return o, err
	}
	if m == nil {
		m = map[string]int{}
	}
	o.Limits = m
	return o, nil
}

func (db *DB) GetOrg(ctx context.Context, orgID string) (domain.Organization, error) {
	o, err := scanOrg(db.Pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, orgID))
	return o, mapErr(err, "organization")
}

func (db *DB) UpdateOrg(ctx context.Context, orgID string, patch domain.OrgPatch) (domain.Organization, error) {
	var (
		status *string
		limits []byte
		err    error
	)
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}
	if patch.Limits != nil {
		if limits, err = jsonArg(*patch.Limits); err != nil {
			return domain.Organization{}, err
		}
	}
	o, err := scanOrg(db.Pool.QueryRow(ctx, `
        UPDATE organizations SET
            status  = COALESCE($2, status),
            plan_id = COALESCE($3, plan_id),
            limits  = COALESCE($4::jsonb, limits)
        WHERE id = $1
        RETURNING `+orgColumns, orgID, status, patch.PlanID, limits))
	return o, mapErr(err, "organization")
}

func (db *DB) ProvisionOrg(ctx context.Context, org domain.Organization, admin domain.User) (domain.Organization, domain.User, error) {
	limits, err := jsonArg(org.Limits)
	if err != nil {
		return org, admin, err
	}
	if limits == nil {
		limits = []byte("{}")
	}
	err = db.withTx(ctx, func(tx pgx.Tx) error {
		created, err := scanOrg(tx.QueryRow(ctx, `
            INSERT INTO organizations (id, name, status, plan_id, limits)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING `+orgColumns, org.ID, org.Name, org.Status, org.PlanID, limits))
		if err != nil {
			return err
		}
		org = created
		admin.OrgID = org.ID
		admin, err = insertUser(ctx, tx, admin)
		return err
	})
	if err != nil {
		return org, admin, mapErr(err, "organization")
	}
	return org, admin, nil
}
