package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"voterfield/internal/domain"
)

// voterSelect joins each voter to its most recent interaction. The
// projection is computed per query, so it can never go stale.
const voterSelect = `
    SELECT v.id, v.org_id, v.external_id, v.first_name, v.middle_name, v.last_name, v.suffix,
           v.age, v.gender, v.race, v.party, v.phone, v.address, v.unit, v.city, v.state, v.zip,
           v.lat, v.lng, v.created_at, v.updated_at, li.result_code, li.occurred_at
    FROM voters v
    LEFT JOIN LATERAL (
        SELECT i.result_code, i.occurred_at
        FROM interactions i
        WHERE i.org_id = v.org_id AND i.voter_id = v.id
        ORDER BY i.occurred_at DESC, i.created_at DESC
        LIMIT 1
    ) li ON true`

func scanVoter(row pgx.Row) (domain.Voter, error) {
	var (
		v                                          domain.Voter
		middle, suffix, gender, race, party, phone *string
		unit, city, state, zip, lastStatus         *string
		lastAt                                     *time.Time
	)
	err := row.Scan(&v.ID, &v.OrgID, &v.ExternalID, &v.FirstName, &middle, &v.LastName, &suffix,
		&v.Age, &gender, &race, &party, &phone, &v.Address, &unit, &city, &state, &zip,
		&v.Geom.Lat, &v.Geom.Lng, &v.CreatedAt, &v.UpdatedAt, &lastStatus, &lastAt)
	if err != nil {
		return v, err
	}
	v.MiddleName, v.Suffix, v.Gender, v.Race = str(middle), str(suffix), str(gender), str(race)
	v.Party, v.Phone, v.Unit, v.City, v.State, v.Zip = str(party), str(phone), str(unit), str(city), str(state), str(zip)
	v.LastInteractionStatus = domain.ResultCode(str(lastStatus))
	v.LastInteractionTime = lastAt
	return v, nil
}

// likePattern escapes LIKE metacharacters so search text matches literally.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func (db *DB) ListVoters(ctx context.Context, orgID string, f domain.VoterFilter) ([]domain.Voter, error) {
	args := []any{orgID}
	where := []string{"v.org_id = $1"}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Search != "" {
		p := arg(likePattern(f.Search))
		where = append(where, fmt.Sprintf("(v.first_name ILIKE %[1]s OR v.last_name ILIKE %[1]s OR v.address ILIKE %[1]s)", p))
	}
	if f.Party != "" {
		where = append(where, "lower(v.party) = lower("+arg(f.Party)+")")
	}
	if f.City != "" {
		where = append(where, "lower(v.city) = lower("+arg(f.City)+")")
	}
	if f.Near != nil {
		lat, lng, radius := arg(f.Near.Lat), arg(f.Near.Lng), arg(f.RadiusKM)
		// Haversine great-circle distance in km.
		where = append(where, fmt.Sprintf(`2 * 6371 * asin(sqrt(
            power(sin(radians(v.lat - %[1]s::float8) / 2), 2) +
            cos(radians(%[1]s::float8)) * cos(radians(v.lat)) *
            power(sin(radians(v.lng - %[2]s::float8) / 2), 2))) <= %[3]s::float8`, lat, lng, radius))
	}
	q := voterSelect + " WHERE " + strings.Join(where, " AND ") +
		" ORDER BY v.last_name, v.first_name, v.id LIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset)

	rows, err := db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err, "voters")
	}
	defer rows.Close()
	out := []domain.Voter{}
	for rows.Next() {
		v, err := scanVoter(rows)
		if err != nil {
			return nil, mapErr(err, "voters")
		}
		out = append(out, v)
	}
	return out, mapErr(rows.Err(), "voters")
}

func (db *DB) GetVoter(ctx context.Context, orgID, voterID string) (domain.Voter, error) {
	v, err := scanVoter(db.Pool.QueryRow(ctx, voterSelect+` WHERE v.org_id = $1 AND v.id = $2`, orgID, voterID))
	return v, mapErr(err, "voter")
}

func (db *DB) CountVoters(ctx context.Context, orgID string) (int, error) {
	var n int
	err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM voters WHERE org_id = $1`, orgID).Scan(&n)
	return n, mapErr(err, "voters")
}

func voterArgs(v domain.Voter) []any {
	return []any{
		v.ID, v.OrgID, v.ExternalID, v.FirstName, nullStr(v.MiddleName), v.LastName, nullStr(v.Suffix),
		v.Age, nullStr(v.Gender), nullStr(v.Race), nullStr(v.Party), nullStr(v.Phone), v.Address,
		nullStr(v.Unit), nullStr(v.City), nullStr(v.State), nullStr(v.Zip), v.Geom.Lat, v.Geom.Lng,
	}
}

const voterInsert = `
    INSERT INTO voters (id, org_id, external_id, first_name, middle_name, last_name, suffix,
                        age, gender, race, party, phone, address, unit, city, state, zip, lat, lng)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

func (db *DB) CreateVoter(ctx context.Context, v domain.Voter) (domain.Voter, error) {
	if _, err := db.Pool.Exec(ctx, voterInsert, voterArgs(v)...); err != nil {
		return v, mapErr(err, "voter")
	}
	return db.GetVoter(ctx, v.OrgID, v.ID)
}

// UpdateVoter merges the present fields inside a row lock so concurrent
// partial updates to different fields do not overwrite each other.
func (db *DB) UpdateVoter(ctx context.Context, orgID, voterID string, f domain.VoterFields) (domain.Voter, error) {
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		current, err := scanVoter(tx.QueryRow(ctx, voterSelect+` WHERE v.org_id = $1 AND v.id = $2 FOR UPDATE OF v`, orgID, voterID))
		if err != nil {
			return err
		}
		f.Apply(&current)
		args := voterArgs(current)
		_, err = tx.Exec(ctx, `
            UPDATE voters SET first_name = $4, middle_name = $5, last_name = $6, suffix = $7,
                age = $8, gender = $9, race = $10, party = $11, phone = $12, address = $13,
                unit = $14, city = $15, state = $16, zip = $17, lat = $18, lng = $19, updated_at = now()
            WHERE id = $1 AND org_id = $2 AND external_id = $3`, args...)
		return err
	})
	if err != nil {
		return domain.Voter{}, mapErr(err, "voter")
	}
	return db.GetVoter(ctx, orgID, voterID)
}

func (db *DB) UpsertVoters(ctx context.Context, orgID string, voters []domain.Voter) (int, error) {
	if len(voters) == 0 {
		return 0, nil
	}
	var written int
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, v := range voters {
			v.OrgID = orgID
			batch.Queue(voterInsert+`
                ON CONFLICT (org_id, external_id) DO UPDATE SET
                    first_name = EXCLUDED.first_name, middle_name = EXCLUDED.middle_name,
                    last_name = EXCLUDED.last_name, suffix = EXCLUDED.suffix, age = EXCLUDED.age,
                    gender = EXCLUDED.gender, race = EXCLUDED.race, party = EXCLUDED.party,
                    phone = EXCLUDED.phone, address = EXCLUDED.address, unit = EXCLUDED.unit,
                    city = EXCLUDED.city, state = EXCLUDED.state, zip = EXCLUDED.zip,
                    lat = EXCLUDED.lat, lng = EXCLUDED.lng, updated_at = now()`, voterArgs(v)...)
		}
		br := tx.SendBatch(ctx, batch)
		for range voters {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return err
			}
			written += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, mapErr(err, "voters")
	}
	return written, nil
}
