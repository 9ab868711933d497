package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"voterfield/internal/domain"
)

const interactionSelect = `
    SELECT i.id, i.client_interaction_uuid, i.org_id, i.user_id, i.voter_id, i.assignment_id,
           i.occurred_at, i.channel, i.result_code, i.notes, i.created_at, s.responses
    FROM interactions i
    LEFT JOIN survey_responses s ON s.interaction_id = i.id`

func scanInteraction(row pgx.Row) (domain.Interaction, error) {
	var (
		in                  domain.Interaction
		assignmentID, notes *string
		responses           []byte
	)
	err := row.Scan(&in.ID, &in.ClientInteractionUUID, &in.OrgID, &in.UserID, &in.VoterID, &assignmentID,
		&in.OccurredAt, &in.Channel, &in.ResultCode, &notes, &in.CreatedAt, &responses)
	if err != nil {
		return in, err
	}
	in.AssignmentID, in.Notes = str(assignmentID), str(notes)
	in.SurveyResponses, err = decodeJSON[map[string]any](responses)
	return in, err
}

func (db *DB) InsertInteraction(ctx context.Context, in domain.Interaction, entry domain.AuditLogEntry, event domain.PlatformEvent) (domain.Interaction, bool, error) {
	responses, err := jsonArg(in.SurveyResponses)
	if err != nil {
		return in, false, err
	}
	var duplicate bool
	err = db.withTx(ctx, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `
            INSERT INTO interactions (id, org_id, client_interaction_uuid, user_id, voter_id, assignment_id,
                                      occurred_at, channel, result_code, notes)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
            ON CONFLICT (org_id, client_interaction_uuid) DO NOTHING
            RETURNING id`,
			in.ID, in.OrgID, in.ClientInteractionUUID, in.UserID, in.VoterID, nullStr(in.AssignmentID),
			in.OccurredAt, in.Channel, string(in.ResultCode), nullStr(in.Notes)).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			duplicate = true
			return nil
		}
		if err != nil {
			return err
		}
		if responses != nil {
			if _, err := tx.Exec(ctx, `
                INSERT INTO survey_responses (interaction_id, org_id, responses)
                VALUES ($1, $2, $3)`, in.ID, in.OrgID, responses); err != nil {
				return err
			}
		}
		if in.AssignmentID != "" {
			if err := advanceAssignment(ctx, tx, in.OrgID, in.AssignmentID); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx,
			`UPDATE organizations SET last_activity_at = now() WHERE id = $1`, in.OrgID); err != nil {
			return err
		}
		if err := insertAudit(ctx, tx, entry); err != nil {
			return err
		}
		return insertEvent(ctx, tx, event)
	})
	if err != nil {
		return in, false, mapErr(err, "interaction")
	}
	if duplicate {
		existing, err := scanInteraction(db.Pool.QueryRow(ctx, interactionSelect+`
            WHERE i.org_id = $1 AND i.client_interaction_uuid = $2`, in.OrgID, in.ClientInteractionUUID))
		return existing, false, mapErr(err, "interaction")
	}
	stored, err := scanInteraction(db.Pool.QueryRow(ctx, interactionSelect+`
        WHERE i.org_id = $1 AND i.id = $2`, in.OrgID, in.ID))
	return stored, true, mapErr(err, "interaction")
}

func (db *DB) ListInteractions(ctx context.Context, orgID string, f domain.InteractionFilter) ([]domain.Interaction, error) {
	rows, err := db.Pool.Query(ctx, interactionSelect+`
        WHERE i.org_id = $1
          AND ($2 = '' OR i.voter_id::text = $2)
          AND ($3 = '' OR i.user_id::text = $3)
        ORDER BY i.occurred_at DESC, i.id DESC
        LIMIT $4 OFFSET $5`, orgID, f.VoterID, f.UserID, f.Limit, f.Offset)
	if err != nil {
		return nil, mapErr(err, "interactions")
	}
	defer rows.Close()
	out := []domain.Interaction{}
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, mapErr(err, "interactions")
		}
		out = append(out, in)
	}
	return out, mapErr(rows.Err(), "interactions")
}
