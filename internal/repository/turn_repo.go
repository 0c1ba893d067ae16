package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"assistant-backend/internal/models"
)

// TurnRepo is the append-only store of conversation turns. Rows are never
// updated; the only delete is the per-account Clear.
type TurnRepo struct {
	pool *pgxpool.Pool
}

func NewTurnRepo(pool *pgxpool.Pool) *TurnRepo {
	return &TurnRepo{pool: pool}
}

// Append inserts one turn. Ordering is carried by the BIGSERIAL seq, so two
// appends in the same clock tick still have a strict order.
func (r *TurnRepo) Append(ctx context.Context, userID uuid.UUID, role, content string) (*models.ConversationTurn, error) {
	turn := &models.ConversationTurn{
		ID:      uuid.New(),
		UserID:  userID,
		Role:    role,
		Content: content,
	}

	query := `
		INSERT INTO conversation_turns (id, user_id, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING seq, created_at`

	err := r.pool.QueryRow(ctx, query, turn.ID, userID, role, content).Scan(&turn.Seq, &turn.CreatedAt)
	if err != nil {
		return nil, err
	}
	return turn, nil
}

// ListByUser returns all of one account's turns, oldest first.
func (r *TurnRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ConversationTurn, error) {
	query := `
		SELECT seq, id, user_id, role, content, created_at
		FROM conversation_turns
		WHERE user_id = $1
		ORDER BY created_at ASC, seq ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := make([]models.ConversationTurn, 0)
	for rows.Next() {
		var t models.ConversationTurn
		if err := rows.Scan(&t.Seq, &t.ID, &t.UserID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}

	return turns, rows.Err()
}

// Clear deletes every turn belonging to the account. Clearing an empty
// history is a no-op, not an error.
func (r *TurnRepo) Clear(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM conversation_turns WHERE user_id = $1", userID)
	return err
}
