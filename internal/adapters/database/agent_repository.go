package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dirtsid3r/cellflip/internal/domain/agents"
	pkgdb "github.com/dirtsid3r/cellflip/pkg/database"
)

// Name and phone live on the users row.
const agentSelect = `
	SELECT a.user_id, u.full_name, u.phone, a.city, a.latitude, a.longitude, a.rating,
		a.total_pickups, a.active_pickups, a.availability, a.updated_at
	FROM agents a
	JOIN users u ON u.id = a.user_id`

// PostgresAgentRepository implements agents.Repository
type PostgresAgentRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAgentRepository(pool *pgxpool.Pool) *PostgresAgentRepository {
	return &PostgresAgentRepository{pool: pool}
}

func (r *PostgresAgentRepository) CreateAgent(ctx context.Context, tx pgx.Tx, agent *agents.Agent) error {
	query := `
		INSERT INTO agents (user_id, city, latitude, longitude, rating, total_pickups,
			active_pickups, availability, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := tx.Exec(ctx, query,
		agent.UserID,
		agent.City,
		agent.Location.Latitude,
		agent.Location.Longitude,
		agent.Rating,
		agent.TotalPickups,
		agent.ActivePickups,
		agent.Availability,
		agent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}
	return nil
}

func (r *PostgresAgentRepository) GetAgent(ctx context.Context, userID uuid.UUID) (*agents.Agent, error) {
	return r.getAgent(ctx, r.pool, userID, false)
}

func (r *PostgresAgentRepository) GetAgentForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*agents.Agent, error) {
	return r.getAgent(ctx, tx, userID, true)
}

func (r *PostgresAgentRepository) getAgent(ctx context.Context, db pkgdb.DBTX, userID uuid.UUID, forUpdate bool) (*agents.Agent, error) {
	query := agentSelect + ` WHERE a.user_id = $1`
	if forUpdate {
		query += " FOR UPDATE OF a"
	}
	agent, err := scanAgent(db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, agents.ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return agent, nil
}

func (r *PostgresAgentRepository) ListAgents(ctx context.Context) ([]*agents.Agent, error) {
	rows, err := r.pool.Query(ctx, agentSelect+` ORDER BY u.full_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	result := []*agents.Agent{}
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		result = append(result, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}
	return result, nil
}

func (r *PostgresAgentRepository) UpdateAvailability(ctx context.Context, userID uuid.UUID, availability agents.Availability) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE agents SET availability = $1, updated_at = NOW() WHERE user_id = $2`,
		availability, userID)
	if err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}
	if result.RowsAffected() == 0 {
		return agents.ErrAgentNotFound
	}
	return nil
}

func (r *PostgresAgentRepository) AdjustPickups(ctx context.Context, tx pgx.Tx, userID uuid.UUID, activeDelta, totalDelta int) error {
	query := `
		UPDATE agents
		SET active_pickups = GREATEST(active_pickups + $1, 0),
			total_pickups = total_pickups + $2,
			updated_at = NOW()
		WHERE user_id = $3
	`
	result, err := tx.Exec(ctx, query, activeDelta, totalDelta, userID)
	if err != nil {
		return fmt.Errorf("failed to adjust pickups: %w", err)
	}
	if result.RowsAffected() == 0 {
		return agents.ErrAgentNotFound
	}
	return nil
}

func scanAgent(row pgx.Row) (*agents.Agent, error) {
	var a agents.Agent
	if err := row.Scan(
		&a.UserID,
		&a.FullName,
		&a.Phone,
		&a.City,
		&a.Location.Latitude,
		&a.Location.Longitude,
		&a.Rating,
		&a.TotalPickups,
		&a.ActivePickups,
		&a.Availability,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
