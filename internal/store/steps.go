package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/harrison/conductor/internal/models"
)

// LoadStep loads a single step of a plan. Returns ErrNotFound if either the
// plan or the step is absent.
func (s *Store) LoadStep(planID uuid.UUID, stepID string) (models.Step, error) {
	row := s.db.QueryRow(
		`SELECT step_id, state FROM steps WHERE plan_id = ? AND step_id = ?`,
		planID.String(), stepID,
	)
	var id, state string
	if err := row.Scan(&id, &state); err != nil {
		if err == sql.ErrNoRows {
			return models.Step{}, models.NotFoundf("step %s of plan %s", stepID, planID)
		}
		return models.Step{}, fmt.Errorf("load step %s of plan %s: %w", stepID, planID, err)
	}
	return models.Step{ID: id, State: models.StepState(state)}, nil
}

// SaveStep updates a single step's state in place. The plan must already
// exist (its Steps slice establishes step ordering via SavePlan).
func (s *Store) SaveStep(planID uuid.UUID, step models.Step) error {
	res, err := s.db.Exec(
		`UPDATE steps SET state = ? WHERE plan_id = ? AND step_id = ?`,
		string(step.State), planID.String(), step.ID,
	)
	if err != nil {
		return fmt.Errorf("save step %s of plan %s: %w", step.ID, planID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save step %s of plan %s: %w", step.ID, planID, err)
	}
	if n == 0 {
		return models.NotFoundf("step %s of plan %s", step.ID, planID)
	}
	return nil
}

func (s *Store) loadStepsTx(q queryer, planID uuid.UUID) ([]models.Step, error) {
	rows, err := q.Query(
		`SELECT step_id, state FROM steps WHERE plan_id = ? ORDER BY ord`, planID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("load steps of plan %s: %w", planID, err)
	}
	defer rows.Close()

	var steps []models.Step
	for rows.Next() {
		var id, state string
		if err := rows.Scan(&id, &state); err != nil {
			return nil, fmt.Errorf("scan step of plan %s: %w", planID, err)
		}
		steps = append(steps, models.Step{ID: id, State: models.StepState(state)})
	}
	return steps, rows.Err()
}

// replaceStepsTx rewrites a plan's full step list within tx, preserving the
// given order. Used by SavePlan so a plan's Steps field is always the
// source of truth.
func (s *Store) replaceStepsTx(tx *sql.Tx, planID uuid.UUID, steps []models.Step) error {
	if _, err := tx.Exec(`DELETE FROM steps WHERE plan_id = ?`, planID.String()); err != nil {
		return fmt.Errorf("replace steps of plan %s: %w", planID, err)
	}
	for i, step := range steps {
		if _, err := tx.Exec(
			`INSERT INTO steps (plan_id, step_id, state, ord) VALUES (?, ?, ?, ?)`,
			planID.String(), step.ID, string(step.State), i,
		); err != nil {
			return fmt.Errorf("replace steps of plan %s: %w", planID, err)
		}
	}
	return nil
}
