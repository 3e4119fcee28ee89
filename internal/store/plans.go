package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/conductor/internal/models"
)

// PlanFilter restricts FindPlans and DeletePlans.
type PlanFilter struct {
	ID    *uuid.UUID
	State models.PlanState // empty matches any state
}

// LoadPlan loads a plan and its steps and history. Returns ErrNotFound if
// the plan row is absent. A plan with zero steps is not itself an error:
// nothing in this module's CLI surface populates steps at creation (see
// DESIGN.md's note on ErrDataConsistency), so an empty Steps slice is the
// ordinary case, not a corruption signal.
func (s *Store) LoadPlan(id uuid.UUID) (models.ExecutionPlan, error) {
	return s.loadPlanTx(s.db, id)
}

type queryer interface {
	QueryRow(query string, args ...interface{}) *sql.Row
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

func (s *Store) loadPlanTx(q queryer, id uuid.UUID) (models.ExecutionPlan, error) {
	row := q.QueryRow(
		`SELECT id, state, result, planner_world_id, executor_world_id, rescue_strategy, version
		 FROM plans WHERE id = ?`, id.String())

	var idStr, state, result, plannerStr, rescue string
	var executorStr sql.NullString
	var version int64
	if err := row.Scan(&idStr, &state, &result, &plannerStr, &executorStr, &rescue, &version); err != nil {
		if err == sql.ErrNoRows {
			return models.ExecutionPlan{}, models.NotFoundf("plan %s", id)
		}
		return models.ExecutionPlan{}, fmt.Errorf("load plan %s: %w", id, err)
	}

	planner, err := uuid.Parse(plannerStr)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("parse planner world id: %w", err)
	}
	plan := models.ExecutionPlan{
		ID:             id,
		State:          models.PlanState(state),
		Result:         models.PlanResult(result),
		PlannerWorldID: planner,
		RescueStrategy: models.RescueStrategy(rescue),
		Version:        version,
	}
	if executorStr.Valid && executorStr.String != "" {
		executor, err := uuid.Parse(executorStr.String)
		if err != nil {
			return models.ExecutionPlan{}, fmt.Errorf("parse executor world id: %w", err)
		}
		plan.ExecutorWorldID = &executor
	}

	steps, err := s.loadStepsTx(q, id)
	if err != nil {
		return models.ExecutionPlan{}, err
	}
	plan.Steps = steps

	history, err := s.loadHistoryTx(q, id)
	if err != nil {
		return models.ExecutionPlan{}, err
	}
	plan.History = history

	return plan, nil
}

// SavePlan inserts or updates a plan using optimistic concurrency: if
// plan.Version is non-zero, the write only succeeds when the stored version
// still matches, otherwise ErrConflict is returned (§4.1, §6). A zero
// Version means "create" and always succeeds (subject to the primary key).
func (s *Store) SavePlan(plan models.ExecutionPlan) (models.ExecutionPlan, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("save plan %s: %w", plan.ID, err)
	}
	defer tx.Rollback()

	newVersion := plan.Version + 1
	var executor interface{}
	if plan.ExecutorWorldID != nil {
		executor = plan.ExecutorWorldID.String()
	}

	if plan.Version == 0 {
		_, err = tx.Exec(
			`INSERT INTO plans (id, state, result, planner_world_id, executor_world_id, rescue_strategy, version)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			plan.ID.String(), string(plan.State), string(plan.Result), plan.PlannerWorldID.String(),
			executor, string(plan.RescueStrategy), newVersion,
		)
		if err != nil {
			return models.ExecutionPlan{}, fmt.Errorf("insert plan %s: %w", plan.ID, err)
		}
	} else {
		res, err := tx.Exec(
			`UPDATE plans SET state=?, result=?, executor_world_id=?, rescue_strategy=?, version=?
			 WHERE id=? AND version=?`,
			string(plan.State), string(plan.Result), executor, string(plan.RescueStrategy), newVersion,
			plan.ID.String(), plan.Version,
		)
		if err != nil {
			return models.ExecutionPlan{}, fmt.Errorf("update plan %s: %w", plan.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return models.ExecutionPlan{}, fmt.Errorf("update plan %s: %w", plan.ID, err)
		}
		if n == 0 {
			return models.ExecutionPlan{}, models.Conflictf("plan %s version %d", plan.ID, plan.Version)
		}
	}

	if err := s.replaceStepsTx(tx, plan.ID, plan.Steps); err != nil {
		return models.ExecutionPlan{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("save plan %s: %w", plan.ID, err)
	}

	plan.Version = newVersion
	return plan, nil
}

// FindPlans returns every plan matching filter, fully loaded with steps and
// history. Used by internal/autoexec to enumerate candidates for resumption.
func (s *Store) FindPlans(filter PlanFilter) ([]models.ExecutionPlan, error) {
	query := `SELECT id FROM plans WHERE 1=1`
	var args []interface{}
	if filter.ID != nil {
		query += ` AND id = ?`
		args = append(args, filter.ID.String())
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("find plans: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("find plans: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	plans := make([]models.ExecutionPlan, 0, len(ids))
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse plan id %q: %w", idStr, err)
		}
		plan, err := s.loadPlanTx(s.db, id)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// DeletePlans deletes plans (and their steps/history) matching filter.
func (s *Store) DeletePlans(filter PlanFilter) error {
	query := `SELECT id FROM plans WHERE 1=1`
	var args []interface{}
	if filter.ID != nil {
		query += ` AND id = ?`
		args = append(args, filter.ID.String())
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("delete plans: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("delete plans: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := s.db.Exec(`DELETE FROM plans WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete plan %s: %w", id, err)
		}
		if _, err := s.db.Exec(`DELETE FROM steps WHERE plan_id = ?`, id); err != nil {
			return fmt.Errorf("delete steps for plan %s: %w", id, err)
		}
		if _, err := s.db.Exec(`DELETE FROM execution_history WHERE plan_id = ?`, id); err != nil {
			return fmt.Errorf("delete history for plan %s: %w", id, err)
		}
	}
	return nil
}

// AppendHistory appends an event to a plan's execution history, stamping
// its timestamp so it is never earlier than the plan's latest recorded
// event (invariant 4: history monotonicity).
func (s *Store) AppendHistory(planID uuid.UUID, name string, worldID uuid.UUID, at time.Time) error {
	var lastNanos sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MAX(timestamp) FROM execution_history WHERE plan_id = ?`, planID.String(),
	).Scan(&lastNanos)
	if err != nil {
		return fmt.Errorf("append history for plan %s: %w", planID, err)
	}
	ts := at
	if lastNanos.Valid && lastNanos.Int64 >= ts.UnixNano() {
		ts = time.Unix(0, lastNanos.Int64+1)
	}

	_, err = s.db.Exec(
		`INSERT INTO execution_history (plan_id, name, world_id, timestamp) VALUES (?, ?, ?, ?)`,
		planID.String(), name, worldID.String(), ts.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("append history for plan %s: %w", planID, err)
	}
	return nil
}

func (s *Store) loadHistoryTx(q queryer, planID uuid.UUID) ([]models.HistoryEvent, error) {
	rows, err := q.Query(
		`SELECT name, world_id, timestamp FROM execution_history WHERE plan_id = ? ORDER BY seq`,
		planID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("load history for plan %s: %w", planID, err)
	}
	defer rows.Close()

	var events []models.HistoryEvent
	for rows.Next() {
		var name, worldStr string
		var tsNanos int64
		if err := rows.Scan(&name, &worldStr, &tsNanos); err != nil {
			return nil, fmt.Errorf("scan history for plan %s: %w", planID, err)
		}
		worldID, err := uuid.Parse(worldStr)
		if err != nil {
			return nil, fmt.Errorf("parse history world id: %w", err)
		}
		events = append(events, models.HistoryEvent{
			Name:      name,
			WorldID:   worldID,
			Timestamp: time.Unix(0, tsNanos),
		})
	}
	return events, rows.Err()
}
