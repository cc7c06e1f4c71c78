package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dispute_triage/backend/internal/models"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	Pool *pgxpool.Pool
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const caseSelect = `SELECT c.id, c.customer_id, c.description, c.amount, c.merchant_category, c.status, c.priority,
	c.assigned_ops, COALESCE(u.username, ''), c.routing_reason, c.created_at
	FROM dispute_cases c
	LEFT JOIN users u ON u.id = c.assigned_ops`

func scanCase(row pgx.Row) (models.DisputeCase, error) {
	var c models.DisputeCase
	err := row.Scan(&c.ID, &c.CustomerID, &c.Description, &c.Amount, &c.MerchantCategory, &c.Status, &c.Priority,
		&c.AssignedOps, &c.AssignedOpsName, &c.RoutingReason, &c.CreatedAt)
	return c, err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// CreateCase writes a case and its analysis in one transaction. Priority,
// assignment and routing reason are taken from c as given.
func (s *Store) CreateCase(ctx context.Context, c models.DisputeCase, a models.RiskAnalysis) (models.DisputeCase, models.RiskAnalysis, error) {
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO dispute_cases (customer_id, description, amount, merchant_category, status, priority, assigned_ops, routing_reason)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING id, created_at
		`, c.CustomerID, c.Description, c.Amount, c.MerchantCategory, c.Status, c.Priority, c.AssignedOps, c.RoutingReason).Scan(&c.ID, &c.CreatedAt); err != nil {
			return fmt.Errorf("insert case: %w", err)
		}
		a.CaseID = c.ID
		if err := tx.QueryRow(ctx, `
			INSERT INTO risk_analyses (case_id, risk_score, classification, summary, fraud_signals, reasoning_steps, recommended_action, financial_exposure, source)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			RETURNING id, created_at
		`, a.CaseID, a.RiskScore, a.Classification, a.Summary, nonNil(a.FraudSignals), nonNil(a.ReasoningSteps), a.RecommendedAction, a.FinancialExposure, a.Source).Scan(&a.ID, &a.CreatedAt); err != nil {
			return fmt.Errorf("insert analysis: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.DisputeCase{}, models.RiskAnalysis{}, err
	}
	return c, a, nil
}

func (s *Store) GetCase(ctx context.Context, id int64) (models.DisputeCase, error) {
	c, err := scanCase(s.Pool.QueryRow(ctx, caseSelect+` WHERE c.id = $1`, id))
	if err != nil {
		return models.DisputeCase{}, notFound(err)
	}
	return c, nil
}

func (s *Store) GetAnalysis(ctx context.Context, caseID int64) (*models.RiskAnalysis, error) {
	return getAnalysis(ctx, s.Pool, caseID)
}

func getAnalysis(ctx context.Context, q querier, caseID int64) (*models.RiskAnalysis, error) {
	var a models.RiskAnalysis
	var exposure *string
	err := q.QueryRow(ctx, `
		SELECT id, case_id, risk_score, classification, summary, fraud_signals, reasoning_steps, recommended_action, financial_exposure, source, created_at
		FROM risk_analyses WHERE case_id = $1
	`, caseID).Scan(&a.ID, &a.CaseID, &a.RiskScore, &a.Classification, &a.Summary, &a.FraudSignals, &a.ReasoningSteps, &a.RecommendedAction, &exposure, &a.Source, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if exposure != nil {
		a.FinancialExposure = *exposure
	}
	a.FraudSignals = nonNil(a.FraudSignals)
	a.ReasoningSteps = nonNil(a.ReasoningSteps)
	return &a, nil
}

// GetCaseDetails loads a case with its analysis and messages. Internal notes
// are left out unless includeInternal is set.
func (s *Store) GetCaseDetails(ctx context.Context, id int64, includeInternal bool) (models.CaseDetails, error) {
	c, err := s.GetCase(ctx, id)
	if err != nil {
		return models.CaseDetails{}, err
	}
	a, err := s.GetAnalysis(ctx, id)
	if err != nil {
		return models.CaseDetails{}, err
	}
	msgs, err := s.ListMessages(ctx, id, includeInternal)
	if err != nil {
		return models.CaseDetails{}, err
	}
	return models.CaseDetails{Case: c, Analysis: a, Messages: msgs}, nil
}

func (s *Store) ListCustomerCases(ctx context.Context, customerID int64) ([]models.DisputeCase, error) {
	rows, err := s.Pool.Query(ctx, caseSelect+` WHERE c.customer_id = $1 ORDER BY c.created_at DESC, c.id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.DisputeCase{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListOpsQueue returns cases that are high risk, critical or assigned to
// userID, most urgent first.
func (s *Store) ListOpsQueue(ctx context.Context, userID int64) ([]models.QueueItem, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT c.id, c.customer_id, c.description, c.amount, c.merchant_category, c.status, c.priority,
			c.assigned_ops, COALESCE(u.username, ''), c.routing_reason, c.created_at,
			COALESCE(a.risk_score, ''), COALESCE(a.classification, '')
		FROM dispute_cases c
		LEFT JOIN users u ON u.id = c.assigned_ops
		LEFT JOIN risk_analyses a ON a.case_id = c.id
		WHERE a.risk_score = 'High' OR c.assigned_ops = $1 OR c.priority = 'CRITICAL'
		ORDER BY CASE c.priority
			WHEN 'CRITICAL' THEN 4
			WHEN 'HIGH' THEN 3
			WHEN 'MEDIUM' THEN 2
			WHEN 'LOW' THEN 1
			ELSE 0
		END DESC, c.created_at DESC, c.id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.QueueItem{}
	for rows.Next() {
		var item models.QueueItem
		c := &item.DisputeCase
		if err := rows.Scan(&c.ID, &c.CustomerID, &c.Description, &c.Amount, &c.MerchantCategory, &c.Status, &c.Priority,
			&c.AssignedOps, &c.AssignedOpsName, &c.RoutingReason, &c.CreatedAt, &item.RiskScore, &item.Classification); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// UpdateRouting locks a case row, hands it with its analysis to fn and stores
// the priority, assignee and routing reason fn returns.
func (s *Store) UpdateRouting(ctx context.Context, caseID int64, fn func(c models.DisputeCase, a *models.RiskAnalysis) (models.DisputeCase, error)) (models.DisputeCase, error) {
	var out models.DisputeCase
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		c, err := scanCase(tx.QueryRow(ctx, caseSelect+` WHERE c.id = $1 FOR UPDATE OF c`, caseID))
		if err != nil {
			return notFound(err)
		}
		a, err := getAnalysis(ctx, tx, caseID)
		if err != nil {
			return err
		}
		updated, err := fn(c, a)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE dispute_cases SET priority = $2, assigned_ops = $3, routing_reason = $4 WHERE id = $1
		`, caseID, updated.Priority, updated.AssignedOps, updated.RoutingReason); err != nil {
			return fmt.Errorf("update routing: %w", err)
		}
		out = updated
		return nil
	})
	return out, err
}

func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := s.Pool.QueryRow(ctx, `SELECT id, username, is_staff, is_active FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.IsStaff, &u.IsActive)
	if err != nil {
		return models.User{}, notFound(err)
	}
	return u, nil
}

// IsOpsUser reports whether the user is staff or belongs to the ops group.
func (s *Store) IsOpsUser(ctx context.Context, userID int64) (bool, error) {
	var ok bool
	err := s.Pool.QueryRow(ctx, `
		SELECT u.is_staff OR EXISTS (
			SELECT 1 FROM group_members gm JOIN groups g ON g.id = gm.group_id
			WHERE gm.user_id = u.id AND g.name = $2
		)
		FROM users u WHERE u.id = $1
	`, userID, models.OpsGroup).Scan(&ok)
	if err != nil {
		return false, notFound(err)
	}
	return ok, nil
}

func (s *Store) ListActiveGroupMembers(ctx context.Context, group string) ([]models.User, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT u.id, u.username, u.is_staff, u.is_active
		FROM users u
		JOIN group_members gm ON gm.user_id = u.id
		JOIN groups g ON g.id = gm.group_id
		WHERE g.name = $1 AND u.is_active
		ORDER BY u.id
	`, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.IsStaff, &u.IsActive); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// EnsureGroup creates the group when missing and reports whether it did.
func (s *Store) EnsureGroup(ctx context.Context, name string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `INSERT INTO groups (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// EnsureUser creates the user when missing. Existing users are returned as
// stored; isStaff applies only on creation.
func (s *Store) EnsureUser(ctx context.Context, username string, isStaff bool) (models.User, bool, error) {
	var u models.User
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO users (username, is_staff) VALUES ($1, $2)
		ON CONFLICT (username) DO NOTHING
		RETURNING id, username, is_staff, is_active
	`, username, isStaff).Scan(&u.ID, &u.Username, &u.IsStaff, &u.IsActive)
	if err == nil {
		return u, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, false, err
	}
	err = s.Pool.QueryRow(ctx, `SELECT id, username, is_staff, is_active FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.IsStaff, &u.IsActive)
	if err != nil {
		return models.User{}, false, err
	}
	return u, false, nil
}

func (s *Store) AddUserToGroup(ctx context.Context, userID int64, group string) error {
	var groupID int64
	if err := s.Pool.QueryRow(ctx, `SELECT id FROM groups WHERE name = $1`, group).Scan(&groupID); err != nil {
		return fmt.Errorf("group %q: %w", group, notFound(err))
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, groupID, userID)
	return err
}

func (s *Store) AddMessage(ctx context.Context, m models.ChatMessage) (models.ChatMessage, error) {
	err := s.Pool.QueryRow(ctx, `
		WITH ins AS (
			INSERT INTO dispute_messages (case_id, sender_id, message, is_internal_note)
			VALUES ($1, $2, $3, $4)
			RETURNING id, sender_id, created_at
		)
		SELECT ins.id, ins.created_at, u.username FROM ins JOIN users u ON u.id = ins.sender_id
	`, m.CaseID, m.SenderID, m.Message, m.IsInternalNote).Scan(&m.ID, &m.CreatedAt, &m.SenderName)
	if err != nil {
		return models.ChatMessage{}, err
	}
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, caseID int64, includeInternal bool) ([]models.ChatMessage, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT m.id, m.case_id, m.sender_id, u.username, m.message, m.is_internal_note, m.created_at
		FROM dispute_messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.case_id = $1 AND ($2 OR NOT m.is_internal_note)
		ORDER BY m.created_at ASC, m.id ASC
	`, caseID, includeInternal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.CaseID, &m.SenderID, &m.SenderName, &m.Message, &m.IsInternalNote, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Insights(ctx context.Context) (models.Insights, error) {
	var out models.Insights
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM dispute_cases`).Scan(&out.TotalCases); err != nil {
		return models.Insights{}, err
	}
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM risk_analyses WHERE risk_score = 'High'`).Scan(&out.HighRiskCount); err != nil {
		return models.Insights{}, err
	}
	var err error
	out.Categories, err = s.topCounts(ctx, `
		SELECT merchant_category, COUNT(*) AS total FROM dispute_cases
		GROUP BY merchant_category ORDER BY total DESC, merchant_category ASC LIMIT 5`)
	if err != nil {
		return models.Insights{}, err
	}
	out.Classifications, err = s.topCounts(ctx, `
		SELECT classification, COUNT(*) AS total FROM risk_analyses
		GROUP BY classification ORDER BY total DESC, classification ASC LIMIT 5`)
	if err != nil {
		return models.Insights{}, err
	}
	return out, nil
}

func (s *Store) topCounts(ctx context.Context, query string) ([]models.CountBucket, error) {
	rows, err := s.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.CountBucket{}
	for rows.Next() {
		var b models.CountBucket
		if err := rows.Scan(&b.Key, &b.Total); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
