/*
Package postgres provides a PostgreSQL-backed implementation of leave.Store.

PURPOSE:
  Production storage for multi-instance deployments. The schema mirrors
  store/sqlite with native DATE, NUMERIC and JSONB columns.

CONCURRENCY:
  WithTx runs at SERIALIZABLE isolation. Two instances racing to insert
  overlapping leave requests for the same employee cannot both commit: the
  loser gets SQLSTATE 40001, surfaced as generic.ErrConcurrentModification,
  and leave.Service retries it.

DECIMALS:
  NUMERIC values travel as text (cast on the way in, ::text on the way out)
  so shopspring/decimal round-trips them exactly.

MIGRATION:
  migrations/*.sql are embedded and applied in order on Open, tracked in
  schema_migrations.

SEE ALSO:
  - store/sqlite: Single-file implementation with the same semantics
  - store/storetest: Conformance suite both implementations pass
*/
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

//go:embed migrations/*.sql
var migrations embed.FS

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repo struct {
	q querier
}

// Store implements leave.Store on a pgx connection pool.
type Store struct {
	*repo
	pool *pgxpool.Pool
}

var _ leave.Store = (*Store)(nil)

// Open connects to databaseURL and applies pending migrations.
func Open(ctx context.Context, databaseURL string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{repo: &repo{q: pool}, pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the embedded migrations that haven't run yet, each in its
// own transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())"); err != nil {
		return err
	}

	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		version := strings.TrimSuffix(file, ".sql")

		var count int
		if err := pool.QueryRow(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = $1", version).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		body, err := migrations.ReadFile("migrations/" + file)
		if err != nil {
			return err
		}

		tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %s failed: %w", version, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Reset truncates every table (tests and demo seeding).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE transactions, leave_requests, leave_policies, employees, holidays")
	return err
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx runs fn in a SERIALIZABLE transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Repository) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return mapError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&repo{q: tx}); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, name, email, join_date, classification, manager_id,
	probation_status, probation_start, probation_end, probation_days, created_at`

func (r *repo) SaveEmployee(ctx context.Context, e leave.Employee) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			join_date = EXCLUDED.join_date,
			classification = EXCLUDED.classification,
			manager_id = EXCLUDED.manager_id,
			probation_status = EXCLUDED.probation_status,
			probation_start = EXCLUDED.probation_start,
			probation_end = EXCLUDED.probation_end,
			probation_days = EXCLUDED.probation_days`,
		string(e.ID), e.Name, e.Email, e.JoinDate.Time, string(e.Classification), string(e.ManagerID),
		string(e.Probation.Status), datePtr(e.Probation.Start), datePtr(e.Probation.End),
		e.Probation.DurationDays, createdAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to save employee: %w", err))
	}
	return nil
}

func (r *repo) GetEmployee(ctx context.Context, id generic.EntityID) (leave.Employee, error) {
	e, err := scanEmployee(r.q.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = $1", string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return leave.Employee{}, leave.EmployeeNotFound(id)
	}
	return e, mapError(err)
}

func (r *repo) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	rows, err := r.q.Query(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY id")
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query employees: %w", err))
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (leave.Employee, error) {
		return scanEmployee(row)
	})
	return out, mapError(err)
}

func scanEmployee(row pgx.Row) (leave.Employee, error) {
	var (
		e                  leave.Employee
		id, class, manager string
		status             string
		join               time.Time
		probStart, probEnd *time.Time
	)
	err := row.Scan(&id, &e.Name, &e.Email, &join, &class, &manager,
		&status, &probStart, &probEnd, &e.Probation.DurationDays, &e.CreatedAt)
	if err != nil {
		return e, err
	}
	e.ID = generic.EntityID(id)
	e.JoinDate = generic.Date(join)
	e.Classification = leave.Classification(class)
	e.ManagerID = generic.EntityID(manager)
	e.Probation.Status = leave.ProbationStatus(status)
	e.Probation.Start = pointDate(probStart)
	e.Probation.End = pointDate(probEnd)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

// =============================================================================
// POLICIES
// =============================================================================

const policyColumns = `id, name, leave_type, classification, annual_days::text, is_paid, is_active`

func (r *repo) SavePolicy(ctx context.Context, p leave.LeavePolicy) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO leave_policies (id, name, leave_type, classification, annual_days, is_paid, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			leave_type = EXCLUDED.leave_type,
			classification = EXCLUDED.classification,
			annual_days = EXCLUDED.annual_days,
			is_paid = EXCLUDED.is_paid,
			is_active = EXCLUDED.is_active,
			updated_at = now()`,
		p.ID, p.Name, string(p.LeaveType), string(p.Classification), p.AnnualDays.String(), p.IsPaid, p.IsActive,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to save policy: %w", err))
	}
	return nil
}

func (r *repo) GetPolicy(ctx context.Context, id string) (leave.LeavePolicy, error) {
	p, err := scanPolicy(r.q.QueryRow(ctx, "SELECT "+policyColumns+" FROM leave_policies WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return leave.LeavePolicy{}, leave.PolicyNotFound(id)
	}
	return p, mapError(err)
}

func (r *repo) ListPolicies(ctx context.Context) ([]leave.LeavePolicy, error) {
	rows, err := r.q.Query(ctx, "SELECT "+policyColumns+" FROM leave_policies ORDER BY id")
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query policies: %w", err))
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (leave.LeavePolicy, error) {
		return scanPolicy(row)
	})
	return out, mapError(err)
}

func scanPolicy(row pgx.Row) (leave.LeavePolicy, error) {
	var (
		p                        leave.LeavePolicy
		leaveType, class, annual string
	)
	if err := row.Scan(&p.ID, &p.Name, &leaveType, &class, &annual, &p.IsPaid, &p.IsActive); err != nil {
		return p, err
	}
	p.LeaveType = leave.LeaveType(leaveType)
	p.Classification = leave.Classification(class)
	p.AnnualDays = parseDecimal(annual)
	return p, nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

const requestColumns = `id, employee_id, leave_type, start_date, end_date, total_days::text, status,
	is_half_day, short_leave_hours::text, reason, submitted_at, decided_by, decided_at,
	rejection_reason, is_paid, paid_days::text, unpaid_days::text`

func (r *repo) SaveRequest(ctx context.Context, req leave.LeaveRequest) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO leave_requests (id, employee_id, leave_type, start_date, end_date, total_days, status,
			is_half_day, short_leave_hours, reason, submitted_at, decided_by, decided_at,
			rejection_reason, is_paid, paid_days, unpaid_days)
		VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9::text::numeric, $10, $11, $12, $13,
			$14, $15, $16::text::numeric, $17::text::numeric)
		ON CONFLICT (id) DO UPDATE SET
			leave_type = EXCLUDED.leave_type,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			total_days = EXCLUDED.total_days,
			status = EXCLUDED.status,
			is_half_day = EXCLUDED.is_half_day,
			short_leave_hours = EXCLUDED.short_leave_hours,
			reason = EXCLUDED.reason,
			decided_by = EXCLUDED.decided_by,
			decided_at = EXCLUDED.decided_at,
			rejection_reason = EXCLUDED.rejection_reason,
			is_paid = EXCLUDED.is_paid,
			paid_days = EXCLUDED.paid_days,
			unpaid_days = EXCLUDED.unpaid_days`,
		req.ID, string(req.EmployeeID), string(req.LeaveType), req.Start.Time, req.End.Time,
		req.TotalDays.Value.String(), string(req.Status), req.IsHalfDay, req.ShortLeaveHours.String(),
		req.Reason, req.SubmittedAt, req.DecidedBy, req.DecidedAt, req.RejectionReason,
		req.IsPaid, req.PaidDays.Value.String(), req.UnpaidDays.Value.String(),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to save leave request: %w", err))
	}
	return nil
}

func (r *repo) GetRequest(ctx context.Context, id string) (leave.LeaveRequest, error) {
	req, err := scanRequest(r.q.QueryRow(ctx, "SELECT "+requestColumns+" FROM leave_requests WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return leave.LeaveRequest{}, leave.RequestNotFound(id)
	}
	return req, mapError(err)
}

func (r *repo) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.LeaveRequest, error) {
	where, args := requestWhere(f)
	rows, err := r.q.Query(ctx,
		"SELECT "+requestColumns+" FROM leave_requests"+where+" ORDER BY start_date ASC, submitted_at ASC",
		args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query leave requests: %w", err))
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (leave.LeaveRequest, error) {
		return scanRequest(row)
	})
	return out, mapError(err)
}

func requestWhere(f leave.RequestFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.EmployeeID != "" {
		conds = append(conds, "employee_id = "+arg(string(f.EmployeeID)))
	}
	if len(f.EmployeeIDs) > 0 {
		ids := make([]string, len(f.EmployeeIDs))
		for i, id := range f.EmployeeIDs {
			ids[i] = string(id)
		}
		conds = append(conds, "employee_id = ANY("+arg(ids)+")")
	}
	if f.LeaveType != "" {
		conds = append(conds, "leave_type = "+arg(string(f.LeaveType)))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		conds = append(conds, "status = ANY("+arg(statuses)+")")
	}
	if f.From != nil {
		conds = append(conds, "end_date >= "+arg(f.From.Time))
	}
	if f.To != nil {
		conds = append(conds, "start_date <= "+arg(f.To.Time))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRequest(row pgx.Row) (leave.LeaveRequest, error) {
	var (
		req                           leave.LeaveRequest
		employeeID, leaveType, status string
		total, hours, paidDays, unpaid string
		start, end                    time.Time
	)
	err := row.Scan(&req.ID, &employeeID, &leaveType, &start, &end, &total, &status,
		&req.IsHalfDay, &hours, &req.Reason, &req.SubmittedAt, &req.DecidedBy, &req.DecidedAt,
		&req.RejectionReason, &req.IsPaid, &paidDays, &unpaid)
	if err != nil {
		return req, err
	}
	req.EmployeeID = generic.EntityID(employeeID)
	req.LeaveType = leave.LeaveType(leaveType)
	req.Status = leave.LeaveStatus(status)
	req.Start = generic.Date(start)
	req.End = generic.Date(end)
	req.TotalDays = generic.DaysFromDecimal(parseDecimal(total))
	req.ShortLeaveHours = parseDecimal(hours)
	req.PaidDays = generic.DaysFromDecimal(parseDecimal(paidDays))
	req.UnpaidDays = generic.DaysFromDecimal(parseDecimal(unpaid))
	req.SubmittedAt = req.SubmittedAt.UTC()
	if req.DecidedAt != nil {
		t := req.DecidedAt.UTC()
		req.DecidedAt = &t
	}
	return req, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (r *repo) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO holidays (id, date, name, recurring) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET date = EXCLUDED.date, name = EXCLUDED.name, recurring = EXCLUDED.recurring`,
		h.ID, h.Date.Time, h.Name, h.Recurring)
	if err != nil {
		return mapError(fmt.Errorf("failed to save holiday: %w", err))
	}
	return nil
}

func (r *repo) DeleteHoliday(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, "DELETE FROM holidays WHERE id = $1", id)
	if err != nil {
		return mapError(fmt.Errorf("failed to delete holiday: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return &leave.NotFoundError{Kind: leave.KindHoliday, ID: id}
	}
	return nil
}

func (r *repo) ListHolidays(ctx context.Context) ([]generic.Holiday, error) {
	rows, err := r.q.Query(ctx, "SELECT id, date, name, recurring FROM holidays ORDER BY date")
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query holidays: %w", err))
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (generic.Holiday, error) {
		var (
			h generic.Holiday
			d time.Time
		)
		err := row.Scan(&h.ID, &d, &h.Name, &h.Recurring)
		h.Date = generic.Date(d)
		return h, err
	})
	return out, mapError(err)
}

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

func (r *repo) Append(ctx context.Context, tx generic.Transaction) error {
	var metadata map[string]string
	if len(tx.Metadata) > 0 {
		metadata = tx.Metadata
	}
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = generic.Today()
	}
	var key *string
	if tx.IdempotencyKey != "" {
		key = &tx.IdempotencyKey
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO transactions (id, entity_id, account_id, effective_at, delta_value, delta_unit,
			tx_type, reference_id, reason, idempotency_key, metadata, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8, $9, $10, $11, $12, $13)`,
		string(tx.ID), string(tx.EntityID), string(tx.AccountID), tx.EffectiveAt.Time,
		tx.Delta.Value.String(), string(tx.Delta.Unit), string(tx.Type), tx.ReferenceID, tx.Reason,
		key, metadata, tx.CreatedBy, createdAt.Time,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return generic.ErrDuplicateIdempotencyKey
		}
		return mapError(fmt.Errorf("failed to append transaction: %w", err))
	}
	return nil
}

const transactionColumns = `id, entity_id, account_id, effective_at, delta_value::text, delta_unit,
	tx_type, reference_id, reason, COALESCE(idempotency_key, ''), metadata, created_by, created_at`

func (r *repo) Load(ctx context.Context, entityID generic.EntityID, accountID generic.AccountID) ([]generic.Transaction, error) {
	return r.queryTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE entity_id = $1 AND account_id = $2
		ORDER BY effective_at ASC, seq ASC`, string(entityID), string(accountID))
}

func (r *repo) LoadRange(ctx context.Context, entityID generic.EntityID, accountID generic.AccountID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	return r.queryTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE entity_id = $1 AND account_id = $2 AND effective_at BETWEEN $3 AND $4
		ORDER BY effective_at ASC, seq ASC`, string(entityID), string(accountID), from.Time, to.Time)
}

func (r *repo) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM transactions WHERE idempotency_key = $1)", idempotencyKey).Scan(&exists)
	return exists, mapError(err)
}

func (r *repo) queryTransactions(ctx context.Context, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query transactions: %w", err))
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (generic.Transaction, error) {
		var (
			tx                              generic.Transaction
			id, entityID, accountID, txType string
			delta, unit                     string
			effectiveAt, createdAt          time.Time
		)
		err := row.Scan(&id, &entityID, &accountID, &effectiveAt, &delta, &unit, &txType,
			&tx.ReferenceID, &tx.Reason, &tx.IdempotencyKey, &tx.Metadata, &tx.CreatedBy, &createdAt)
		if err != nil {
			return tx, err
		}
		tx.ID = generic.TransactionID(id)
		tx.EntityID = generic.EntityID(entityID)
		tx.AccountID = generic.AccountID(accountID)
		tx.Type = generic.TransactionType(txType)
		tx.EffectiveAt = generic.Date(effectiveAt)
		tx.CreatedAt = generic.Date(createdAt)
		tx.Delta = generic.Amount{Value: parseDecimal(delta), Unit: generic.Unit(unit)}
		return tx, nil
	})
	return out, mapError(err)
}

// =============================================================================
// HELPERS
// =============================================================================

func datePtr(tp *generic.TimePoint) *time.Time {
	if tp == nil || tp.IsZero() {
		return nil
	}
	t := tp.Time
	return &t
}

func pointDate(t *time.Time) *generic.TimePoint {
	if t == nil {
		return nil
	}
	tp := generic.Date(*t)
	return &tp
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// mapError turns serialization failures and deadlocks into
// generic.ErrConcurrentModification.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%w: %v", generic.ErrConcurrentModification, err)
	}
	return err
}
