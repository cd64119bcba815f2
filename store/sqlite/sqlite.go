/*
Package sqlite provides a SQLite-backed implementation of leave.Store.

PURPOSE:
  Persists employees, leave policies, leave requests, holidays and the
  adjustment ledger in one SQLite file. The same schema runs on PostgreSQL
  (see store/postgres) with minor dialect differences.

APPEND-ONLY ENFORCEMENT:
  The transactions table is never updated or deleted from. Corrections are
  new adjustment rows.

KEY TABLES:
  employees:      Employee records with their probation window
  leave_policies: Entitlement per (leave type, classification)
  leave_requests: Requests with their stamped paid/unpaid split
  transactions:   Immutable ledger of balance adjustments
  holidays:       Company holidays, optionally recurring

STORAGE FORMATS:
  Dates are TEXT "YYYY-MM-DD" so lexical comparison is date comparison.
  Decimals are TEXT so no precision is lost to REAL.

CONCURRENCY:
  The pool holds a single connection. WithTx runs fn on a *sql.Tx over that
  connection, so every read-check-write inside it is serialized against all
  other writers. SQLITE_BUSY surfaces as generic.ErrConcurrentModification.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - leave/store.go: Repository interfaces
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// repo implements leave.Repository over a querier.
type repo struct {
	q querier
}

// Store implements leave.Store using SQLite.
type Store struct {
	*repo
	db *sql.DB
}

var _ leave.Store = (*Store)(nil)

// New opens (creating if needed) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{repo: &repo{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		join_date TEXT NOT NULL,
		classification TEXT NOT NULL DEFAULT '',
		manager_id TEXT NOT NULL DEFAULT '',
		probation_status TEXT NOT NULL DEFAULT 'none',
		probation_start TEXT,
		probation_end TEXT,
		probation_days INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_manager
		ON employees(manager_id);

	CREATE TABLE IF NOT EXISTS leave_policies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		leave_type TEXT NOT NULL,
		classification TEXT NOT NULL DEFAULT '',
		annual_days TEXT NOT NULL,
		is_paid BOOLEAN NOT NULL DEFAULT TRUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_policies_type_class
		ON leave_policies(leave_type, classification);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total_days TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		is_half_day BOOLEAN NOT NULL DEFAULT FALSE,
		short_leave_hours TEXT NOT NULL DEFAULT '0',
		reason TEXT NOT NULL DEFAULT '',
		submitted_at TEXT NOT NULL,
		decided_by TEXT NOT NULL DEFAULT '',
		decided_at TEXT,
		rejection_reason TEXT NOT NULL DEFAULT '',
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_days TEXT NOT NULL DEFAULT '0',
		unpaid_days TEXT NOT NULL DEFAULT '0'
	);

	-- Overlap check on the request hot path
	CREATE INDEX IF NOT EXISTS idx_requests_employee_range
		ON leave_requests(employee_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		delta_value TEXT NOT NULL,
		delta_unit TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL,
		seq INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_entity_account_date
		ON transactions(entity_id, account_id, effective_at);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(date, name);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx runs fn inside one database transaction. Every Repository call fn
// makes goes through the same *sql.Tx.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Repository) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	if err := fn(&repo{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return mapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// Reset clears all data (for tests and demo seeding).
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"transactions", "leave_requests", "leave_policies", "employees", "holidays"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, name, email, join_date, classification, manager_id,
	probation_status, probation_start, probation_end, probation_days, created_at`

func (r *repo) SaveEmployee(ctx context.Context, e leave.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			join_date = excluded.join_date,
			classification = excluded.classification,
			manager_id = excluded.manager_id,
			probation_status = excluded.probation_status,
			probation_start = excluded.probation_start,
			probation_end = excluded.probation_end,
			probation_days = excluded.probation_days
	`
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.q.ExecContext(ctx, query,
		string(e.ID), e.Name, e.Email, formatDate(e.JoinDate),
		string(e.Classification), string(e.ManagerID),
		string(e.Probation.Status), nullDate(e.Probation.Start), nullDate(e.Probation.End),
		e.Probation.DurationDays, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to save employee: %w", err))
	}
	return nil
}

func (r *repo) GetEmployee(ctx context.Context, id generic.EntityID) (leave.Employee, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", string(id))
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Employee{}, leave.EmployeeNotFound(id)
	}
	return e, err
}

func (r *repo) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY id")
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query employees: %w", err))
	}
	defer rows.Close()

	var out []leave.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (leave.Employee, error) {
	var (
		e                        leave.Employee
		id, join, class, manager string
		status, createdAt        string
		probStart, probEnd       sql.NullString
	)
	err := row.Scan(&id, &e.Name, &e.Email, &join, &class, &manager,
		&status, &probStart, &probEnd, &e.Probation.DurationDays, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan employee: %w", err)
	}

	e.ID = generic.EntityID(id)
	e.JoinDate = parseDate(join)
	e.Classification = leave.Classification(class)
	e.ManagerID = generic.EntityID(manager)
	e.Probation.Status = leave.ProbationStatus(status)
	e.Probation.Start = parseNullDate(probStart)
	e.Probation.End = parseNullDate(probEnd)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return e, nil
}

// =============================================================================
// POLICIES
// =============================================================================

const policyColumns = `id, name, leave_type, classification, annual_days, is_paid, is_active`

func (r *repo) SavePolicy(ctx context.Context, p leave.LeavePolicy) error {
	query := `
		INSERT INTO leave_policies (` + policyColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			leave_type = excluded.leave_type,
			classification = excluded.classification,
			annual_days = excluded.annual_days,
			is_paid = excluded.is_paid,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		p.ID, p.Name, string(p.LeaveType), string(p.Classification),
		p.AnnualDays.String(), p.IsPaid, p.IsActive,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to save policy: %w", err))
	}
	return nil
}

func (r *repo) GetPolicy(ctx context.Context, id string) (leave.LeavePolicy, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+policyColumns+" FROM leave_policies WHERE id = ?", id)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.LeavePolicy{}, leave.PolicyNotFound(id)
	}
	return p, err
}

func (r *repo) ListPolicies(ctx context.Context) ([]leave.LeavePolicy, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+policyColumns+" FROM leave_policies ORDER BY id")
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query policies: %w", err))
	}
	defer rows.Close()

	var out []leave.LeavePolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPolicy(row scanner) (leave.LeavePolicy, error) {
	var (
		p                leave.LeavePolicy
		leaveType, class string
		annual           string
	)
	if err := row.Scan(&p.ID, &p.Name, &leaveType, &class, &annual, &p.IsPaid, &p.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan policy: %w", err)
	}
	p.LeaveType = leave.LeaveType(leaveType)
	p.Classification = leave.Classification(class)
	p.AnnualDays = parseDecimal(annual)
	return p, nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

const requestColumns = `id, employee_id, leave_type, start_date, end_date, total_days, status,
	is_half_day, short_leave_hours, reason, submitted_at, decided_by, decided_at,
	rejection_reason, is_paid, paid_days, unpaid_days`

func (r *repo) SaveRequest(ctx context.Context, req leave.LeaveRequest) error {
	query := `
		INSERT INTO leave_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			leave_type = excluded.leave_type,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			total_days = excluded.total_days,
			status = excluded.status,
			is_half_day = excluded.is_half_day,
			short_leave_hours = excluded.short_leave_hours,
			reason = excluded.reason,
			decided_by = excluded.decided_by,
			decided_at = excluded.decided_at,
			rejection_reason = excluded.rejection_reason,
			is_paid = excluded.is_paid,
			paid_days = excluded.paid_days,
			unpaid_days = excluded.unpaid_days
	`
	var decidedAt sql.NullString
	if req.DecidedAt != nil {
		decidedAt = sql.NullString{String: req.DecidedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err := r.q.ExecContext(ctx, query,
		req.ID, string(req.EmployeeID), string(req.LeaveType),
		formatDate(req.Start), formatDate(req.End), req.TotalDays.Value.String(),
		string(req.Status), req.IsHalfDay, req.ShortLeaveHours.String(), req.Reason,
		req.SubmittedAt.UTC().Format(time.RFC3339Nano), req.DecidedBy, decidedAt,
		req.RejectionReason, req.IsPaid, req.PaidDays.Value.String(), req.UnpaidDays.Value.String(),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to save leave request: %w", err))
	}
	return nil
}

func (r *repo) GetRequest(ctx context.Context, id string) (leave.LeaveRequest, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM leave_requests WHERE id = ?", id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.LeaveRequest{}, leave.RequestNotFound(id)
	}
	return req, err
}

func (r *repo) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.LeaveRequest, error) {
	where, args := requestWhere(f)
	query := "SELECT " + requestColumns + " FROM leave_requests" + where +
		" ORDER BY start_date ASC, submitted_at ASC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query leave requests: %w", err))
	}
	defer rows.Close()

	var out []leave.LeaveRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// requestWhere translates f into a WHERE clause. Dates are stored as
// YYYY-MM-DD so the overlap test compares strings.
func requestWhere(f leave.RequestFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.EmployeeID != "" {
		conds = append(conds, "employee_id = ?")
		args = append(args, string(f.EmployeeID))
	}
	if len(f.EmployeeIDs) > 0 {
		conds = append(conds, "employee_id IN ("+placeholders(len(f.EmployeeIDs))+")")
		for _, id := range f.EmployeeIDs {
			args = append(args, string(id))
		}
	}
	if f.LeaveType != "" {
		conds = append(conds, "leave_type = ?")
		args = append(args, string(f.LeaveType))
	}
	if len(f.Statuses) > 0 {
		conds = append(conds, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if f.From != nil {
		conds = append(conds, "end_date >= ?")
		args = append(args, formatDate(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "start_date <= ?")
		args = append(args, formatDate(*f.To))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func scanRequest(row scanner) (leave.LeaveRequest, error) {
	var (
		req                               leave.LeaveRequest
		employeeID, leaveType, status     string
		start, end, total, hours          string
		submittedAt, paidDays, unpaidDays string
		decidedAt                         sql.NullString
	)
	err := row.Scan(&req.ID, &employeeID, &leaveType, &start, &end, &total, &status,
		&req.IsHalfDay, &hours, &req.Reason, &submittedAt, &req.DecidedBy, &decidedAt,
		&req.RejectionReason, &req.IsPaid, &paidDays, &unpaidDays)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return req, err
		}
		return req, fmt.Errorf("failed to scan leave request: %w", err)
	}

	req.EmployeeID = generic.EntityID(employeeID)
	req.LeaveType = leave.LeaveType(leaveType)
	req.Status = leave.LeaveStatus(status)
	req.Start = parseDate(start)
	req.End = parseDate(end)
	req.TotalDays = generic.DaysFromDecimal(parseDecimal(total))
	req.ShortLeaveHours = parseDecimal(hours)
	req.PaidDays = generic.DaysFromDecimal(parseDecimal(paidDays))
	req.UnpaidDays = generic.DaysFromDecimal(parseDecimal(unpaidDays))
	req.SubmittedAt, _ = time.Parse(time.RFC3339Nano, submittedAt)
	if decidedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, decidedAt.String)
		req.DecidedAt = &t
	}
	return req, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (r *repo) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	query := `
		INSERT INTO holidays (id, date, name, recurring)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			name = excluded.name,
			recurring = excluded.recurring
	`
	_, err := r.q.ExecContext(ctx, query, h.ID, formatDate(h.Date), h.Name, h.Recurring)
	if err != nil {
		return mapError(fmt.Errorf("failed to save holiday: %w", err))
	}
	return nil
}

func (r *repo) DeleteHoliday(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return mapError(fmt.Errorf("failed to delete holiday: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &leave.NotFoundError{Kind: leave.KindHoliday, ID: id}
	}
	return nil
}

func (r *repo) ListHolidays(ctx context.Context) ([]generic.Holiday, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT id, date, name, recurring FROM holidays ORDER BY date")
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query holidays: %w", err))
	}
	defer rows.Close()

	var out []generic.Holiday
	for rows.Next() {
		var (
			h    generic.Holiday
			date string
		)
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Recurring); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		h.Date = parseDate(date)
		out = append(out, h)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

// Append adds a transaction to the ledger.
func (r *repo) Append(ctx context.Context, tx generic.Transaction) error {
	return r.appendTx(ctx, tx)
}

func (r *repo) appendTx(ctx context.Context, tx generic.Transaction) error {
	metadataJSON, _ := json.Marshal(tx.Metadata)
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt =                                                          generic.Today()
	}

	query := `
		INSERT INTO                                                          transactions
		(id, entity_id, account_id, effective_at, delta_value,               delta_unit,
		 tx_type, reference_id, reason, idempotency_key, metadata_json, created_by, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,                          ?,
		        (SELECT COALESCE(MAX(seq), 0) + 1 FROM transactions))
	`
	_, err := r.q.ExecContext(ctx, query,
		string(tx.ID),
		string(tx.EntityID),
		string(tx.AccountID),
		formatDate(tx.EffectiveAt),
		tx.Delta.Value.String(),
		string(tx.Delta.Unit),
		string(tx.Type),
		nullString(tx.ReferenceID),
		nullString(tx.Reason),
		nullString(tx.IdempotencyKey),
		string(metadataJSON),
		nullString(tx.CreatedBy),
		formatDate(createdAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return mapError(fmt.Errorf("failed to append transaction: %w", err))
	}
	return nil
}

const transactionColumns = `id, entity_id, account_id, effective_at, delta_value, delta_unit,
	tx_type, reference_id, reason, idempotency_key, metadata_json, created_by, created_at`

// Load returns all transactions for an entity+account.
func (r *repo) Load(ctx context.Context, entityID generic.EntityID, accountID generic.AccountID) ([]generic.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE entity_id = ? AND account_id = ?
		ORDER BY effective_at ASC, seq ASC`
	return r.queryTransactions(ctx, query, string(entityID), string(accountID))
}

// LoadRange returns transactions effective in [from, to].
func (r *repo) LoadRange(ctx context.Context, entityID generic.EntityID, accountID generic.AccountID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE entity_id = ? AND account_id = ?
		  AND effective_at >= ? AND effective_at <= ?
		ORDER BY effective_at ASC, seq ASC`
	return r.queryTransactions(ctx, query, string(entityID), string(accountID), formatDate(from), formatDate(to))
}

// Exists checks if an idempotency key exists.
func (r *repo) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, mapError(err)
}

func (r *repo) queryTransactions(ctx context.Context, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query transactions: %w", err))
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx                                  generic.Transaction
		id, entityID, accountID, txType     string
		effectiveAt, deltaValue, deltaUnit  string
		referenceID, reason, idempotencyKey sql.NullString
		metadataJSON, createdBy             sql.NullString
		createdAt                           string
	)

	err := rows.Scan(
		&id, &entityID, &accountID, &effectiveAt, &deltaValue, &deltaUnit, &txType,
		&referenceID, &reason, &idempotencyKey, &metadataJSON, &createdBy, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.ID = generic.TransactionID(id)
	tx.EntityID = generic.EntityID(entityID)
	tx.AccountID = generic.AccountID(accountID)
	tx.Type = generic.TransactionType(txType)
	tx.EffectiveAt = parseDate(effectiveAt)
	tx.Delta = generic.Amount{Value: parseDecimal(deltaValue), Unit: generic.Unit(deltaUnit)}
	tx.ReferenceID = referenceID.String
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedBy = createdBy.String
	tx.CreatedAt = parseDate(createdAt)

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		_ = json.Unmarshal([]byte(metadataJSON.String), &tx.Metadata)
	}
	return tx, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatDate(tp generic.TimePoint) string {
	return tp.Time.Format(generic.DateLayout)
}

func nullDate(tp *generic.TimePoint) sql.NullString {
	if tp == nil || tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*tp), Valid: true}
}

func parseDate(s string) generic.TimePoint {
	tp, err := generic.ParseDate(s)
	if err != nil {
		return generic.TimePoint{}
	}
	return tp
}

func parseNullDate(s sql.NullString) *generic.TimePoint {
	if !s.Valid || s.String == "" {
		return nil
	}
	tp := parseDate(s.String)
	return &tp
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// mapError turns lock contention into generic.ErrConcurrentModification.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %v", generic.ErrConcurrentModification, err)
	}
	return err
}
