package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"onmint.org/internal/loan"
)

// Store is the durable journal of committed loan states. The in-memory
// ledger stays authoritative; the store exists so history survives restarts
// and can be queried by reporting tools.
type Store struct {
	db *sql.DB
}

var _ loan.Journal = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle, for tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// SaveLoan upserts the committed loan state keyed by loan id.
func (s *Store) SaveLoan(ctx context.Context, l loan.Loan) error {
	var closedAt sql.NullTime
	if l.ClosedAt != nil {
		closedAt = sql.NullTime{Time: *l.ClosedAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		insert into loans(id, seq, borrower, merchant, principal, amount_repaid, created_at, due_at, status, closed_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		on conflict (id) do update
		set amount_repaid = excluded.amount_repaid,
		    status = excluded.status,
		    closed_at = excluded.closed_at
	`, l.ID, l.Sequence, l.Borrower, l.Merchant, l.Principal, l.AmountRepaid,
		l.CreatedAt, l.DueAt, string(l.Status), closedAt)
	return err
}

// LoansByBorrower returns the borrower's journaled history, oldest first.
func (s *Store) LoansByBorrower(ctx context.Context, borrower string) ([]loan.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, seq, borrower, merchant, principal, amount_repaid, created_at, due_at, status, closed_at
		from loans where borrower=$1 order by seq asc
	`, borrower)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLoans(rows)
}

// ListLoans pages through journaled loans by sequence number.
func (s *Store) ListLoans(ctx context.Context, limit int, afterSeq uint64) ([]loan.Loan, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, seq, borrower, merchant, principal, amount_repaid, created_at, due_at, status, closed_at
		from loans where seq > $1 order by seq asc limit $2
	`, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLoans(rows)
}

func scanLoans(rows *sql.Rows) ([]loan.Loan, error) {
	var res []loan.Loan
	for rows.Next() {
		var (
			l        loan.Loan
			status   string
			closedAt sql.NullTime
		)
		if err := rows.Scan(&l.ID, &l.Sequence, &l.Borrower, &l.Merchant,
			&l.Principal, &l.AmountRepaid, &l.CreatedAt, &l.DueAt, &status, &closedAt); err != nil {
			return nil, err
		}
		l.Status = loan.Status(status)
		if closedAt.Valid {
			t := closedAt.Time
			l.ClosedAt = &t
		}
		res = append(res, l)
	}
	return res, rows.Err()
}
