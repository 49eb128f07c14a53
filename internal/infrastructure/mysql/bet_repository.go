package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"autobidder/internal/domain"
)

type MySQLBetRepository struct {
	db *sql.DB
}

func NewMySQLBetRepository(db *sql.DB) *MySQLBetRepository {
	return &MySQLBetRepository{db: db}
}

func (r *MySQLBetRepository) GetBet(ctx context.Context, domainID int64) (*domain.Bet, error) {
	query := `
        SELECT b.domain_id, b.max_bet, b.expiration_date, b.created_at,
               d.domain_id, d.name, d.expiration_date
        FROM bets b
        JOIN domains d ON d.domain_id = b.domain_id
        WHERE b.domain_id = ?
    `

	bet, err := scanBet(r.db.QueryRowContext(ctx, query, domainID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return bet, nil
}

func (r *MySQLBetRepository) UpsertBet(ctx context.Context, bet *domain.Bet) error {
	query := `
        INSERT INTO bets (domain_id, max_bet, expiration_date, created_at)
        VALUES (?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE max_bet = VALUES(max_bet), expiration_date = VALUES(expiration_date)
    `
	createdAt := bet.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query, bet.DomainID, bet.MaxBet, bet.ExpirationDate, createdAt)
	return err
}

func (r *MySQLBetRepository) UpdateMaxBet(ctx context.Context, domainID, maxBet int64) error {
	query := `UPDATE bets SET max_bet = ? WHERE domain_id = ?`
	_, err := r.db.ExecContext(ctx, query, maxBet, domainID)
	return err
}

func (r *MySQLBetRepository) DeleteBet(ctx context.Context, domainID int64) error {
	query := `DELETE FROM bets WHERE domain_id = ?`
	_, err := r.db.ExecContext(ctx, query, domainID)
	return err
}

// ListExpiring filters on the authoritative domains.expiration_date; the
// denormalized copy on the bet row is display-only.
func (r *MySQLBetRepository) ListExpiring(ctx context.Context, before time.Time) ([]*domain.Bet, error) {
	query := `
        SELECT b.domain_id, b.max_bet, b.expiration_date, b.created_at,
               d.domain_id, d.name, d.expiration_date
        FROM bets b
        JOIN domains d ON d.domain_id = b.domain_id
        WHERE d.expiration_date <= ?
        ORDER BY d.expiration_date ASC
    `

	return r.queryBets(ctx, query, before)
}

func (r *MySQLBetRepository) ListAll(ctx context.Context) ([]*domain.Bet, error) {
	query := `
        SELECT b.domain_id, b.max_bet, b.expiration_date, b.created_at,
               d.domain_id, d.name, d.expiration_date
        FROM bets b
        JOIN domains d ON d.domain_id = b.domain_id
        ORDER BY b.created_at DESC
    `

	return r.queryBets(ctx, query)
}

func (r *MySQLBetRepository) queryBets(ctx context.Context, query string, args ...interface{}) ([]*domain.Bet, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []*domain.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, bet)
	}

	return bets, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBet(row rowScanner) (*domain.Bet, error) {
	var bet domain.Bet
	var d domain.Domain

	err := row.Scan(&bet.DomainID, &bet.MaxBet, &bet.ExpirationDate, &bet.CreatedAt,
		&d.ID, &d.Name, &d.ExpirationDate)
	if err != nil {
		return nil, err
	}

	bet.Domain = &d
	return &bet, nil
}
