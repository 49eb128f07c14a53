package mysql

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/go-sql-driver/mysql"

	"autobidder/internal/domain"
)

type MySQLDomainRepository struct {
	db *sql.DB
}

func NewMySQLDomainRepository(db *sql.DB) *MySQLDomainRepository {
	return &MySQLDomainRepository{db: db}
}

func (r *MySQLDomainRepository) UpsertDomain(ctx context.Context, d *domain.Domain) error {
	query := `
        INSERT INTO domains (domain_id, name, expiration_date)
        VALUES (?, ?, ?)
        ON DUPLICATE KEY UPDATE name = VALUES(name), expiration_date = VALUES(expiration_date)
    `
	_, err := r.db.ExecContext(ctx, query, d.ID, d.Name, d.ExpirationDate)
	return err
}

func (r *MySQLDomainRepository) GetDomain(ctx context.Context, domainID int64) (*domain.Domain, error) {
	query := `
        SELECT domain_id, name, expiration_date
        FROM domains WHERE domain_id = ?
    `

	var d domain.Domain
	err := r.db.QueryRowContext(ctx, query, domainID).Scan(&d.ID, &d.Name, &d.ExpirationDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &d, nil
}

func (r *MySQLDomainRepository) ListWithoutSeoMetrics(ctx context.Context) ([]*domain.Domain, error) {
	query := `
        SELECT d.domain_id, d.name, d.expiration_date
        FROM domains d
        LEFT JOIN seo_metrics m ON m.domain_id = d.domain_id
        WHERE m.domain_id IS NULL
    `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []*domain.Domain
	for rows.Next() {
		var d domain.Domain
		if err := rows.Scan(&d.ID, &d.Name, &d.ExpirationDate); err != nil {
			return nil, err
		}
		domains = append(domains, &d)
	}

	return domains, rows.Err()
}
