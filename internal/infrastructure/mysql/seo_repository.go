package mysql

import (
	"context"
	"database/sql"
	"time"

	"autobidder/internal/domain"
)

type MySQLSeoMetricsRepository struct {
	db *sql.DB
}

func NewMySQLSeoMetricsRepository(db *sql.DB) *MySQLSeoMetricsRepository {
	return &MySQLSeoMetricsRepository{db: db}
}

func (r *MySQLSeoMetricsRepository) SaveMetrics(ctx context.Context, metrics []*domain.SeoMetrics) error {
	if len(metrics) == 0 {
		return nil
	}

	query := `
        INSERT INTO seo_metrics (
            domain_id, domain_rating, ahrefs_top, backlinks, ref_pages, pages,
            ref_domains, dofollow_links, nofollow_links, internal_links,
            external_links, text_links, image_links, linked_root_domains,
            html_pages, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE
            domain_rating = VALUES(domain_rating), ahrefs_top = VALUES(ahrefs_top),
            backlinks = VALUES(backlinks), ref_pages = VALUES(ref_pages),
            pages = VALUES(pages), ref_domains = VALUES(ref_domains),
            dofollow_links = VALUES(dofollow_links), nofollow_links = VALUES(nofollow_links),
            internal_links = VALUES(internal_links), external_links = VALUES(external_links),
            text_links = VALUES(text_links), image_links = VALUES(image_links),
            linked_root_domains = VALUES(linked_root_domains), html_pages = VALUES(html_pages)
    `

	return r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range metrics {
			createdAt := m.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now()
			}

			_, err := stmt.ExecContext(ctx,
				m.DomainID, m.DomainRating, m.AhrefsTop, m.Backlinks, m.RefPages, m.Pages,
				m.RefDomains, m.DofollowLinks, m.NofollowLinks, m.InternalLinks,
				m.ExternalLinks, m.TextLinks, m.ImageLinks, m.LinkedRootDomains,
				m.HTMLPages, createdAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *MySQLSeoMetricsRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
