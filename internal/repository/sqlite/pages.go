package sqlite

import (
	"context"
	"fmt"

	"github.com/Houeta/rival-radar/internal/models"
	"github.com/Houeta/rival-radar/internal/repository"
)

// AddPage inserts a tracked page and returns it with its assigned identity.
func (r *Repository) AddPage(ctx context.Context, page models.TrackedPage) (models.TrackedPage, error) {
	const opn = "repository.sqlite.AddPage"

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO pages (competitor, url, page_type, selector) VALUES (?, ?, ?, ?)",
		page.Competitor, page.URL, string(page.Type), page.Selector)
	if err != nil {
		return models.TrackedPage{}, fmt.Errorf("%s: failed to insert page: %w", opn, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.TrackedPage{}, fmt.Errorf("%s: failed to get page id: %w", opn, err)
	}

	page.ID = id
	r.log.InfoContext(ctx, "Tracked page added", "competitor", page.Competitor, "url", page.URL)

	return page, nil
}

// ListPages returns all tracked pages ordered by competitor and URL.
func (r *Repository) ListPages(ctx context.Context) ([]models.TrackedPage, error) {
	const opn = "repository.sqlite.ListPages"

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, competitor, url, page_type, selector FROM pages ORDER BY competitor, url")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query pages: %w", opn, err)
	}
	defer rows.Close()

	var pages []models.TrackedPage
	for rows.Next() {
		var (
			page     models.TrackedPage
			pageType string
		)
		if err = rows.Scan(&page.ID, &page.Competitor, &page.URL, &pageType, &page.Selector); err != nil {
			return nil, fmt.Errorf("%s: failed to scan page: %w", opn, err)
		}
		page.Type = models.PageType(pageType)
		pages = append(pages, page)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iteration error: %w", opn, err)
	}

	return pages, nil
}

// DeletePage removes a tracked page; its snapshots and changes cascade.
func (r *Repository) DeletePage(ctx context.Context, id int64) error {
	const opn = "repository.sqlite.DeletePage"

	res, err := r.db.ExecContext(ctx, "DELETE FROM pages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%s: failed to delete page: %w", opn, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", opn, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", opn, repository.ErrPageNotFound)
	}

	return nil
}
