package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nao1215/crawlgraph/internal/model"
)

// CreateLinks inserts edges. Duplicates are accepted.
func (cdb *CrawlDB) CreateLinks(ctx context.Context, links []model.Link) error {
	if len(links) == 0 {
		return nil
	}
	err := cdb.withTx(ctx, func(tx *sql.Tx) error {
		for _, l := range links {
			if _, err := cdb.exec(ctx, tx,
				`INSERT INTO links (source_id, target_id) VALUES (?, ?)`,
				l.Source, l.Target); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert links: %w", err)
	}
	return nil
}

// FindLinksBySources returns every edge whose source is in ids.
func (cdb *CrawlDB) FindLinksBySources(ctx context.Context, ids []int64) ([]model.Link, error) {
	links := make([]model.Link, 0)
	if len(ids) == 0 {
		return links, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := cdb.query(ctx, cdb.db,
		`SELECT source_id, target_id FROM links
		WHERE source_id IN (`+placeholders(len(ids))+`)
		ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l model.Link
		if err := rows.Scan(&l.Source, &l.Target); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate links: %w", err)
	}
	return links, nil
}
