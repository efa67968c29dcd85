package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/crawlgraph/internal/model"
	"github.com/nao1215/crawlgraph/internal/store"
)

const resourceColumns = `id, url, alias_of, expression_id, other_error, http_status`

// validURLCondition keeps resources whose URL is an absolute http(s) URL.
const validURLCondition = `(url LIKE 'http://%' OR url LIKE 'https://%')`

// CreateResources inserts one resource per URL. Existing URLs are returned
// unchanged.
func (cdb *CrawlDB) CreateResources(ctx context.Context, urls []string) ([]model.Resource, error) {
	resources, err := cdb.findOrCreate(ctx, urls, 0, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create resources: %w", err)
	}
	return resources, nil
}

// FindOrCreateResources returns the resources of urls, creating missing ones.
func (cdb *CrawlDB) FindOrCreateResources(ctx context.Context, urls []string) ([]model.Resource, error) {
	resources, err := cdb.findOrCreate(ctx, urls, 0, false)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create resources: %w", err)
	}
	return resources, nil
}

// FindOrCreateResourcesForTerritoire returns the resources of urls and makes
// sure each has an annotation row in the territoire.
func (cdb *CrawlDB) FindOrCreateResourcesForTerritoire(ctx context.Context, urls []string, territoireID int64) ([]model.Resource, error) {
	resources, err := cdb.findOrCreate(ctx, urls, territoireID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create territoire resources: %w", err)
	}
	return resources, nil
}

func (cdb *CrawlDB) findOrCreate(ctx context.Context, urls []string, territoireID int64, annotate bool) ([]model.Resource, error) {
	resources := make([]model.Resource, 0, len(urls))
	if len(urls) == 0 {
		return resources, nil
	}

	err := cdb.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTimestamp(time.Now())
		for _, u := range urls {
			r, err := cdb.findOrCreateOne(ctx, tx, u, now)
			if err != nil {
				return err
			}
			if annotate {
				if _, err := cdb.exec(ctx, tx,
					`INSERT INTO annotations (resource_id, territoire_id) VALUES (?, ?)
					ON CONFLICT (resource_id, territoire_id) DO NOTHING`,
					r.ID, territoireID); err != nil {
					return fmt.Errorf("failed to insert annotation: %w", err)
				}
			}
			resources = append(resources, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resources, nil
}

func (cdb *CrawlDB) findOrCreateOne(ctx context.Context, q querier, url, now string) (model.Resource, error) {
	if _, err := cdb.exec(ctx, q,
		`INSERT INTO resources (url, created_at) VALUES (?, ?)
		ON CONFLICT (url) DO NOTHING`, url, now); err != nil {
		return model.Resource{}, fmt.Errorf("failed to insert resource %s: %w", url, err)
	}
	r, err := scanResource(cdb.queryRow(ctx, q,
		`SELECT `+resourceColumns+` FROM resources WHERE url = ?`, url))
	if err != nil {
		return model.Resource{}, fmt.Errorf("failed to read resource %s: %w", url, err)
	}
	return r, nil
}

// UpdateResource applies a partial update. An empty update only checks
// that the resource exists.
func (cdb *CrawlDB) UpdateResource(ctx context.Context, id int64, update model.ResourceUpdate) error {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if update.OtherError != nil {
		sets = append(sets, "other_error = ?")
		args = append(args, string(*update.OtherError))
	}
	if update.HTTPStatus != nil {
		sets = append(sets, "http_status = ?")
		args = append(args, *update.HTTPStatus)
	}
	if len(sets) == 0 {
		var exists int
		err := cdb.queryRow(ctx, cdb.db, `SELECT 1 FROM resources WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrResourceNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read resource: %w", err)
		}
		return nil
	}

	query := `UPDATE resources SET `
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := cdb.exec(ctx, cdb.db, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}
	return requireAffected(res, store.ErrResourceNotFound)
}

// FindValidResourcesByIDs returns the valid resources among ids, in id order.
func (cdb *CrawlDB) FindValidResourcesByIDs(ctx context.Context, ids []int64) ([]model.Resource, error) {
	if len(ids) == 0 {
		return []model.Resource{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := cdb.query(ctx, cdb.db,
		`SELECT `+resourceColumns+` FROM resources
		WHERE id IN (`+placeholders(len(ids))+`) AND `+validURLCondition+`
		ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	return collectResources(rows)
}

// FindValidResourcesByURLs returns the valid resources among urls, in id order.
func (cdb *CrawlDB) FindValidResourcesByURLs(ctx context.Context, urls []string) ([]model.Resource, error) {
	if len(urls) == 0 {
		return []model.Resource{}, nil
	}
	args := make([]any, len(urls))
	for i, u := range urls {
		args[i] = u
	}
	rows, err := cdb.query(ctx, cdb.db,
		`SELECT `+resourceColumns+` FROM resources
		WHERE url IN (`+placeholders(len(urls))+`) AND `+validURLCondition+`
		ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	return collectResources(rows)
}

// AddAlias marks aliasID as an alias of the resource at canonicalURL.
// The canonical resource is created if needed; its id is returned.
// A resource is never made an alias of itself.
func (cdb *CrawlDB) AddAlias(ctx context.Context, aliasID int64, canonicalURL string) (int64, error) {
	var canonicalID int64
	err := cdb.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := cdb.queryRow(ctx, tx, `SELECT 1 FROM resources WHERE id = ?`, aliasID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrResourceNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read alias resource: %w", err)
		}

		canonical, err := cdb.findOrCreateOne(ctx, tx, canonicalURL, formatTimestamp(time.Now()))
		if err != nil {
			return err
		}
		canonicalID = canonical.ID
		if canonicalID == aliasID {
			return nil
		}
		if _, err := cdb.exec(ctx, tx,
			`UPDATE resources SET alias_of = ? WHERE id = ?`, canonicalID, aliasID); err != nil {
			return fmt.Errorf("failed to set alias: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add alias: %w", err)
	}
	return canonicalID, nil
}

// AssociateWithExpression attaches an expression to a resource.
func (cdb *CrawlDB) AssociateWithExpression(ctx context.Context, resourceID, expressionID int64) error {
	res, err := cdb.exec(ctx, cdb.db,
		`UPDATE resources SET expression_id = ? WHERE id = ?`, expressionID, resourceID)
	if err != nil {
		return fmt.Errorf("failed to associate expression: %w", err)
	}
	return requireAffected(res, store.ErrResourceNotFound)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (model.Resource, error) {
	var (
		r            model.Resource
		aliasOf      sql.NullInt64
		expressionID sql.NullInt64
		otherError   string
	)
	if err := row.Scan(&r.ID, &r.URL, &aliasOf, &expressionID, &otherError, &r.HTTPStatus); err != nil {
		return model.Resource{}, err
	}
	if aliasOf.Valid {
		v := aliasOf.Int64
		r.AliasOf = &v
	}
	if expressionID.Valid {
		v := expressionID.Int64
		r.ExpressionID = &v
	}
	r.OtherError = model.OtherError(otherError)
	return r, nil
}

func collectResources(rows *sql.Rows) ([]model.Resource, error) {
	defer rows.Close()

	resources := make([]model.Resource, 0)
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resources: %w", err)
	}
	return resources, nil
}

// requireAffected returns notFound when res touched no row.
func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
