package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/crawlgraph/internal/model"
	"github.com/nao1215/crawlgraph/internal/store"
)

const expressionColumns = `id, url, title, full_html, main_html, main_text,
	meta_description, meta_json, references_json, aliases_json, created_at`

// CreateExpression persists a new expression and fills its ID and CreatedAt.
func (cdb *CrawlDB) CreateExpression(ctx context.Context, expr *model.Expression) (int64, error) {
	meta, refs, aliases, err := marshalExpression(expr)
	if err != nil {
		return 0, err
	}
	createdAt := time.Now().UTC()

	var id int64
	err = cdb.queryRow(ctx, cdb.db,
		`INSERT INTO expressions (url, title, full_html, main_html, main_text,
			meta_description, meta_json, references_json, aliases_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		expr.URL,
		expr.Title,
		expr.FullHTML,
		expr.MainHTML,
		expr.MainText,
		expr.MetaDescription,
		meta,
		refs,
		aliases,
		formatTimestamp(createdAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert expression: %w", err)
	}

	expr.ID = id
	expr.CreatedAt = createdAt
	return id, nil
}

// UpdateExpression overwrites a previously created expression.
// CreatedAt is kept.
func (cdb *CrawlDB) UpdateExpression(ctx context.Context, expr *model.Expression) error {
	meta, refs, aliases, err := marshalExpression(expr)
	if err != nil {
		return err
	}
	res, err := cdb.exec(ctx, cdb.db,
		`UPDATE expressions SET url = ?, title = ?, full_html = ?, main_html = ?,
			main_text = ?, meta_description = ?, meta_json = ?, references_json = ?,
			aliases_json = ?
		WHERE id = ?`,
		expr.URL,
		expr.Title,
		expr.FullHTML,
		expr.MainHTML,
		expr.MainText,
		expr.MetaDescription,
		meta,
		refs,
		aliases,
		expr.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expression: %w", err)
	}
	return requireAffected(res, store.ErrExpressionNotFound)
}

// FindExpressionByURL returns the expression of the canonical resource of
// url, following one alias hop. It returns nil, nil when there is none.
func (cdb *CrawlDB) FindExpressionByURL(ctx context.Context, url string) (*model.Expression, error) {
	row := cdb.queryRow(ctx, cdb.db,
		`SELECT e.id, e.url, e.title, e.full_html, e.main_html, e.main_text,
			e.meta_description, e.meta_json, e.references_json, e.aliases_json, e.created_at
		FROM resources r
		JOIN resources c ON c.id = COALESCE(r.alias_of, r.id)
		JOIN expressions e ON e.id = c.expression_id
		WHERE r.url = ?`, url)

	expr, err := scanExpression(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find expression: %w", err)
	}
	return &expr, nil
}

// GetExpressionsWithContent returns the full expressions for ids, in id order.
func (cdb *CrawlDB) GetExpressionsWithContent(ctx context.Context, ids []int64) ([]model.Expression, error) {
	expressions := make([]model.Expression, 0, len(ids))
	if len(ids) == 0 {
		return expressions, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := cdb.query(ctx, cdb.db,
		`SELECT `+expressionColumns+` FROM expressions
		WHERE id IN (`+placeholders(len(ids))+`)
		ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expressions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		expr, err := scanExpression(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expression: %w", err)
		}
		expressions = append(expressions, expr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expressions: %w", err)
	}
	return expressions, nil
}

func marshalExpression(expr *model.Expression) (meta, refs, aliases string, err error) {
	m := expr.Meta
	if m == nil {
		m = map[string]string{}
	}
	metaJSON, err := json.Marshal(m)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to serialize meta: %w", err)
	}
	refsJSON, err := json.Marshal(nonNil(expr.References))
	if err != nil {
		return "", "", "", fmt.Errorf("failed to serialize references: %w", err)
	}
	aliasesJSON, err := json.Marshal(nonNil(expr.Aliases))
	if err != nil {
		return "", "", "", fmt.Errorf("failed to serialize aliases: %w", err)
	}
	return string(metaJSON), string(refsJSON), string(aliasesJSON), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func scanExpression(row rowScanner) (model.Expression, error) {
	var (
		expr                    model.Expression
		meta, refs, aliases, ts string
	)
	if err := row.Scan(
		&expr.ID,
		&expr.URL,
		&expr.Title,
		&expr.FullHTML,
		&expr.MainHTML,
		&expr.MainText,
		&expr.MetaDescription,
		&meta,
		&refs,
		&aliases,
		&ts,
	); err != nil {
		return model.Expression{}, err
	}

	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &expr.Meta); err != nil {
			return model.Expression{}, fmt.Errorf("failed to parse meta: %w", err)
		}
	}
	if refs != "" {
		if err := json.Unmarshal([]byte(refs), &expr.References); err != nil {
			return model.Expression{}, fmt.Errorf("failed to parse references: %w", err)
		}
	}
	if aliases != "" {
		if err := json.Unmarshal([]byte(aliases), &expr.Aliases); err != nil {
			return model.Expression{}, fmt.Errorf("failed to parse aliases: %w", err)
		}
	}
	expr.CreatedAt = parseTimestamp(ts)
	return expr, nil
}
