package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nao1215/crawlgraph/internal/model"
)

// UpdateAnnotation upserts the annotation of a resource in a territoire.
// Nil values or approved leave the stored field untouched.
func (cdb *CrawlDB) UpdateAnnotation(ctx context.Context, resourceID, territoireID int64, values map[string]string, approved *bool) error {
	var valuesArg sql.NullString
	if values != nil {
		b, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("failed to serialize annotation values: %w", err)
		}
		valuesArg = sql.NullString{String: string(b), Valid: true}
	}
	var approvedArg sql.NullBool
	if approved != nil {
		approvedArg = sql.NullBool{Bool: *approved, Valid: true}
	}

	_, err := cdb.exec(ctx, cdb.db,
		`INSERT INTO annotations (resource_id, territoire_id, values_json, approved)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (resource_id, territoire_id) DO UPDATE SET
			values_json = COALESCE(excluded.values_json, annotations.values_json),
			approved = COALESCE(excluded.approved, annotations.approved)`,
		resourceID, territoireID, valuesArg, approvedArg)
	if err != nil {
		return fmt.Errorf("failed to update annotation: %w", err)
	}
	return nil
}

// FindNotApprovedAnnotations returns the annotations of a territoire that
// were explicitly rejected.
func (cdb *CrawlDB) FindNotApprovedAnnotations(ctx context.Context, territoireID int64) ([]model.Annotation, error) {
	rows, err := cdb.query(ctx, cdb.db,
		`SELECT resource_id, territoire_id, values_json, approved FROM annotations
		WHERE territoire_id = ? AND approved IS NOT NULL AND NOT approved
		ORDER BY resource_id`, territoireID)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	return collectAnnotations(rows)
}

// FindAnnotationsByResourceIDs returns the annotations of resources in a
// territoire.
func (cdb *CrawlDB) FindAnnotationsByResourceIDs(ctx context.Context, resourceIDs []int64, territoireID int64) ([]model.Annotation, error) {
	if len(resourceIDs) == 0 {
		return []model.Annotation{}, nil
	}
	args := make([]any, 0, len(resourceIDs)+1)
	args = append(args, territoireID)
	for _, id := range resourceIDs {
		args = append(args, id)
	}
	rows, err := cdb.query(ctx, cdb.db,
		`SELECT resource_id, territoire_id, values_json, approved FROM annotations
		WHERE territoire_id = ? AND resource_id IN (`+placeholders(len(resourceIDs))+`)
		ORDER BY resource_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	return collectAnnotations(rows)
}

func collectAnnotations(rows *sql.Rows) ([]model.Annotation, error) {
	defer rows.Close()

	annotations := make([]model.Annotation, 0)
	for rows.Next() {
		var (
			a        model.Annotation
			values   sql.NullString
			approved sql.NullBool
		)
		if err := rows.Scan(&a.ResourceID, &a.TerritoireID, &values, &approved); err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		if values.Valid && values.String != "" {
			if err := json.Unmarshal([]byte(values.String), &a.Values); err != nil {
				return nil, fmt.Errorf("failed to parse annotation values: %w", err)
			}
		}
		if approved.Valid {
			v := approved.Bool
			a.Approved = &v
		}
		annotations = append(annotations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate annotations: %w", err)
	}
	return annotations, nil
}
