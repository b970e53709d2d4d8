package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finsighthq/finsight/internal/apierror"
	"github.com/finsighthq/finsight/model"
)

func (d *Datasource) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, name, created_at
		FROM categories
		WHERE name = $1
	`, name)

	category := &model.Category{}
	err := row.Scan(&category.ID, &category.Name, &category.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Category with name '%s' not found", name), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve category", err)
	}

	return category, nil
}

func (d *Datasource) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, name, created_at
		FROM categories
		WHERE id = $1
	`, id)

	category := &model.Category{}
	err := row.Scan(&category.ID, &category.Name, &category.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Category with ID '%d' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve category", err)
	}

	return category, nil
}

func (d *Datasource) GetAllCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, name, created_at
		FROM categories
		ORDER BY id
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve categories", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		category := model.Category{}
		err = rows.Scan(&category.ID, &category.Name, &category.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan category data", err)
		}
		categories = append(categories, category)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over categories", err)
	}

	return categories, nil
}
