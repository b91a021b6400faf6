package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"ecommerce_recommend/models"
)

// ProductRepo 商品目录的只读访问（商品表由主站维护）
type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

const productColumns = "id, category_id, name, price, is_active, created_at"

// FindByCategories 按给定类目取Top-N在售商品。
// 类目顺序即偏好顺序（FIELD保序），同一类目内新品优先。
func (r *ProductRepo) FindByCategories(ctx context.Context, categoryIDs []int64, limit int) ([]models.Product, error) {
	if len(categoryIDs) == 0 || limit <= 0 {
		return nil, nil
	}

	placeholders := buildPlaceholders(len(categoryIDs))
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE is_active = 1 AND category_id IN (` + placeholders + `)
		ORDER BY FIELD(category_id, ` + placeholders + `), created_at DESC
		LIMIT ?`

	args := make([]interface{}, 0, len(categoryIDs)*2+1)
	for _, id := range categoryIDs {
		args = append(args, id)
	}
	for _, id := range categoryIDs {
		args = append(args, id)
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query products by categories")
	}
	defer rows.Close()

	return scanProducts(rows)
}

// FindMostPopular 按销量取Top-N在售商品，销量相同时新品优先。
// LEFT JOIN保证订单表为空时仍然按上架时间返回商品。
func (r *ProductRepo) FindMostPopular(ctx context.Context, limit int) ([]models.Product, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT p.id, p.category_id, p.name, p.price, p.is_active, p.created_at
		FROM products p
		LEFT JOIN order_items oi ON oi.product_id = p.id
		WHERE p.is_active = 1
		GROUP BY p.id, p.category_id, p.name, p.price, p.is_active, p.created_at
		ORDER BY COALESCE(SUM(oi.quantity), 0) DESC, p.created_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query most popular products")
	}
	defer rows.Close()

	return scanProducts(rows)
}

// FindByID 按ID查找商品，未找到时返回nil
func (r *ProductRepo) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`

	var p models.Product
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.CategoryID, &p.Name, &p.Price, &p.IsActive, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query product by id")
	}
	return &p, nil
}

// FindByIDs 按ID集合查找在售商品，结果按ID升序（保证确定性）
func (r *ProductRepo) FindByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE is_active = 1 AND id IN (` + buildPlaceholders(len(ids)) + `)
		ORDER BY id ASC`

	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query products by ids")
	}
	defer rows.Close()

	return scanProducts(rows)
}

// buildPlaceholders 构建n个?占位符，如 "?, ?, ?"
func buildPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Price, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan product row")
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate product rows")
	}
	return products, nil
}
