package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// OrderRepo 从订单历史重建购买记录（orders/order_items表由主站维护）
type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// PurchasedProductIDs 返回用户购买过的商品ID集合（去重）
func (r *OrderRepo) PurchasedProductIDs(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT oi.product_id
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.user_id = ?`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query purchased product ids")
	}
	defer rows.Close()

	return scanIDs(rows)
}

// CategoryPurchaseCounts 返回用户按类目聚合的购买件数。
// 按quantity求和而不是按订单行计数：买3件算3，不算1。
func (r *OrderRepo) CategoryPurchaseCounts(ctx context.Context, userID int64) (map[int64]int64, error) {
	query := `
		SELECT p.category_id, SUM(oi.quantity)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.user_id = ?
		GROUP BY p.category_id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query category purchase counts")
	}
	defer rows.Close()

	counts := make(map[int64]int64)
	for rows.Next() {
		var categoryID, count int64
		if err := rows.Scan(&categoryID, &count); err != nil {
			return nil, errors.Wrap(err, "scan category count row")
		}
		counts[categoryID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate category count rows")
	}
	return counts, nil
}

// ProductsOfSimilarBuyers 单跳协同信号："买过你买过的商品的其他用户，还买了什么"。
// 返回这些用户购买过的商品ID集合（含目标用户也买过的，由上层过滤）。
func (r *OrderRepo) ProductsOfSimilarBuyers(ctx context.Context, userID int64, productIDs []int64) ([]int64, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT oi.product_id
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.user_id IN (
			SELECT DISTINCT o2.user_id
			FROM orders o2
			JOIN order_items oi2 ON oi2.order_id = o2.id
			WHERE oi2.product_id IN (` + buildPlaceholders(len(productIDs)) + `)
			  AND o2.user_id <> ?
		)
		ORDER BY oi.product_id ASC`

	args := make([]interface{}, 0, len(productIDs)+1)
	for _, id := range productIDs {
		args = append(args, id)
	}
	args = append(args, userID)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query products of similar buyers")
	}
	defer rows.Close()

	return scanIDs(rows)
}

// UserIDsWithOrders 返回有订单记录的用户ID列表（供定时预热任务使用）
func (r *OrderRepo) UserIDsWithOrders(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM orders`)
	if err != nil {
		return nil, errors.Wrap(err, "query user ids with orders")
	}
	defer rows.Close()

	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan id row")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate id rows")
	}
	return ids, nil
}
