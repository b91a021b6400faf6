package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"ecommerce_recommend/models"
)

// RecommendationRepo recommendations表的持久化访问。
// 表是append-only的：每轮生成写入一个新batch，历史batch保留用于审计。
type RecommendationRepo struct {
	db *sql.DB
}

func NewRecommendationRepo(db *sql.DB) *RecommendationRepo {
	return &RecommendationRepo{db: db}
}

const recommendationColumns = "id, batch_id, user_id, product_id, type, score, position, created_at"

// SaveBatch 在单个事务内写入一轮生成的全部推荐记录，并回填自增ID
func (r *RecommendationRepo) SaveBatch(ctx context.Context, recs []*models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	for _, rec := range recs {
		if !rec.Type.Valid() {
			return errors.Errorf("invalid recommendation type %q", rec.Type)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin recommendation batch tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recommendations (batch_id, user_id, product_id, type, score, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare recommendation insert")
	}
	defer stmt.Close()

	for _, rec := range recs {
		res, err := stmt.ExecContext(ctx,
			rec.BatchID, rec.UserID, rec.ProductID, string(rec.Type), rec.Score, rec.Position, rec.CreatedAt)
		if err != nil {
			return errors.Wrap(err, "insert recommendation")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "read recommendation insert id")
		}
		rec.ID = id
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit recommendation batch")
	}
	return nil
}

// GetByID 按ID查找推荐记录，未找到时返回ErrRecommendationNotFound
func (r *RecommendationRepo) GetByID(ctx context.Context, id int64) (*models.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE id = ?`

	var rec models.Recommendation
	var recType string
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&rec.ID, &rec.BatchID, &rec.UserID, &rec.ProductID, &recType, &rec.Score, &rec.Position, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrRecommendationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query recommendation by id")
	}
	rec.Type = models.RecommendationType(recType)
	return &rec, nil
}

// List 分页列出所有推荐记录（跨用户、跨batch），新记录在前。
// page从0开始；入参合法性由service层校验。
func (r *RecommendationRepo) List(ctx context.Context, page, size int) ([]models.Recommendation, error) {
	query := `
		SELECT ` + recommendationColumns + `
		FROM recommendations
		ORDER BY id DESC
		LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, size, page*size)
	if err != nil {
		return nil, errors.Wrap(err, "query recommendation page")
	}
	defer rows.Close()

	var recs []models.Recommendation
	for rows.Next() {
		var rec models.Recommendation
		var recType string
		if err := rows.Scan(&rec.ID, &rec.BatchID, &rec.UserID, &rec.ProductID, &recType, &rec.Score, &rec.Position, &rec.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan recommendation row")
		}
		rec.Type = models.RecommendationType(recType)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate recommendation rows")
	}
	return recs, nil
}

// Count 返回推荐记录总数
func (r *RecommendationRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recommendations`).Scan(&total); err != nil {
		return 0, errors.Wrap(err, "count recommendations")
	}
	return total, nil
}

// LatestBatchID 返回用户最近一个batch的ID，没有时返回空字符串。
// 测试和审计用：验证一次生成确实落了新batch。
func (r *RecommendationRepo) LatestBatchID(ctx context.Context, userID int64) (string, error) {
	var batchID string
	err := r.db.QueryRowContext(ctx, `
		SELECT batch_id FROM recommendations
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT 1`, userID).Scan(&batchID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "query latest batch id")
	}
	return batchID, nil
}
