package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// UserRepo 用户目录的存在性探测（users表由主站维护）
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Exists 判断用户是否存在
func (r *UserRepo) Exists(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ? LIMIT 1`, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "query user existence")
	}
	return true, nil
}
