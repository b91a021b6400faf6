package models

import "errors"

// 业务错误哨兵。repository/services 层用 pkg/errors 包装后向上传递，
// handler 层通过 errors.Is 映射为响应码。
var (
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")

	// ErrRecommendationNotFound 推荐记录不存在
	ErrRecommendationNotFound = errors.New("recommendation not found")

	// ErrInvalidPage 分页参数非法（page<0 或 size<1）
	ErrInvalidPage = errors.New("invalid pagination parameters")
)
