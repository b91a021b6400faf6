// Package cache 提供按用户维度的推荐结果缓存。
// 缓存实例在进程启动时创建并注入到服务层；条目只在显式失效或TTL到期时消失。
package cache

import (
	"context"

	"ecommerce_recommend/models"
)

// RecommendationCache 用户推荐缓存。
// Put对同一用户是原子替换，不存在部分可见的中间状态。
type RecommendationCache interface {
	// Get 返回用户缓存的推荐列表；第二个返回值表示是否命中
	Get(ctx context.Context, userID int64) ([]models.Recommendation, bool, error)

	// Put 写入（或整体替换）用户的推荐列表
	Put(ctx context.Context, userID int64, recs []models.Recommendation) error

	// Invalidate 删除用户的缓存条目，条目不存在时不报错
	Invalidate(ctx context.Context, userID int64) error
}
