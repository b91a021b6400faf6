package services

import (
	"context"

	"ecommerce_recommend/models"
)

// Catalog 商品目录（repository.ProductRepo实现）
type Catalog interface {
	// 按类目取Top-N在售商品，类目顺序即偏好顺序，类目内新品优先
	FindByCategories(ctx context.Context, categoryIDs []int64, limit int) ([]models.Product, error)

	// 按销量取Top-N在售商品
	FindMostPopular(ctx context.Context, limit int) ([]models.Product, error)

	// 按ID查找商品，未找到时返回nil
	FindByID(ctx context.Context, id int64) (*models.Product, error)

	// 按ID集合查找在售商品，结果按ID升序
	FindByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
}

// PurchaseHistory 购买历史（repository.OrderRepo实现）
type PurchaseHistory interface {
	// 用户购买过的商品ID集合
	PurchasedProductIDs(ctx context.Context, userID int64) ([]int64, error)

	// 用户按类目聚合的购买件数
	CategoryPurchaseCounts(ctx context.Context, userID int64) (map[int64]int64, error)

	// 共同购买者买过的商品ID集合（单跳协同信号）
	ProductsOfSimilarBuyers(ctx context.Context, userID int64, productIDs []int64) ([]int64, error)

	// 有订单记录的用户ID列表（定时预热任务使用）
	UserIDsWithOrders(ctx context.Context) ([]int64, error)
}

// UserDirectory 用户目录（repository.UserRepo实现）
type UserDirectory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// RecommendationStore 推荐记录的持久化存储（repository.RecommendationRepo实现）
type RecommendationStore interface {
	// 在单个事务内写入一轮生成的全部推荐记录
	SaveBatch(ctx context.Context, recs []*models.Recommendation) error

	// 按ID查找，未找到时返回models.ErrRecommendationNotFound
	GetByID(ctx context.Context, id int64) (*models.Recommendation, error)

	// 分页列出所有推荐记录，page从0开始
	List(ctx context.Context, page, size int) ([]models.Recommendation, error)

	Count(ctx context.Context) (int64, error)
}
