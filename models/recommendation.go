package models

import "time"

// RecommendationType 推荐来源类型（封闭枚举，入库时取字符串值）
type RecommendationType string

const (
	TypeContentBased  RecommendationType = "CONTENT_BASED" // 基于内容：用户偏好类目下的商品
	TypeCollaborative RecommendationType = "COLLABORATIVE" // 协同过滤：共同购买者买过的商品
	TypeFallback      RecommendationType = "FALLBACK"      // 兜底：全局热门商品
)

// Valid 判断是否为合法的推荐类型
func (t RecommendationType) Valid() bool {
	switch t {
	case TypeContentBased, TypeCollaborative, TypeFallback:
		return true
	}
	return false
}

// Recommendation 一条推荐记录。创建后不再修改；
// 同一用户的新一轮生成会写入新batch，旧batch保留用于审计。
type Recommendation struct {
	ID        int64              `db:"id" json:"id"`
	BatchID   string             `db:"batch_id" json:"batch_id"` // 同一次生成的所有记录共享一个batch_id
	UserID    int64              `db:"user_id" json:"user_id"`
	ProductID int64              `db:"product_id" json:"product_id"`
	Type      RecommendationType `db:"type" json:"type"`
	Score     float64            `db:"score" json:"score"`       // [0,1)，越大越靠前
	Position  int                `db:"position" json:"position"` // 在本batch中的位置，从0开始
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
}

// RecommendationDetail 单条推荐的详情视图，附带商品信息
type RecommendationDetail struct {
	Recommendation
	Product *Product `json:"product,omitempty"` // 商品可能已下架，允许为空
}
