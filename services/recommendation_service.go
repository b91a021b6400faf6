package services

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ecommerce_recommend/cache"
	"ecommerce_recommend/config"
	"ecommerce_recommend/logger"
	"ecommerce_recommend/models"
)

// 确定性打分参数：分数落在[0,1)，来源置信度高的在前，位置越靠前分数越高
const (
	scoreBaseContent       = 0.95
	scoreBaseCollaborative = 0.90
	scoreBaseFallback      = 0.50
	scoreStep              = 0.03
	scoreFloor             = 0.01
)

// RecommendationService 混合推荐服务。
// 流程：缓存 → 用户校验 → 类目偏好 → 内容/协同并发召回 → 兜底 → 合并打分 → 落库 → 写缓存。
// 所有依赖注入，无包级状态。
type RecommendationService struct {
	catalog Catalog
	history PurchaseHistory
	users   UserDirectory
	store   RecommendationStore
	cache   cache.RecommendationCache

	topN        int
	maxPageSize int

	// 同一用户的并发生成请求合并为一次计算
	group singleflight.Group
}

func NewRecommendationService(
	catalog Catalog,
	history PurchaseHistory,
	users UserDirectory,
	store RecommendationStore,
	recCache cache.RecommendationCache,
	cfg *config.Config,
) *RecommendationService {
	topN := cfg.Recommend.TopN
	if topN <= 0 {
		topN = 5
	}
	maxPageSize := cfg.Recommend.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &RecommendationService{
		catalog:     catalog,
		history:     history,
		users:       users,
		store:       store,
		cache:       recCache,
		topN:        topN,
		maxPageSize: maxPageSize,
	}
}

// Generate 返回用户的推荐列表。
// 缓存命中直接返回，不产生任何存储写入；未命中时同步生成一个新batch。
func (s *RecommendationService) Generate(ctx context.Context, userID int64) ([]models.Recommendation, error) {
	if recs, ok, err := s.cache.Get(ctx, userID); err != nil {
		// 缓存故障按未命中处理，推荐服务本身不因缓存不可用而失败
		logger.Warn("读取推荐缓存失败，按未命中处理", "user_id", userID, "error", err)
	} else if ok {
		logger.Debug("推荐缓存命中", "user_id", userID, "count", len(recs))
		return recs, nil
	}

	v, err, shared := s.group.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		// 排在singleflight后面的请求进来时，第一个完成者可能已写过缓存
		if recs, ok, err := s.cache.Get(ctx, userID); err == nil && ok {
			return recs, nil
		}
		return s.generate(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("并发生成请求已合并", "user_id", userID)
	}
	return v.([]models.Recommendation), nil
}

// generate 执行一轮完整的推荐生成并落库
func (s *RecommendationService) generate(ctx context.Context, userID int64) ([]models.Recommendation, error) {
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Wrapf(models.ErrUserNotFound, "user %d", userID)
	}

	purchasedIDs, err := s.history.PurchasedProductIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.history.CategoryPurchaseCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	purchased := toIDSet(purchasedIDs)
	categoryIDs := RankCategoryAffinity(counts)

	// 内容召回和协同召回相互独立，并发执行；任一失败则本轮生成失败
	var content, collaborative []models.Product
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		content, err = s.contentCandidates(gctx, categoryIDs, purchased)
		return err
	})
	g.Go(func() error {
		var err error
		collaborative, err = s.collaborativeCandidates(gctx, userID, purchasedIDs, purchased)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 两个召回源都为空时才走兜底（典型场景：新用户）
	var fallback []models.Product
	if len(content) == 0 && len(collaborative) == 0 {
		fallback, err = s.fallbackCandidates(ctx, purchased)
		if err != nil {
			return nil, err
		}
	}

	merged := mergeCandidates(content, collaborative, fallback, purchased)

	batchID := uuid.NewString()
	now := time.Now()
	recs := make([]*models.Recommendation, 0, len(merged))
	for i, c := range merged {
		recs = append(recs, &models.Recommendation{
			BatchID:   batchID,
			UserID:    userID,
			ProductID: c.product.ID,
			Type:      c.origin,
			Score:     recommendationScore(c.origin, i),
			Position:  i,
			CreatedAt: now,
		})
	}

	if len(recs) > 0 {
		if err := s.store.SaveBatch(ctx, recs); err != nil {
			return nil, err
		}
	}

	out := make([]models.Recommendation, len(recs))
	for i, rec := range recs {
		out[i] = *rec
	}

	// 生成总是写穿缓存，空结果也缓存，避免每次请求都打满库
	if err := s.cache.Put(ctx, userID, out); err != nil {
		logger.Warn("写入推荐缓存失败", "user_id", userID, "error", err)
	}

	logger.Info("推荐生成完成",
		"user_id", userID,
		"batch_id", batchID,
		"total", len(out),
		"content", len(content),
		"collaborative", len(collaborative),
		"fallback", len(fallback))
	return out, nil
}

// candidate 合并阶段的中间结构：商品+它首次出现的来源
type candidate struct {
	product models.Product
	origin  models.RecommendationType
}

// mergeCandidates 按首次出现顺序去重合并：内容→协同→兜底。
// 同一商品出现在多个来源时，先出现的来源决定origin标签。
// 已购买商品在各候选源已被过滤，这里再校验一次作为最后防线。
func mergeCandidates(content, collaborative, fallback []models.Product, purchased map[int64]struct{}) []candidate {
	seen := make(map[int64]struct{})
	var merged []candidate

	appendAll := func(products []models.Product, origin models.RecommendationType) {
		for _, p := range products {
			if _, ok := purchased[p.ID]; ok {
				continue
			}
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			merged = append(merged, candidate{product: p, origin: origin})
		}
	}

	appendAll(content, models.TypeContentBased)
	appendAll(collaborative, models.TypeCollaborative)
	appendAll(fallback, models.TypeFallback)
	return merged
}

// recommendationScore 确定性打分：来源基准分减去位置衰减，下限scoreFloor。
// 内容/协同高于兜底，位置越靠前分数越高，同样的输入永远得到同样的分数。
func recommendationScore(origin models.RecommendationType, position int) float64 {
	base := scoreBaseFallback
	switch origin {
	case models.TypeContentBased:
		base = scoreBaseContent
	case models.TypeCollaborative:
		base = scoreBaseCollaborative
	}

	score := base - scoreStep*float64(position)
	if score < scoreFloor {
		score = scoreFloor
	}
	return score
}

// GetByID 按ID返回单条推荐详情，附带商品信息
func (s *RecommendationService) GetByID(ctx context.Context, id int64) (*models.RecommendationDetail, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &models.RecommendationDetail{Recommendation: *rec}

	product, err := s.catalog.FindByID(ctx, rec.ProductID)
	if err != nil {
		// 商品信息查询失败只影响详情展示，不影响推荐记录本身
		logger.Warn("查询推荐商品信息失败", "recommendation_id", id, "product_id", rec.ProductID, "error", err)
		return detail, nil
	}
	detail.Product = product
	return detail, nil
}

// List 分页列出所有推荐记录（跨用户、跨batch）。
// page从0开始；page<0或size<1返回ErrInvalidPage，size超过上限时截断。
func (s *RecommendationService) List(ctx context.Context, page, size int) (*models.PageResult, error) {
	if page < 0 || size < 1 {
		return nil, errors.Wrapf(models.ErrInvalidPage, "page=%d size=%d", page, size)
	}
	if size > s.maxPageSize {
		size = s.maxPageSize
	}

	items, err := s.store.List(ctx, page, size)
	if err != nil {
		return nil, err
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	if items == nil {
		items = []models.Recommendation{}
	}
	return &models.PageResult{
		Page:  page,
		Size:  size,
		Total: total,
		Items: items,
	}, nil
}

// Invalidate 删除用户的推荐缓存。
// 由外部在用户产生新行为（如完成购买）后调用；下一次Generate会重新计算。
// fire-and-forget语义：缓存删除失败只记日志，TTL会兜底。
func (s *RecommendationService) Invalidate(ctx context.Context, userID int64) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		logger.Warn("删除推荐缓存失败", "user_id", userID, "error", err)
		return
	}
	logger.Info("推荐缓存已失效", "user_id", userID)
}
