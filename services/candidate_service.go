package services

import (
	"context"

	"ecommerce_recommend/models"
)

// 候选源：内容推荐、协同过滤推荐、兜底推荐。
// 每个候选源各自排除用户已购买的商品，merge阶段会再校验一次。
// 过滤都是纯函数式的：返回新切片，不修改输入。

// contentCandidates 基于内容的候选：按偏好类目取Top-N新品，排除已购买。
// 类目列表为空（新用户）时直接返回空，不是错误。
// 目录查询取topN条后在本地过滤，所以结果可能不足topN条——这是预期行为。
func (s *RecommendationService) contentCandidates(ctx context.Context, categoryIDs []int64, purchased map[int64]struct{}) ([]models.Product, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	products, err := s.catalog.FindByCategories(ctx, categoryIDs, s.topN)
	if err != nil {
		return nil, err
	}
	return excludePurchased(products, purchased), nil
}

// collaborativeCandidates 协同过滤候选："买过你买过的商品的人还买了什么"。
// 单跳信号，不做共现强度加权。无购买历史时直接返回空。
// 集合本身无序，FindByIDs按ID升序返回以保证生成结果可复现。
func (s *RecommendationService) collaborativeCandidates(ctx context.Context, userID int64, purchasedIDs []int64, purchased map[int64]struct{}) ([]models.Product, error) {
	if len(purchasedIDs) == 0 {
		return nil, nil
	}

	candidateIDs, err := s.history.ProductsOfSimilarBuyers(ctx, userID, purchasedIDs)
	if err != nil {
		return nil, err
	}

	// 共同购买者的商品集合必然包含目标用户已购买的，先删掉再查目录
	filtered := make([]int64, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		if _, ok := purchased[id]; ok {
			continue
		}
		filtered = append(filtered, id)
	}
	if len(filtered) == 0 {
		return nil, nil
	}

	products, err := s.catalog.FindByIDs(ctx, filtered)
	if err != nil {
		return nil, err
	}
	return excludePurchased(products, purchased), nil
}

// fallbackCandidates 兜底候选：全局热销Top-N，排除已购买。
// 只在内容候选和协同候选都为空时才会被调用。
func (s *RecommendationService) fallbackCandidates(ctx context.Context, purchased map[int64]struct{}) ([]models.Product, error) {
	products, err := s.catalog.FindMostPopular(ctx, s.topN)
	if err != nil {
		return nil, err
	}
	return excludePurchased(products, purchased), nil
}

// excludePurchased 返回过滤掉已购买商品的新切片
func excludePurchased(products []models.Product, purchased map[int64]struct{}) []models.Product {
	if len(products) == 0 {
		return nil
	}
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if _, ok := purchased[p.ID]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// toIDSet 把ID切片转成集合
func toIDSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
