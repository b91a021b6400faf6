package services

import (
	"context"
	"sync"

	"ecommerce_recommend/logger"
)

// RegenerateForAllBuyers 为所有有订单的用户重新生成推荐（定时预热任务入口）。
// 先失效缓存再生成，保证拿到的是基于最新订单数据的结果。
func (s *RecommendationService) RegenerateForAllBuyers(ctx context.Context, concurrency int) error {
	userIDs, err := s.history.UserIDsWithOrders(ctx)
	if err != nil {
		return err
	}
	logger.Info("找到待预热用户", "count", len(userIDs), "concurrency", concurrency)

	s.RegenerateWithConcurrency(ctx, userIDs, concurrency)
	return nil
}

// RegenerateWithConcurrency 并发重新生成指定用户的推荐内容
func (s *RecommendationService) RegenerateWithConcurrency(ctx context.Context, userIDs []int64, concurrency int) {
	if concurrency <= 0 {
		concurrency = 10
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	var mu sync.Mutex
	processed, failed := 0, 0

	for _, userID := range userIDs {
		wg.Add(1)
		semaphore <- struct{}{} // acquire semaphore

		go func(uid int64) {
			defer wg.Done()
			defer func() { <-semaphore }() // release semaphore

			s.Invalidate(ctx, uid)
			_, err := s.Generate(ctx, uid)

			mu.Lock()
			defer mu.Unlock()
			processed++
			if err != nil {
				failed++
				logger.Error("重新生成用户推荐失败", "user_id", uid, "error", err)
			}
		}(userID)
	}

	wg.Wait()
	logger.Info("所有用户推荐重新生成完成", "processed", processed, "failed", failed)
}
