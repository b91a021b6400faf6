package services

import "sort"

// RankCategoryAffinity 把用户的类目购买件数转成偏好排序。
// 件数多的类目在前；件数相同时类目ID小的在前，保证结果可复现。
// 纯函数，不读库。
func RankCategoryAffinity(counts map[int64]int64) []int64 {
	if len(counts) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})

	return ids
}
