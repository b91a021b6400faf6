package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecommerce_recommend/cache"
	"ecommerce_recommend/config"
	"ecommerce_recommend/models"
)

// fakeCatalog 是内存实现的商品目录，模拟repository.ProductRepo的排序语义
type fakeCatalog struct {
	products     []models.Product
	popularOrder []int64 // FindMostPopular的返回顺序（商品ID）

	mu                 sync.Mutex
	byCategoriesCalls  [][]int64 // 每次FindByCategories收到的类目顺序
	mostPopularCalls   int
	failByCategories   error
}

func (f *fakeCatalog) FindByCategories(_ context.Context, categoryIDs []int64, limit int) ([]models.Product, error) {
	f.mu.Lock()
	f.byCategoriesCalls = append(f.byCategoriesCalls, append([]int64(nil), categoryIDs...))
	f.mu.Unlock()
	if f.failByCategories != nil {
		return nil, f.failByCategories
	}
	if len(categoryIDs) == 0 || limit <= 0 {
		return nil, nil
	}

	// 类目顺序保序，类目内按CreatedAt降序
	var out []models.Product
	for _, cid := range categoryIDs {
		var inCategory []models.Product
		for _, p := range f.products {
			if p.CategoryID == cid && p.IsActive {
				inCategory = append(inCategory, p)
			}
		}
		sort.Slice(inCategory, func(i, j int) bool {
			return inCategory[i].CreatedAt.After(inCategory[j].CreatedAt)
		})
		out = append(out, inCategory...)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCatalog) FindMostPopular(_ context.Context, limit int) ([]models.Product, error) {
	f.mu.Lock()
	f.mostPopularCalls++
	f.mu.Unlock()

	var out []models.Product
	for _, id := range f.popularOrder {
		for _, p := range f.products {
			if p.ID == id && p.IsActive {
				out = append(out, p)
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCatalog) FindByID(_ context.Context, id int64) (*models.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) FindByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []models.Product
	for _, p := range f.products {
		if _, ok := want[p.ID]; ok && p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeHistory 按用户返回固定的购买历史
type fakeHistory struct {
	purchased map[int64][]int64          // userID -> 已购商品
	counts    map[int64]map[int64]int64  // userID -> 类目 -> 件数
	coBought  map[int64][]int64          // userID -> 共同购买者买过的商品（含重叠部分）
	buyers    []int64
}

func (f *fakeHistory) PurchasedProductIDs(_ context.Context, userID int64) ([]int64, error) {
	return f.purchased[userID], nil
}

func (f *fakeHistory) CategoryPurchaseCounts(_ context.Context, userID int64) (map[int64]int64, error) {
	return f.counts[userID], nil
}

func (f *fakeHistory) ProductsOfSimilarBuyers(_ context.Context, userID int64, productIDs []int64) ([]int64, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	return f.coBought[userID], nil
}

func (f *fakeHistory) UserIDsWithOrders(_ context.Context) ([]int64, error) {
	return f.buyers, nil
}

// fakeUsers 固定的用户目录
type fakeUsers struct {
	ids map[int64]bool
}

func (f *fakeUsers) Exists(_ context.Context, userID int64) (bool, error) {
	return f.ids[userID], nil
}

// fakeStore 内存实现的推荐存储，记录每个batch
type fakeStore struct {
	mu      sync.Mutex
	batches [][]*models.Recommendation
	nextID  int64
}

func (f *fakeStore) SaveBatch(_ context.Context, recs []*models.Recommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range recs {
		f.nextID++
		rec.ID = f.nextID
	}
	f.batches = append(f.batches, recs)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*models.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, batch := range f.batches {
		for _, rec := range batch {
			if rec.ID == id {
				cp := *rec
				return &cp, nil
			}
		}
	}
	return nil, models.ErrRecommendationNotFound
}

func (f *fakeStore) List(_ context.Context, page, size int) ([]models.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Recommendation
	for _, batch := range f.batches {
		for _, rec := range batch {
			all = append(all, *rec)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	start := page * size
	if start >= len(all) {
		return nil, nil
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (f *fakeStore) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, batch := range f.batches {
		total += int64(len(batch))
	}
	return total, nil
}

func (f *fakeStore) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Recommend.TopN = 5
	cfg.Recommend.MaxPageSize = 100
	return cfg
}

func product(id, categoryID int64, daysAgo int) models.Product {
	return models.Product{
		ID:         id,
		CategoryID: categoryID,
		Name:       "product",
		Price:      9.9,
		IsActive:   true,
		CreatedAt:  time.Now().Add(-time.Duration(daysAgo) * 24 * time.Hour),
	}
}

// 场景：用户1买了3件P1（类目C1）和1件P2（类目C2）。
// 内容推荐应先给C1商品再给C2商品，且不包含P1、P2。
func TestGenerateContentAffinityOrdering(t *testing.T) {
	catalog := &fakeCatalog{
		products: []models.Product{
			product(1, 1, 10), // P1 已购买
			product(2, 2, 10), // P2 已购买
			product(3, 1, 1),  // C1 新品
			product(4, 1, 5),
			product(5, 2, 2),  // C2 新品
		},
	}
	history := &fakeHistory{
		purchased: map[int64][]int64{1: {1, 2}},
		counts:    map[int64]map[int64]int64{1: {1: 3, 2: 1}},
		coBought:  map[int64][]int64{},
	}
	store := &fakeStore{}
	svc := NewRecommendationService(catalog, history, &fakeUsers{ids: map[int64]bool{1: true}}, store, cache.NewMemoryCache(0), testConfig())

	recs, err := svc.Generate(context.Background(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, recs)

	// 类目按件数排序：C1(3件) 在 C2(1件) 之前
	require.Len(t, catalog.byCategoriesCalls, 1)
	assert.Equal(t, []int64{1, 2}, catalog.byCategoriesCalls[0])

	// 不包含已购买商品
	for _, rec := range recs {
		assert.NotContains(t, []int64{1, 2}, rec.ProductID, "已购买商品不允许出现在推荐中")
	}

	// C1商品（新品优先）在C2商品之前
	var productIDs []int64
	for _, rec := range recs {
		productIDs = append(productIDs, rec.ProductID)
	}
	assert.Equal(t, []int64{3, 4, 5}, productIDs)
}

// 没有任何购买历史的新用户应拿到纯兜底推荐
func TestGenerateFallbackForNewUser(t *testing.T) {
	catalog := &fakeCatalog{
		products: []models.Product{
			product(1, 1, 1),
			product(2, 1, 2),
			product(3, 2, 3),
		},
		popularOrder: []int64{2, 3, 1},
	}
	history := &fakeHistory{
		purchased: map[int64][]int64{},
		counts:    map[int64]map[int64]int64{},
		coBought:  map[int64][]int64{},
	}
	store := &fakeStore{}
	svc := NewRecommendationService(catalog, history, &fakeUsers{ids: map[int64]bool{7: true}}, store, cache.NewMemoryCache(0), testConfig())

	recs, err := svc.Generate(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	// 全部来自兜底，顺序与热销榜一致
	for _, rec := range recs {
		assert.Equal(t, models.TypeFallback, rec.Type)
	}
	assert.Equal(t, int64(2), recs[0].ProductID)
	assert.Equal(t, int64(3), recs[1].ProductID)
	assert.Equal(t, int64(1), recs[2].ProductID)
	assert.Equal(t, 1, catalog.mostPopularCalls)
}

// 内容或协同任一有结果时不触发兜底
func TestGenerateNoFallbackWhenSignalExists(t *testing.T) {
	catalog := &fakeCatalog{
		products: []models.Product{
			product(1, 1, 10),
			product(2, 1, 1),
		},
		popularOrder: []int64{1, 2},
	}
	history := &fakeHistory{
		purchased: map[int64][]int64{1: {1}},
		counts:    map[int64]map[int64]int64{1: {1: 1}},
		coBought:  map[int64][]int64{},
	}
	svc := NewRecommendationService(catalog, history, &fakeUsers{ids: map[int64]bool{1: true}}, &fakeStore{}, cache.NewMemoryCache(0), testConfig())

	recs, err := svc.Generate(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.TypeContentBased, recs[0].Type)
	assert.Equal(t, 0, catalog.mostPopularCalls, "有内容候选时不应调用兜底查询")
}

// 同一商品同时出现在内容候选和协同候选时，origin取先出现的来源
func TestGenerateOriginFirstSourceWins(t *testing.T) {
	catalog := &fakeCatalog{
		products: []models.Product{
			product(1, 1, 10), // 已购买
			product(2, 1, 1),  // 内容候选，同时也是协同候选
			product(3, 2, 1),  // 仅协同候选
		},
	}
	history := &fakeHistory{
		purchased: map[int64][]int64{1: {1}},
		counts:    map[int64]map[int64]int64{1: {1: 2}},
		coBought:  map[int64][]int64{1: {1, 2, 3}}, // 含已购买的1，应被过滤
	}
	svc := NewRecommendationService(catalog, history, &fakeUsers{ids: map[int64]bool{1: true}}, &fakeStore{}, cache.NewMemoryCache(0), testConfig())

	recs, err := svc.Generate(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byProduct := make(map[int64]models.Recommendation)
	for _, rec := range recs {
		byProduct[rec.ProductID] = rec
	}
	assert.Equal(t, models.TypeContentBased, byProduct[2].Type, "内容候选先出现，origin应为CONTENT_BASED")
	assert.Equal(t, models.TypeCollaborative, byProduct[3].Type)
}

// 缓存命中时第二次调用不产生新的存储写入，返回内容与第一次一致
func TestGenerateSecondCallHitsCache(t *testing.T) {
	catalog := &fakeCatalog{
		products: []models.Product{
			product(1, 1, 10),
			product(2, 1, 1),
		},
	}
	history := &fakeHistory{
		purchased: map[int64][]int64{1: {1}},
		counts:    map[int64]map[int64]int64{1: {1: 1}},
		coBought:  map[int64][]int64{},
	}
	store := &fakeStore{}
	svc := NewRecommendationService(catalog, history, &fakeUsers{ids: map[int64]bool{1: true}}, store, cache.NewMemoryCache(0), testConfig())

	first, err := svc.Generate(context.Background(), 1)
	require.NoError(t, err)
	second, err := svc.Generate(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.batchCount(), "缓存命中不应产生新batch")
}

// 失效缓存后再次生成必须落一个新batch，旧batch保留
func TestInvalidateTriggersFreshBatch(t *testing.T) {
	catalog := &fakeCatalog{
		products: []models.Product{
			product(1, 1, 10),
			product(2, 1, 1),
		},
	}
	history := &fakeHistory{
		purchased: map[int64][]int64{1: {1}},
		counts:    map[int64]map[int64]int64{1: {1: 1}},
		coBought:  map[int64][]int64{},
	}
	store := &fakeStore{}
	svc := NewRecommendationService(catalog, history, &fakeUsers{ids: map[int64]bool{1: true}}, store, cache.NewMemoryCache(0), testConfig())

	first, err := svc.Generate(context.Background(), 1)
	require.NoError(t, err)

	svc.Invalidate(context.Background(), 1)

	second, err := svc.Generate(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 2, store.batchCount(), "失效后必须产生新batch")
	assert.NotEqual(t, first[0].BatchID, second[0].BatchID)
}

// 用户不存在时返回NotFound且不写库
func TestGenerateUserNotFound(t *testing.T) {
	store := &fakeStore{}
	svc := NewRecommendationService(&fakeCatalog{}, &fakeHistory{}, &fakeUsers{ids: map[int64]bool{}}, store, cache.NewMemoryCache(0), testConfig())

	_, err := svc.Generate(context.Background(), 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	assert.Equal(t, 0, store.batchCount())
}

// 候选不足N条时照常返回，不报错也不补位
func TestGenerateUnderfilledContent(t *testing.T) {
	catalog := &fakeCatalog{
		products: []models.Product{
			product(1, 1, 10), // 已购买
			product(2, 1, 1),  // 类目内唯一未购买商品
		},
	}
	history := &fakeHistory{
		purchased: map[int64][]int64{1: {1}},
		counts:    map[int64]map[int64]int64{1: {1: 1}},
		coBought:  map[int64][]int64{},
	}
	svc := NewRecommendationService(catalog, history, &fakeUsers{ids: map[int64]bool{1: true}}, &fakeStore{}, cache.NewMemoryCache(0), testConfig())

	recs, err := svc.Generate(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

// 确定性打分：内容/协同高于兜底，位置靠前分数高，分数都在[0,1)
func TestRecommendationScore(t *testing.T) {
	assert.Greater(t, recommendationScore(models.TypeContentBased, 0), recommendationScore(models.TypeCollaborative, 0))
	assert.Greater(t, recommendationScore(models.TypeCollaborative, 0), recommendationScore(models.TypeFallback, 0))
	assert.Greater(t, recommendationScore(models.TypeContentBased, 0), recommendationScore(models.TypeContentBased, 1))

	// 位置很靠后时有下限保护，不会出负分
	for pos := 0; pos < 100; pos++ {
		for _, origin := range []models.RecommendationType{models.TypeContentBased, models.TypeCollaborative, models.TypeFallback} {
			score := recommendationScore(origin, pos)
			assert.GreaterOrEqual(t, score, scoreFloor)
			assert.Less(t, score, 1.0)
		}
	}

	// 同样的输入永远得到同样的分数
	assert.Equal(t, recommendationScore(models.TypeContentBased, 3), recommendationScore(models.TypeContentBased, 3))
}

// GetByID：存在时附带商品信息，不存在时返回NotFound
func TestGetByID(t *testing.T) {
	catalog := &fakeCatalog{
		products: []models.Product{
			product(1, 1, 10),
			product(2, 1, 1),
		},
	}
	history := &fakeHistory{
		purchased: map[int64][]int64{1: {1}},
		counts:    map[int64]map[int64]int64{1: {1: 1}},
		coBought:  map[int64][]int64{},
	}
	store := &fakeStore{}
	svc := NewRecommendationService(catalog, history, &fakeUsers{ids: map[int64]bool{1: true}}, store, cache.NewMemoryCache(0), testConfig())

	recs, err := svc.Generate(context.Background(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, recs)

	detail, err := svc.GetByID(context.Background(), recs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, recs[0].ProductID, detail.ProductID)
	require.NotNil(t, detail.Product)
	assert.Equal(t, recs[0].ProductID, detail.Product.ID)

	_, err = svc.GetByID(context.Background(), 9999)
	assert.ErrorIs(t, err, models.ErrRecommendationNotFound)
}

// List：分页参数校验和多batch容忍
func TestListPagination(t *testing.T) {
	catalog := &fakeCatalog{
		products: []models.Product{
			product(1, 1, 10),
			product(2, 1, 1),
		},
	}
	history := &fakeHistory{
		purchased: map[int64][]int64{1: {1}},
		counts:    map[int64]map[int64]int64{1: {1: 1}},
		coBought:  map[int64][]int64{},
	}
	store := &fakeStore{}
	svc := NewRecommendationService(catalog, history, &fakeUsers{ids: map[int64]bool{1: true}}, store, cache.NewMemoryCache(0), testConfig())

	// 造两个batch
	_, err := svc.Generate(context.Background(), 1)
	require.NoError(t, err)
	svc.Invalidate(context.Background(), 1)
	_, err = svc.Generate(context.Background(), 1)
	require.NoError(t, err)

	result, err := svc.List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Total, "历史batch保留，分页覆盖所有batch")
	assert.Len(t, result.Items, 2)

	// 越界页返回空列表而不是错误
	empty, err := svc.List(context.Background(), 5, 10)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)

	// 非法参数
	_, err = svc.List(context.Background(), -1, 10)
	assert.ErrorIs(t, err, models.ErrInvalidPage)
	_, err = svc.List(context.Background(), 0, 0)
	assert.ErrorIs(t, err, models.ErrInvalidPage)
}

// 并发生成同一用户：singleflight合并为一次计算，只落一个batch
func TestGenerateConcurrentRequestsCollapse(t *testing.T) {
	catalog := &fakeCatalog{
		products: []models.Product{
			product(1, 1, 10),
			product(2, 1, 1),
		},
	}
	history := &fakeHistory{
		purchased: map[int64][]int64{1: {1}},
		counts:    map[int64]map[int64]int64{1: {1: 1}},
		coBought:  map[int64][]int64{},
	}
	store := &fakeStore{}
	svc := NewRecommendationService(catalog, history, &fakeUsers{ids: map[int64]bool{1: true}}, store, cache.NewMemoryCache(0), testConfig())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Generate(context.Background(), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// singleflight加上写穿缓存，16个并发请求最多落极少量batch；
	// 串行化后的请求会先命中缓存double check
	assert.LessOrEqual(t, store.batchCount(), 2)
}

// 任一召回源失败时本轮生成失败，不落库也不写缓存
func TestGenerateRecallFailurePropagates(t *testing.T) {
	catalog := &fakeCatalog{
		products: []models.Product{
			product(1, 1, 10),
			product(2, 1, 1),
		},
		failByCategories: assert.AnError,
	}
	history := &fakeHistory{
		purchased: map[int64][]int64{1: {1}},
		counts:    map[int64]map[int64]int64{1: {1: 1}},
		coBought:  map[int64][]int64{},
	}
	store := &fakeStore{}
	memCache := cache.NewMemoryCache(0)
	svc := NewRecommendationService(catalog, history, &fakeUsers{ids: map[int64]bool{1: true}}, store, memCache, testConfig())

	_, err := svc.Generate(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, 0, store.batchCount())

	_, ok, err := memCache.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok, "生成失败不应写缓存")
}

// 预热任务：为所有买家重新生成
func TestRegenerateForAllBuyers(t *testing.T) {
	catalog := &fakeCatalog{
		products: []models.Product{
			product(1, 1, 10),
			product(2, 1, 1),
			product(3, 1, 2),
		},
	}
	history := &fakeHistory{
		purchased: map[int64][]int64{1: {1}, 2: {2}},
		counts:    map[int64]map[int64]int64{1: {1: 1}, 2: {1: 1}},
		coBought:  map[int64][]int64{},
		buyers:    []int64{1, 2},
	}
	store := &fakeStore{}
	svc := NewRecommendationService(catalog, history, &fakeUsers{ids: map[int64]bool{1: true, 2: true}}, store, cache.NewMemoryCache(0), testConfig())

	require.NoError(t, svc.RegenerateForAllBuyers(context.Background(), 4))
	assert.Equal(t, 2, store.batchCount())
}
