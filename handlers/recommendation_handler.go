package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "ecommerce_recommend/docs" // 导入 swagger 文档
	"ecommerce_recommend/services"
	"ecommerce_recommend/utils"
)

// GenerateRecommendationHandler godoc
// @Summary 为指定用户生成推荐内容
// @Description 返回用户的混合推荐列表。缓存命中直接返回；未命中时同步生成新的一批推荐并落库
// @Tags 推荐内容
// @Accept json
// @Produce json
// @Param uid path int true "用户ID"
// @Success 200 {object} models.RecommendationListResponse "成功"
// @Failure 400 {object} models.APIResponse "参数错误"
// @Failure 500 {object} models.APIResponse "服务器错误"
// @Router /api/recommendation/generate/{uid} [post]
func GenerateRecommendationHandler(w http.ResponseWriter, r *http.Request, svc *services.RecommendationService) {
	userID, ok := utils.ParseIDParam(w, chi.URLParam(r, "uid"), "uid")
	if !ok {
		return
	}

	recommendations, err := svc.Generate(r.Context(), userID)
	if err != nil {
		utils.HandleServiceError(w, err)
		return
	}

	utils.WriteSuccessResponse(w, recommendations)
}

// GetRecommendationHandler godoc
// @Summary 获取单条推荐记录
// @Description 按ID获取推荐记录详情，附带商品信息
// @Tags 推荐内容
// @Accept json
// @Produce json
// @Param id path int true "推荐记录ID"
// @Success 200 {object} models.APIResponse "成功"
// @Failure 400 {object} models.APIResponse "参数错误"
// @Failure 500 {object} models.APIResponse "服务器错误"
// @Router /api/recommendation/{id} [get]
func GetRecommendationHandler(w http.ResponseWriter, r *http.Request, svc *services.RecommendationService) {
	id, ok := utils.ParseIDParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}

	detail, err := svc.GetByID(r.Context(), id)
	if err != nil {
		utils.HandleServiceError(w, err)
		return
	}

	utils.WriteSuccessResponse(w, detail)
}

// ListRecommendationsHandler godoc
// @Summary 分页列出推荐记录
// @Description 跨用户、跨batch分页列出所有推荐记录，新记录在前
// @Tags 推荐内容
// @Accept json
// @Produce json
// @Param page query int false "页码，从0开始" default(0)
// @Param size query int false "每页条数" default(20)
// @Success 200 {object} models.APIResponse "成功"
// @Failure 400 {object} models.APIResponse "参数错误"
// @Failure 500 {object} models.APIResponse "服务器错误"
// @Router /api/recommendations [get]
func ListRecommendationsHandler(w http.ResponseWriter, r *http.Request, svc *services.RecommendationService) {
	page, size, err := utils.ParsePagination(r)
	if err != nil {
		utils.HandleServiceError(w, err)
		return
	}

	result, err := svc.List(r.Context(), page, size)
	if err != nil {
		utils.HandleServiceError(w, err)
		return
	}

	utils.WriteSuccessResponse(w, result)
}

// InvalidateRecommendationHandler godoc
// @Summary 失效用户的推荐缓存
// @Description 用户产生新行为（如完成购买）后由主站调用；下一次生成请求会重新计算推荐
// @Tags 推荐内容
// @Accept json
// @Produce json
// @Param uid path int true "用户ID"
// @Success 200 {object} models.APIResponse "成功"
// @Failure 400 {object} models.APIResponse "参数错误"
// @Router /api/recommendation/invalidate/{uid} [post]
func InvalidateRecommendationHandler(w http.ResponseWriter, r *http.Request, svc *services.RecommendationService) {
	userID, ok := utils.ParseIDParam(w, chi.URLParam(r, "uid"), "uid")
	if !ok {
		return
	}

	// fire-and-forget：缓存删除失败由服务层记日志，这里总是返回成功
	svc.Invalidate(r.Context(), userID)

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"uid": userID,
	})
}

func RegisterRoutes(r *chi.Mux, svc *services.RecommendationService) {
	// Swagger 文档
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"), // Swagger JSON 的 URL
	))

	r.Post("/api/recommendation/generate/{uid}", func(w http.ResponseWriter, r *http.Request) {
		GenerateRecommendationHandler(w, r, svc)
	})

	r.Post("/api/recommendation/invalidate/{uid}", func(w http.ResponseWriter, r *http.Request) {
		InvalidateRecommendationHandler(w, r, svc)
	})

	r.Get("/api/recommendations", func(w http.ResponseWriter, r *http.Request) {
		ListRecommendationsHandler(w, r, svc)
	})

	r.Get("/api/recommendation/{id}", func(w http.ResponseWriter, r *http.Request) {
		GetRecommendationHandler(w, r, svc)
	})
}
