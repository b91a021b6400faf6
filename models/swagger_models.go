package models

// APIResponse 通用API响应
type APIResponse struct {
	Code    int         `json:"code" example:"0"`
	Message string      `json:"message" example:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// RecommendationListResponse 推荐列表响应
type RecommendationListResponse struct {
	Code    int              `json:"code" example:"0"`
	Message string           `json:"message" example:"success"`
	Data    []Recommendation `json:"data"`
}

// PageResult 分页结果
type PageResult struct {
	Page  int              `json:"page" example:"0"`
	Size  int              `json:"size" example:"20"`
	Total int64            `json:"total" example:"135"`
	Items []Recommendation `json:"items"`
}
