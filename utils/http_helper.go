package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"ecommerce_recommend/models"
)

// WriteFormattedJSON 格式化JSON输出，使其更易读
func WriteFormattedJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ") // 使用4个空格缩进
	encoder.Encode(data)
}

// WriteSuccessResponse 写入成功响应
func WriteSuccessResponse(w http.ResponseWriter, data interface{}) {
	WriteFormattedJSON(w, models.NewSuccessResponse(data))
}

// WriteErrorResponse 写入错误响应
func WriteErrorResponse(w http.ResponseWriter, code int, data interface{}) {
	WriteFormattedJSON(w, models.NewErrorResponse(code, data))
}

// WriteCustomErrorResponse 写入自定义错误消息的响应
func WriteCustomErrorResponse(w http.ResponseWriter, code int, message string, data interface{}) {
	WriteFormattedJSON(w, models.NewCustomErrorResponse(code, message, data))
}

// HandleServiceError 把服务层错误映射为响应码。
// NotFound和参数类错误原样透传给调用方；其余一律视为可重试的存储故障。
func HandleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		WriteErrorResponse(w, models.CodeUserNotFound, map[string]interface{}{})
	case errors.Is(err, models.ErrRecommendationNotFound):
		WriteErrorResponse(w, models.CodeRecommendationNotFound, map[string]interface{}{})
	case errors.Is(err, models.ErrInvalidPage):
		WriteErrorResponse(w, models.CodeInvalidParams, map[string]interface{}{})
	case IsSQLNoRowsError(err):
		// 从repository层漏出来的原始sql.ErrNoRows
		WriteErrorResponse(w, models.CodeNoRecommendData, map[string]interface{}{})
	default:
		WriteCustomErrorResponse(w, models.CodeDatabaseError, err.Error(), map[string]interface{}{})
	}
}

// ParseIDParam 解析路径中的数字ID参数
func ParseIDParam(w http.ResponseWriter, raw, name string) (int64, bool) {
	if raw == "" {
		WriteErrorResponse(w, models.CodeMissingParams, map[string]interface{}{
			"param": name,
		})
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		WriteErrorResponse(w, models.CodeInvalidParams, map[string]interface{}{
			"param": name,
			"value": raw,
		})
		return 0, false
	}
	return id, true
}

// ParsePagination 解析分页查询参数，缺省为page=0、size=20
func ParsePagination(r *http.Request) (page, size int, err error) {
	page, size = 0, 20

	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, models.ErrInvalidPage
		}
	}
	if raw := r.URL.Query().Get("size"); raw != "" {
		size, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, models.ErrInvalidPage
		}
	}
	if page < 0 || size < 1 {
		return 0, 0, models.ErrInvalidPage
	}
	return page, size, nil
}
