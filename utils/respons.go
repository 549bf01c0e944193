package utils

import (
	"github.com/gin-gonic/gin"
)

type JSONResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageMeta is attached to paginated list responses.
type PageMeta struct {
	Count int   `json:"count"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
}

type PagedResponse struct {
	JSONResponse
	PageMeta
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

func RespondPaged(c *gin.Context, code int, message string, data interface{}, meta PageMeta) {
	c.JSON(code, PagedResponse{
		JSONResponse: JSONResponse{
			Status:  code >= 200 && code < 300,
			Message: message,
			Data:    data,
		},
		PageMeta: meta,
	})
}

func RespondError(c *gin.Context, code int, err error) {
	c.JSON(code, JSONResponse{
		Status:  false,
		Message: err.Error(),
		Data:    nil,
	})
}

// TotalPages -> ceil(total/limit), zero when limit is not positive
func TotalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
