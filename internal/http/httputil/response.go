package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/amm-engine/internal/common"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func BadRequest(c *gin.Context, err string) {
	HttpError(c, common.HTTPErrorBadRequest(err))
}

// HttpError writes a typed error with its machine-readable code.
func HttpError(c *gin.Context, err *common.HttpError) {
	c.JSON(err.StatusCode, Response{
		Success: false,
		Error:   err.Message,
		Code:    err.Code,
	})
}

// AbortWithHttpError writes the error and stops the handler chain.
func AbortWithHttpError(c *gin.Context, err *common.HttpError) {
	c.AbortWithStatusJSON(err.StatusCode, Response{
		Success: false,
		Error:   err.Message,
		Code:    err.Code,
	})
}
