package rest

import (
	"github.com/gin-gonic/gin"
)

// ErrorCode represents standardized API error codes
type ErrorCode string

const (
	ErrorCodeDatabaseError    ErrorCode = "database_error"
	ErrorCodeChainUnavailable ErrorCode = "chain_unavailable"
)

type errorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

func respondWithError(c *gin.Context, status int, code ErrorCode, message string, details string) {
	c.JSON(status, errorResponse{
		Error: errorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
