package middleware

import (
	"net/http"

	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodySize rejects declared oversize bodies up front and caps the reader
// for chunked ones, so binding fails once the limit is crossed.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, ErrBodyTooLarge())
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// ErrBodyTooLarge is the 413 returned for bodies over the limit.
func ErrBodyTooLarge() *apperror.AppError {
	return apperror.New(apperror.CodeValidation, "Request body too large", http.StatusRequestEntityTooLarge)
}
