package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"libraryhub/internal/apierr"
	"libraryhub/internal/validation"
)

var errMalformed = apierr.Validation("Data should follow proper format.")

// bind decodes the JSON body into dst and validates it. An empty body is
// validated as an empty payload so missing fields get their own message.
func bind(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return errMalformed
	}
	return validation.Struct(dst)
}

func message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// respondError writes {"message": ...} with the status of err's kind.
// Internal errors are logged and their cause never leaves the process.
func (s *Server) respondError(c *gin.Context, err error) {
	e := apierr.From(err)
	if e.Kind == apierr.KindInternal {
		s.log.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString(ctxRequestIDKey),
			"err", err)
		e = apierr.Internal(err)
	}
	c.AbortWithStatusJSON(e.Kind.Status(), gin.H{"message": e.Message})
}

func (s *Server) logger(c *gin.Context) *slog.Logger {
	return s.log.With("request_id", c.GetString(ctxRequestIDKey))
}
