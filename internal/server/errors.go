package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yuriy-kovalchuk/yk-dyn-ip/internal/dns"
)

// errInvalidInput marks malformed request parameters.
var errInvalidInput = errors.New("invalid input")

func statusFor(err error) int {
	var perr *dns.ProviderError
	switch {
	case errors.Is(err, dns.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, errInvalidInput),
		errors.Is(err, dns.ErrMissingIdentifier),
		errors.Is(err, dns.ErrUnsupportedAction),
		errors.Is(err, dns.ErrUnsupportedRecordType),
		errors.Is(err, dns.ErrBuild):
		return http.StatusBadRequest
	case errors.As(err, &perr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// abortWithError ends the request with the status mapped from err and a
// JSON error body.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}
