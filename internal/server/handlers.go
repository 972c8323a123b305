package server

import (
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/yuriy-kovalchuk/yk-dyn-ip/internal/updater"
)

func (s *Server) callerIP(c *gin.Context) {
	c.String(http.StatusOK, clientIP(c))
}

func (s *Server) adminIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", s.admin)
}

func (s *Server) listDomains(c *gin.Context) {
	records, err := s.updater.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) createDomain(c *gin.Context) {
	var req updater.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %w", errInvalidInput, err))
		return
	}
	if req.Value == "" {
		req.Value = clientIP(c)
	}
	rec, err := s.updater.Create(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) updateWithPeerAddress(c *gin.Context) {
	ip := clientIP(c)
	if ip == "" {
		abortWithError(c, fmt.Errorf("%w: caller address unknown", errInvalidInput))
		return
	}
	s.setValue(c, c.Param("id"), ip)
}

func (s *Server) updateUserSupplied(c *gin.Context) {
	ip, err := parseIP(c.Param("ip"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.setValue(c, c.Param("id"), ip)
}

func (s *Server) setValue(c *gin.Context, id, ip string) {
	rec, err := s.updater.SetValue(c.Request.Context(), id, ip)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) deleteDomain(c *gin.Context) {
	if err := s.updater.Delete(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// legacyUpdate serves the dyndns-style update.php and PATCH / routes.
func (s *Server) legacyUpdate(c *gin.Context) {
	domain := lo.CoalesceOrEmpty(c.Query("domain"), c.Query("hostname"))
	if domain == "" {
		abortWithError(c, fmt.Errorf("%w: missing domain or hostname parameter", errInvalidInput))
		return
	}

	ip := clientIP(c)
	if raw := lo.CoalesceOrEmpty(c.Query("ip"), c.Query("myip")); raw != "" {
		parsed, err := parseIP(raw)
		if err != nil {
			abortWithError(c, err)
			return
		}
		ip = parsed
	}
	if ip == "" {
		abortWithError(c, fmt.Errorf("%w: caller address unknown", errInvalidInput))
		return
	}

	rec, err := s.updater.Sync(c.Request.Context(), domain, ip)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func parseIP(raw string) (string, error) {
	ip := net.ParseIP(raw)
	if ip == nil {
		return "", fmt.Errorf("%w: %q is not an IP address", errInvalidInput, raw)
	}
	return ip.String(), nil
}
