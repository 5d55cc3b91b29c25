package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"learnhub-backend/internal/authorization"
	"learnhub-backend/internal/middleware"
	"learnhub-backend/internal/service"
	"learnhub-backend/pkg/logger"
)

type errorKind struct {
	kind   error
	status int
	code   string
}

// Business-rule conflicts are reported as 400 like the rest of the public API.
var errorKinds = []errorKind{
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrPaymentRequired, http.StatusForbidden, "payment_required"},
	{service.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{service.ErrConflict, http.StatusBadRequest, "conflict"},
	{service.ErrVerificationFailed, http.StatusBadRequest, "verification_failed"},
	{service.ErrUpstream, http.StatusBadGateway, "upstream_failure"},
}

// responder writes error bodies. Unexpected errors only carry details in development.
type responder struct {
	debug bool
}

func (r responder) fail(c *gin.Context, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			c.JSON(k.status, gin.H{"error": service.Message(err, k.kind.Error()), "code": k.code})
			return
		}
	}

	logger.FromContext(c.Request.Context()).WithError(err).
		WithField("path", c.FullPath()).Error("Unhandled request error")

	body := gin.H{"error": "internal server error", "code": "internal"}
	if r.debug {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}

func (r responder) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": "invalid_input"})
}

// currentViewer reads the identity set by the auth middleware.
func currentViewer(c *gin.Context) (service.Viewer, bool) {
	userID, role, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization credentials required", "code": "unauthorized"})
		return service.Viewer{}, false
	}
	return service.Viewer{UserID: userID, Role: role, IsAdmin: role == authorization.RoleAdmin}, true
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name, "code": "invalid_input"})
		return 0, false
	}
	return uint(id), true
}

// optionalUintQuery returns nil for an absent parameter and false for a malformed one.
func optionalUintQuery(c *gin.Context, name string) (*uint, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name, "code": "invalid_input"})
		return nil, false
	}
	value := uint(id)
	return &value, true
}
