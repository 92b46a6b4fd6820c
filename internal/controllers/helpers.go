package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
)

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		_ = c.Error(apperrors.ErrInvalidInput.Withf("%s must be a UUID", name))
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(apperrors.ErrInvalidInput.Wrap(describeBindError(err)))
		return false
	}
	return true
}

func parsePaginationParams(c *gin.Context) (int, int) {
	const (
		maxLimit     = 100
		defaultLimit = 20
	)
	page, limit := 1, defaultLimit
	if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit))); err == nil && l > 0 {
		limit = min(l, maxLimit)
	}
	return page, limit
}
