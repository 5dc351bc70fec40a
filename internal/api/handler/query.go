package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/shared"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// parsePage reads limit/offset query parameters, clamping them to sane
// bounds. Malformed values fall back to defaults rather than erroring.
func parsePage(c *gin.Context) shared.Page {
	page := shared.Page{Limit: defaultPageLimit, Offset: 0}

	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			page.Limit = limit
		}
	}
	if page.Limit > maxPageLimit {
		page.Limit = maxPageLimit
	}

	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			page.Offset = offset
		}
	}

	return page
}
