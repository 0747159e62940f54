package httputil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Audit trails grow with every encrypt and decrypt, so pages are larger than a
// typical admin listing.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// Page is an offset/limit window read from the query string.
type Page struct {
	Offset int
	Limit  int
}

// ParsePage reads ?offset (default 0) and ?limit (default DefaultPageLimit,
// at most MaxPageLimit).
func ParsePage(c *gin.Context) (Page, error) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return Page{}, fmt.Errorf("invalid offset parameter: must be a non-negative integer")
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultPageLimit)))
	if err != nil || limit < 1 || limit > MaxPageLimit {
		return Page{}, fmt.Errorf("invalid limit parameter: must be between 1 and %d", MaxPageLimit)
	}

	return Page{Offset: offset, Limit: limit}, nil
}
