package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/smartshop/smartshop-backend/internal/errors"
)

// parseIDParam reads a numeric path parameter and writes the error response
// itself when the value is not a positive integer.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid "+name+" parameter")
		return 0, false
	}
	return uint(id), true
}
