package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-scheduler-api/internal/middleware"
	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-scheduler-api/pkg/errors"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// mayActAs reports whether the caller is an admin or the tutor/student named.
func mayActAs(claims *models.JWTClaims, tutorID, studentID string) bool {
	if claims == nil {
		return false
	}
	switch claims.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTutor:
		return claims.UserID == tutorID
	case models.RoleStudent:
		return claims.UserID == studentID
	}
	return false
}

// requireParticipant writes 403 and returns false unless the caller may act on the pair.
func requireParticipant(c *gin.Context, tutorID, studentID string) bool {
	if mayActAs(claimsFromContext(c), tutorID, studentID) {
		return true
	}
	response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only the session's tutor, student or an admin may do this"))
	return false
}
