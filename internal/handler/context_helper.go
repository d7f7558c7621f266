package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/chalkbyte/chalkbyte-api/internal/middleware"
	"github.com/chalkbyte/chalkbyte-api/internal/models"
	appErrors "github.com/chalkbyte/chalkbyte-api/pkg/errors"
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

// resolveScope derives the tenant scope for the request. System admins
// operate globally unless they narrow to one school via the school_id query
// parameter; everyone else is pinned to the school in their token.
func resolveScope(c *gin.Context) (models.Scope, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Scope{}, appErrors.ErrUnauthorized
	}

	if claims.Role == models.RoleSystemAdmin {
		if schoolID := c.Query("school_id"); schoolID != "" {
			return models.TenantScope(schoolID), nil
		}
		return models.GlobalScope(), nil
	}

	if claims.SchoolID == "" {
		return models.Scope{}, appErrors.Clone(appErrors.ErrForbidden, "account is not linked to a school")
	}
	return models.TenantScope(claims.SchoolID), nil
}

// resolveSchoolID returns the concrete school a request targets, for
// endpoints that cannot operate globally. System admins must name the school
// explicitly.
func resolveSchoolID(c *gin.Context, explicit string) (string, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return "", appErrors.ErrUnauthorized
	}

	if claims.Role == models.RoleSystemAdmin {
		if explicit != "" {
			return explicit, nil
		}
		if schoolID := c.Query("school_id"); schoolID != "" {
			return schoolID, nil
		}
		return "", appErrors.Clone(appErrors.ErrValidation, "school_id is required")
	}

	if claims.SchoolID == "" {
		return "", appErrors.Clone(appErrors.ErrForbidden, "account is not linked to a school")
	}
	return claims.SchoolID, nil
}

func parsePageParams(c *gin.Context) models.PageParams {
	var p models.PageParams
	if v, err := strconv.Atoi(c.Query("limit")); err == nil {
		p.Limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil {
		p.Offset = v
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil {
		p.Page = v
	}
	return p
}

func parseBoolQuery(c *gin.Context, name string) *bool {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}
