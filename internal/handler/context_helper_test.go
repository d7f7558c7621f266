package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalkbyte/chalkbyte-api/internal/middleware"
	"github.com/chalkbyte/chalkbyte-api/internal/models"
	appErrors "github.com/chalkbyte/chalkbyte-api/pkg/errors"
)

func testContext(t *testing.T, target string, claims *models.JWTClaims) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodGet, target, nil)
	require.NoError(t, err)
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c
}

func TestResolveScopeSystemAdminIsGlobal(t *testing.T) {
	c := testContext(t, "/academic-sessions", &models.JWTClaims{UserID: "u1", Role: models.RoleSystemAdmin})

	scope, err := resolveScope(c)
	require.NoError(t, err)
	assert.True(t, scope.Global())
}

func TestResolveScopeSystemAdminCanNarrow(t *testing.T) {
	c := testContext(t, "/academic-sessions?school_id=school-9", &models.JWTClaims{UserID: "u1", Role: models.RoleSystemAdmin})

	scope, err := resolveScope(c)
	require.NoError(t, err)
	assert.Equal(t, "school-9", scope.SchoolID())
}

func TestResolveScopeSchoolAdminPinnedToOwnSchool(t *testing.T) {
	// A school_id query parameter from a school-bound caller is ignored.
	c := testContext(t, "/academic-sessions?school_id=school-9",
		&models.JWTClaims{UserID: "u1", Role: models.RoleSchoolAdmin, SchoolID: "school-1"})

	scope, err := resolveScope(c)
	require.NoError(t, err)
	assert.Equal(t, "school-1", scope.SchoolID())
}

func TestResolveScopeUnlinkedAccountForbidden(t *testing.T) {
	c := testContext(t, "/academic-sessions", &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher})

	_, err := resolveScope(c)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestResolveScopeMissingClaimsUnauthorized(t *testing.T) {
	c := testContext(t, "/academic-sessions", nil)

	_, err := resolveScope(c)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestResolveSchoolIDSystemAdminMustName(t *testing.T) {
	c := testContext(t, "/terms/current", &models.JWTClaims{UserID: "u1", Role: models.RoleSystemAdmin})

	_, err := resolveSchoolID(c, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestResolveSchoolIDExplicitBeatsQuery(t *testing.T) {
	c := testContext(t, "/academic-sessions?school_id=school-9", &models.JWTClaims{UserID: "u1", Role: models.RoleSystemAdmin})

	schoolID, err := resolveSchoolID(c, "school-5")
	require.NoError(t, err)
	assert.Equal(t, "school-5", schoolID)
}

func TestResolveSchoolIDSchoolStaffUsesToken(t *testing.T) {
	c := testContext(t, "/terms/current",
		&models.JWTClaims{UserID: "u1", Role: models.RoleTeacher, SchoolID: "school-1"})

	schoolID, err := resolveSchoolID(c, "school-9")
	require.NoError(t, err)
	assert.Equal(t, "school-1", schoolID)
}

func TestParsePageParams(t *testing.T) {
	c := testContext(t, "/academic-sessions?limit=500&page=2",
		&models.JWTClaims{UserID: "u1", Role: models.RoleSystemAdmin})

	pager := parsePageParams(c).Normalize()
	assert.Equal(t, models.MaxPageLimit, pager.Limit)
	assert.Equal(t, models.MaxPageLimit, pager.Offset)
}
