package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func testContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, rec
}

func TestGetIdentity_UnauthenticatedWithoutContextValues(t *testing.T) {
	c, _ := testContext()

	if GetIdentity(c).IsAuthenticated() {
		t.Fatal("expected unauthenticated identity")
	}
}

func TestMustGetIdentity_AbortsWhenMissing(t *testing.T) {
	c, rec := testContext()

	if id := MustGetIdentity(c); id != nil {
		t.Fatalf("expected nil identity, got %v", id)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMustGetIdentity_ReturnsUserAndRoles(t *testing.T) {
	c, _ := testContext()
	userID := uuid.New()
	c.Set(ContextUserIDKey, userID)
	c.Set(ContextRolesKey, []string{"agent"})

	id := MustGetIdentity(c)
	if id == nil || id.UserID() != userID {
		t.Fatalf("identity not extracted: %v", id)
	}
	if !id.HasRole("agent") || id.HasRole("admin") {
		t.Fatalf("roles wrong: %v", id.Roles())
	}
}

func TestRequireRole_AllowsAndRejects(t *testing.T) {
	c, _ := testContext()
	c.Set(ContextRolesKey, []string{"agent"})
	RequireRole("agent")(c)
	if c.IsAborted() {
		t.Fatal("matching role rejected")
	}

	c2, rec2 := testContext()
	c2.Set(ContextRolesKey, []string{"viewer"})
	RequireRole("agent")(c2)
	if !c2.IsAborted() || rec2.Code != http.StatusForbidden {
		t.Fatalf("missing role not rejected: aborted=%v code=%d", c2.IsAborted(), rec2.Code)
	}
}
