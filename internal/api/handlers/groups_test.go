package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/your-org/snapvault/internal/models"
)

// The shared membership guard rejects a malformed group id before any
// store lookup happens.
func TestRequireMembershipInvalidGroupID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

	group, member, ok := requireMembership(c, nil)

	assert.False(t, ok)
	assert.Nil(t, group)
	assert.Nil(t, member)
	assert.Equal(t, 400, w.Code)
}

func TestGroupResponseInviteCodeVisibility(t *testing.T) {
	g := &models.Group{
		ID:         uuid.New(),
		Name:       "family",
		CreatorID:  uuid.New(),
		InviteCode: "ABC123",
		IsActive:   true,
	}

	cases := []struct {
		name     string
		roleID   int
		wantCode string
	}{
		{"owner sees invite code", models.RoleOwner, "ABC123"},
		{"admin sees invite code", models.RoleAdmin, "ABC123"},
		{"contributor does not", models.RoleContributor, ""},
		{"viewer does not", models.RoleViewer, ""},
		{"restricted viewer does not", models.RoleRestrictedViewer, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := groupResponse(g, tc.roleID)
			assert.Equal(t, tc.wantCode, resp.InviteCode)
			assert.Equal(t, tc.roleID, resp.RoleID)
		})
	}
}
