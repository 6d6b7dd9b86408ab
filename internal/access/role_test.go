package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meetup-ops/backend/internal/models"
)

func TestHasMinimumRoleMatchesRankOrder(t *testing.T) {
	for _, actual := range models.Roles() {
		for _, required := range models.Roles() {
			assert.Equal(t, actual.Rank() >= required.Rank(), HasMinimumRole(actual, required),
				"actual=%s required=%s", actual, required)
		}
	}
}

func TestHasMinimumRoleFailsClosedOnUnknown(t *testing.T) {
	assert.False(t, HasMinimumRole("OWNER", models.RoleViewer))
	assert.False(t, HasMinimumRole("", models.RoleViewer))
	assert.False(t, HasMinimumRole("admin", models.RoleViewer))
	assert.False(t, HasMinimumRole(models.RoleSuperAdmin, "GOD"))
}

func TestRolesAreStrictlyOrdered(t *testing.T) {
	roles := models.Roles()
	for i := 1; i < len(roles); i++ {
		assert.Less(t, roles[i-1].Rank(), roles[i].Rank())
	}
	assert.Equal(t, models.UnknownRoleRank, models.Role("nobody").Rank())
}
