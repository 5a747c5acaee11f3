package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankOrder(t *testing.T) {
	assert.Less(t, RoleViewer.Rank(), RoleOperator.Rank())
	assert.Less(t, RoleOperator.Rank(), RoleAdmin.Rank())
	assert.Equal(t, -1, Role("root").Rank())
}

func TestAuthorizeMatrix(t *testing.T) {
	for _, held := range Roles() {
		for _, required := range Roles() {
			p := Principal{UserID: 1, Username: "u", Role: held}
			want := Denied
			if held.Rank() >= required.Rank() {
				want = Allowed
			}
			assert.Equal(t, want, Authorize(p, required), "held=%s required=%s", held, required)
		}
	}
}

func TestAuthorizeRejectsIncompletePrincipals(t *testing.T) {
	assert.Equal(t, Denied, Authorize(Principal{}, RoleViewer))
	assert.Equal(t, Denied, Authorize(Principal{UserID: 1, Username: "u", Role: "superuser"}, RoleViewer))
	assert.Equal(t, Denied, Authorize(Principal{UserID: 1, Username: "u", Role: RoleAdmin}, Role("")))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Operator ")
	require.NoError(t, err)
	assert.Equal(t, RoleOperator, role)

	_, err = ParseRole("owner")
	assert.Error(t, err)
}
