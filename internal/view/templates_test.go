package view

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/simdesk/internal/rbac"
	"github.com/odyssey-erp/simdesk/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderStatusSetsHeadersBeforeBody(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.RenderStatus(rec, 400, "pages/login.html", TemplateData{
		Title: "Sign in",
		Flash: &shared.FlashMessage{Kind: "error", Message: "nope"},
		Data: struct {
			Form   struct{ Username string }
			Errors map[string]string
		}{Errors: map[string]string{"general": "Invalid username or password"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 400, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Invalid username or password")
	assert.Contains(t, body, "flash-error")
	assert.NotContains(t, body, "Sign out")
}

func TestNavReflectsRole(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	render := func(role rbac.Role) string {
		rec := httptest.NewRecorder()
		data := TemplateData{
			Title:       "Dashboard",
			CurrentPath: "/dashboard",
			Principal:   rbac.Principal{UserID: 1, Username: "sam", Role: role},
			Data: struct {
				Stats struct {
					Total, Active int64
					Recent        []struct{}
				}
			}{},
		}
		require.NoError(t, engine.Render(rec, "pages/dashboard.html", data))
		return rec.Body.String()
	}

	viewerPage := render(rbac.RoleViewer)
	assert.Contains(t, viewerPage, "sam (Viewer)")
	assert.False(t, strings.Contains(viewerPage, `href="/sims/add"`))

	operatorPage := render(rbac.RoleOperator)
	assert.Contains(t, operatorPage, `href="/sims/add"`)
}

func TestPageCollectsSessionState(t *testing.T) {
	sess := &shared.Session{ID: "abc"}
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "saved"})
	rbac.StorePrincipal(sess, rbac.Principal{UserID: 4, Username: "ops", Role: rbac.RoleOperator})

	req := httptest.NewRequest("GET", "/sims", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	data := Page(req, shared.NewCSRFManager("secret"), "SIM cards", nil)
	assert.Equal(t, "SIM cards", data.Title)
	assert.Equal(t, "/sims", data.CurrentPath)
	assert.NotEmpty(t, data.CSRFToken)
	require.NotNil(t, data.Flash)
	assert.Equal(t, "saved", data.Flash.Message)
	assert.Equal(t, "ops", data.Principal.Username)
	assert.Nil(t, sess.PopFlash())
}

