package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecker_DefaultPolicy(t *testing.T) {
	c := NewChecker(nil)

	assert.True(t, c.Has(RoleAnnotator, "dataset:list"))
	assert.True(t, c.Has(RoleAnnotator, "labeling:submit"))
	assert.False(t, c.Has(RoleAnnotator, "dataset:create"))
	assert.False(t, c.Has(RoleAnnotator, "wizard:use"))
	assert.True(t, c.Has(RoleAdmin, "wizard:export"))
	assert.False(t, c.Has("guest", "dataset:list"))

	assert.True(t, c.Any(RoleAnnotator, "wizard:use", "labeling:open"))
	assert.True(t, c.All(RoleAnnotator, "labeling:open", "labeling:answer"))
	assert.False(t, c.All(RoleAnnotator, "labeling:open", "answers:export"))
}

func TestRequire(t *testing.T) {
	h := Require("answers:export")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, want := range map[string]int{
		"":            http.StatusForbidden,
		RoleAnnotator: http.StatusForbidden,
		RoleAdmin:     http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithRole(context.Background(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}

func TestChecker_Granted(t *testing.T) {
	c := NewChecker(nil)
	assert.Equal(t, []string{"dataset:list", "labeling:answer", "labeling:open", "labeling:submit"}, c.Granted(RoleAnnotator))
	assert.Len(t, c.Granted(RoleAdmin), len(Known))
	assert.Empty(t, c.Granted("nobody"))
}

func TestChecker_CustomPolicy(t *testing.T) {
	c := NewChecker(map[string][]string{"reviewer": {"answers:*", "dataset:list"}})
	assert.True(t, c.Has("reviewer", "answers:export"))
	assert.False(t, c.Has("reviewer", "dataset:edit"))
	assert.False(t, c.Has(RoleAdmin, "dataset:edit"))
}
