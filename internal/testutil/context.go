package testutil

import (
	"context"
	"net/http"

	"github.com/mind-engage/labeld/internal/dataset"
)

func contextWithUser(r *http.Request, u dataset.User) context.Context {
	return context.WithValue(r.Context(), ctxUser{}, u)
}
