package auth

import (
	"context"

	"github.com/mind-engage/labeld/internal/session"
)

type ctxKey string

const (
	ctxKeySub     ctxKey = "sub"
	ctxKeySession ctxKey = "session"
)

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKeySub, sub)
}

func SubjectFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeySub); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func WithSession(ctx context.Context, rec session.Record) context.Context {
	return context.WithValue(ctx, ctxKeySession, rec)
}

func SessionFromContext(ctx context.Context) (session.Record, bool) {
	rec, ok := ctx.Value(ctxKeySession).(session.Record)
	return rec, ok
}
