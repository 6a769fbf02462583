package rbac

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumora-sms/lumora/internal/shared"
	_ "github.com/lumora-sms/lumora/internal/testing/guard"
)

type fakeChecker struct {
	grants map[int64][]string
}

func (f *fakeChecker) HasCapability(_ context.Context, userID int64, capability string) (bool, error) {
	for _, c := range f.grants[userID] {
		if c == capability {
			return true, nil
		}
	}
	return false, nil
}

func serveWith(t *testing.T, mw func(http.Handler) http.Handler, actor shared.Actor) *httptest.ResponseRecorder {
	t.Helper()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if actor.Known() {
		req = req.WithContext(shared.ContextWithActor(req.Context(), actor))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRequireUser(t *testing.T) {
	mw := Middleware{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	rec := serveWith(t, mw.RequireUser, shared.Actor{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serveWith(t, mw.RequireUser, shared.Actor{UserID: 3, SchoolCode: "GHS"})
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireCapability(t *testing.T) {
	checker := &fakeChecker{grants: map[int64][]string{
		5: {shared.CapFinanceManage},
	}}
	mw := Middleware{Service: checker, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	guard := mw.RequireCapability(shared.CapFinanceManage)

	rec := serveWith(t, guard, shared.Actor{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serveWith(t, guard, shared.Actor{UserID: 4, SchoolCode: "GHS"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serveWith(t, guard, shared.Actor{UserID: 5, SchoolCode: "GHS"})
	require.Equal(t, http.StatusNoContent, rec.Code)
}
