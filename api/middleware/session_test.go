package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mealkart/cartsync-backend/pkg/auth"
	"github.com/mealkart/cartsync-backend/pkg/config"
)

var testJWT = config.JWTConfig{Secret: "test-secret", Issuer: "mealkart-auth"}

func runSession(t *testing.T, req *http.Request) (auth.Session, *httptest.ResponseRecorder) {
	t.Helper()
	var captured auth.Session
	handler := Session(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = SessionFromContext(r.Context())
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return captured, resp
}

func TestSessionGuestFromHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("X-Guest-Session", "guest-123")

	session, resp := runSession(t, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if session.ID != "guest-123" || session.Authenticated() {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestSessionGuestFromCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: "mk_guest_session", Value: "cookie-456"})

	session, _ := runSession(t, req)
	if session.ID != "cookie-456" {
		t.Fatalf("unexpected session id %q", session.ID)
	}
}

func TestSessionMintsGuestIDWhenAbsent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)

	session, resp := runSession(t, req)
	if session.ID == "" {
		t.Fatalf("expected a minted guest id")
	}

	cookies := resp.Result().Cookies()
	found := false
	for _, cookie := range cookies {
		if cookie.Name == "mk_guest_session" && cookie.Value == session.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("minted guest id must be set as a cookie, got %v", cookies)
	}
}

func TestSessionAuthenticatedFromBearer(t *testing.T) {
	token, err := auth.MintAccessToken(testJWT, time.Now(), "user-42", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("X-Guest-Session", "guest-123")
	req.Header.Set("Authorization", "Bearer "+token)

	session, resp := runSession(t, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !session.Authenticated() || session.UserID != "user-42" {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.Key() != "user:user-42" {
		t.Fatalf("unexpected key %q", session.Key())
	}
}

func TestSessionRejectsMalformedBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer garbage")

	_, resp := runSession(t, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("malformed token must be rejected, got %d", resp.Code)
	}
}

func TestSessionFromContextDefault(t *testing.T) {
	session := SessionFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if session.ID != "" || session.Authenticated() {
		t.Fatalf("expected zero session, got %+v", session)
	}
}
