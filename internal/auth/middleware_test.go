package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"nutrichat/internal/apiclient"
	"nutrichat/internal/models"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	t.Cleanup(func() { db.Close() })
	svc := NewService(db, nil, time.Hour)

	router := gin.New()
	protected := router.Group("/p", svc.Middleware(), svc.CSRFMiddleware())
	protected.Any("/whoami", func(c *gin.Context) {
		id, ok := IdentityFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, id)
	})
	return router, svc
}

func TestMiddlewareBearer(t *testing.T) {
	router, svc := newTestRouter(t)
	user, err := svc.RegisterUser(context.Background(), "dave", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token, _ := svc.IssueToken(context.Background(), user.ID)

	req := httptest.NewRequest(http.MethodPost, "/p/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var id models.Identity
	_ = json.Unmarshal(rec.Body.Bytes(), &id)
	if id.UserID != user.ID || id.Token != token {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/p/whoami", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/p/whoami", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", rec.Code)
	}
}

func TestCookieAuthNeedsCSRF(t *testing.T) {
	router, svc := newTestRouter(t)
	user, _ := svc.RegisterUser(context.Background(), "erin", "pw")
	token, _ := svc.IssueToken(context.Background(), user.ID)

	newReq := func(method string) *http.Request {
		req := httptest.NewRequest(method, "/p/whoami", nil)
		req.AddCookie(&http.Cookie{Name: svc.AuthCookieName(), Value: token})
		req.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: "csrf-1"})
		return req
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newReq(http.MethodGet))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET with cookie should pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, newReq(http.MethodPost))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("POST without csrf header should be 403, got %d", rec.Code)
	}

	req := newReq(http.MethodPost)
	req.Header.Set(svc.CSRFHeaderName(), "csrf-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST with matching csrf should pass, got %d", rec.Code)
	}
}

func TestClientAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if r.URL.Path != "/api/auth/login" || creds.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(LoginResponse{Token: "tok", User: models.User{ID: 3, Username: creds.Username}})
	}))
	defer srv.Close()

	c := NewClient(apiclient.New(srv.URL, nil))
	id, err := c.Authenticate(context.Background(), "frank", "pw")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id.UserID != 3 || id.Username != "frank" || id.Token != "tok" || !id.Valid() {
		t.Fatalf("unexpected identity %+v", id)
	}
	if _, err := c.Authenticate(context.Background(), "frank", "bad"); !apiclient.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401, got %v", err)
	}
}
