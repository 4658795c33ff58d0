package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"optionsengine/src/model"
	"optionsengine/src/security"
)

type fakeUserFinder struct {
	users   map[uint]*model.User
	byEmail map[string]*model.User
	err     error
}

func (f *fakeUserFinder) FindByID(_ context.Context, id uint) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

func (f *fakeUserFinder) FindByEmail(_ context.Context, email string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byEmail[email], nil
}

func userWithPassword(t *testing.T, id uint, email, password string) *model.User {
	t.Helper()
	user := &model.User{ID: id, Email: email}
	if err := user.SetPassword(password); err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	return user
}

func testSecurityConfig(apiKey string) security.Config {
	return security.Config{
		APIKey:       apiKey,
		UserIDHeader: "X-User-ID",
		APIKeyHeader: "X-API-Key",
	}
}

func nextHandler(captured **model.User) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := GetUserFromContext(r.Context()); ok {
			*captured = user
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareResolvesUser(t *testing.T) {
	finder := &fakeUserFinder{users: map[uint]*model.User{7: {ID: 7, Email: "trader@example.com"}}}
	var captured *model.User
	handler := Middleware(testSecurityConfig(""), finder)(nextHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	req.Header.Set("X-User-ID", "7")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured == nil || captured.ID != 7 {
		t.Fatalf("expected user 7 in context, got %+v", captured)
	}
}

func TestMiddlewarePassesThroughWithoutHeader(t *testing.T) {
	var captured *model.User
	handler := Middleware(testSecurityConfig(""), &fakeUserFinder{})(nextHandler(&captured))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured != nil {
		t.Fatalf("expected no user in context, got %+v", captured)
	}
}

func TestMiddlewareResolvesBasicAuth(t *testing.T) {
	finder := &fakeUserFinder{byEmail: map[string]*model.User{
		"trader@example.com": userWithPassword(t, 7, "trader@example.com", "hunter2"),
	}}
	var captured *model.User
	handler := Middleware(testSecurityConfig(""), finder)(nextHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	req.SetBasicAuth("trader@example.com", "hunter2")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured == nil || captured.ID != 7 {
		t.Fatalf("expected user 7 in context, got %+v", captured)
	}
}

func TestMiddlewareRejectsWrongPassword(t *testing.T) {
	finder := &fakeUserFinder{byEmail: map[string]*model.User{
		"trader@example.com": userWithPassword(t, 7, "trader@example.com", "hunter2"),
	}}
	handler := Middleware(testSecurityConfig(""), finder)(nextHandler(new(*model.User)))

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	req.SetBasicAuth("trader@example.com", "wrong")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestMiddlewareRejectsUnknownEmail(t *testing.T) {
	handler := Middleware(testSecurityConfig(""), &fakeUserFinder{})(nextHandler(new(*model.User)))

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	req.SetBasicAuth("ghost@example.com", "hunter2")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestMiddlewareRejectsBadAPIKey(t *testing.T) {
	handler := Middleware(testSecurityConfig("secret"), &fakeUserFinder{})(nextHandler(new(*model.User)))

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	req.Header.Set("X-API-Key", "wrong")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestMiddlewareAcceptsGoodAPIKey(t *testing.T) {
	handler := Middleware(testSecurityConfig("secret"), &fakeUserFinder{})(nextHandler(new(*model.User)))

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	req.Header.Set("X-API-Key", "secret")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestMiddlewareRejectsUnknownUser(t *testing.T) {
	handler := Middleware(testSecurityConfig(""), &fakeUserFinder{})(nextHandler(new(*model.User)))

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	req.Header.Set("X-User-ID", "99")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestMiddlewareRejectsMalformedUserID(t *testing.T) {
	handler := Middleware(testSecurityConfig(""), &fakeUserFinder{})(nextHandler(new(*model.User)))

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	req.Header.Set("X-User-ID", "abc")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestMiddlewareSurfacesLookupFailure(t *testing.T) {
	handler := Middleware(testSecurityConfig(""), &fakeUserFinder{err: errors.New("db down")})(nextHandler(new(*model.User)))

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	req.Header.Set("X-User-ID", "7")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}
