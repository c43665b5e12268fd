package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeChecker struct {
	err error
}

func (f fakeChecker) Health(ctx context.Context) error { return f.err }

func newHealthRouter(tel, crmErr error, authMW gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerRoutes(r, routeDeps{
		authMW:    authMW,
		telephony: fakeChecker{err: tel},
		crm:       fakeChecker{err: crmErr},
	})
	return r
}

func passThrough(c *gin.Context) { c.Next() }

func getAdminHealth(t *testing.T, r *gin.Engine) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/health", nil)
	r.ServeHTTP(w, req)
	var body map[string]string
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return w, body
}

func TestAdminHealth_AllProvidersUp(t *testing.T) {
	r := newHealthRouter(nil, nil, passThrough)

	w, body := getAdminHealth(t, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body["telephony"] != "ok" || body["crm"] != "ok" {
		t.Fatalf("body = %v, want both ok", body)
	}
}

func TestAdminHealth_ProviderDown(t *testing.T) {
	r := newHealthRouter(errors.New("zadarma auth failed: wrong key"), nil, passThrough)

	w, body := getAdminHealth(t, r)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if body["telephony"] == "ok" {
		t.Fatalf("telephony reported ok despite failing probe")
	}
	if body["crm"] != "ok" {
		t.Fatalf("crm = %q, want ok", body["crm"])
	}
}

func TestAdminHealth_RequiresOpsToken(t *testing.T) {
	reject := func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
	}
	r := newHealthRouter(nil, nil, reject)

	w, _ := getAdminHealth(t, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
