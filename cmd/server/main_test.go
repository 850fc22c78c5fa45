package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"geotiles/internal/geo"
)

func TestLoadMask(t *testing.T) {
	proj := geo.NewMercator(0)

	mask, err := loadMask(proj, "", 12)
	if err != nil || mask != nil {
		t.Fatalf("Expected no mask for empty bbox, got %v, %v", mask, err)
	}

	mask, err = loadMask(proj, "42.2, -71.2, 42.5, -70.9", 12)
	if err != nil {
		t.Fatalf("loadMask failed: %v", err)
	}
	if mask.Level() != 12 {
		t.Errorf("Expected level 12, got %d", mask.Level())
	}
	if !mask.Allows(proj, 42.36, -71.06) {
		t.Error("Expected Boston inside the geofence")
	}
	if mask.Allows(proj, 47.6, -122.3) {
		t.Error("Expected Seattle outside the geofence")
	}

	// Swapped corners describe the same box
	mask, err = loadMask(proj, "42.5,-70.9,42.2,-71.2", 12)
	if err != nil {
		t.Fatalf("loadMask failed: %v", err)
	}
	if !mask.Allows(proj, 42.36, -71.06) {
		t.Error("Expected Boston inside the geofence with swapped corners")
	}

	mask, err = loadMask(proj, "0,0,1,1", 40)
	if err != nil || mask.Level() != geo.MaxLevelOfDetail {
		t.Errorf("Expected level clamped to %d, got %v, %v", geo.MaxLevelOfDetail, mask, err)
	}

	for _, bad := range []string{"1,2,3", "a,b,c,d"} {
		if _, err := loadMask(proj, bad, 12); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestCorsMiddleware(t *testing.T) {
	called := false
	h := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/markers", nil))
	if w.Code != http.StatusOK || called {
		t.Errorf("Expected preflight to be answered directly, got %d (called=%v)", w.Code, called)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Missing Access-Control-Allow-Origin")
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/project", nil))
	if !called {
		t.Error("Expected GET to reach the handler")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("GEOTILES_TEST_INT", "42")
	t.Setenv("GEOTILES_TEST_BAD", "nope")
	t.Setenv("GEOTILES_TEST_FLOAT", "1.5")
	t.Setenv("GEOTILES_TEST_BOOL", "true")

	if got := getEnvInt("GEOTILES_TEST_INT", 1); got != 42 {
		t.Errorf("getEnvInt = %d, want 42", got)
	}
	if got := getEnvInt("GEOTILES_TEST_BAD", 7); got != 7 {
		t.Errorf("getEnvInt with bad value = %d, want default 7", got)
	}
	if got := getEnvFloat("GEOTILES_TEST_FLOAT", 0); got != 1.5 {
		t.Errorf("getEnvFloat = %v, want 1.5", got)
	}
	if got := getEnvBool("GEOTILES_TEST_BOOL", false); !got {
		t.Error("getEnvBool = false, want true")
	}
	if got := getEnv("GEOTILES_TEST_UNSET", "default"); got != "default" {
		t.Errorf("getEnv = %q, want default", got)
	}
}
