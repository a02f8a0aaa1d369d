package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/builder"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
)

func newPreview(t *testing.T) *Preview {
	t.Helper()
	cfg := &config.Config{Title: "t", BaseDir: t.TempDir()}
	cfg.Dirs.Output = "_site"
	rb := &Rebuilder{
		Build:       func(context.Context) (*builder.Result, error) { return &builder.Result{BuildID: "b1"}, nil },
		TrackedDirs: func() []string { return nil },
	}
	return New(cfg, rb, nil, nil)
}

func getHealth(t *testing.T, p *Preview) (int, healthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	p.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHealthHealthyAfterGoodBuild(t *testing.T) {
	p := newPreview(t)
	p.status.record(&builder.Result{BuildID: "b1"}, nil)

	code, resp := getHealth(t, p)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "b1", resp.LastBuildID)
	assert.Equal(t, 1, resp.Builds)
}

func TestHealthDegradedWhenLatestBuildFailed(t *testing.T) {
	p := newPreview(t)
	p.status.record(&builder.Result{BuildID: "b1"}, nil)
	p.status.record(&builder.Result{BuildID: "b2"}, errors.New("boom"))

	code, resp := getHealth(t, p)
	assert.Equal(t, http.StatusOK, code, "a prior good build still serves")
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "boom", resp.LastError)
}

func TestHealthUnhealthyWithoutAnyGoodBuild(t *testing.T) {
	p := newPreview(t)
	p.status.record(nil, errors.New("boom"))

	code, resp := getHealth(t, p)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", resp.Status)
}

func TestMetricsEndpointOnlyWithRegistry(t *testing.T) {
	p := newPreview(t)
	rec := httptest.NewRecorder()
	p.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	// Without a registry the file server answers (and 404s on a fresh dir).
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
