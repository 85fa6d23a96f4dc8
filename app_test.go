package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giygas/cureid-api/caseparser/entities"
	"github.com/giygas/cureid-api/config"
)

const ibuprofenCases = `[
	{"id": 1, "age": "30 - 39 years", "sex": "male", "country_treated": "USA", "outcome": "better",
	 "outcome_computed": "improved", "began_treatment_year": "2020", "pub_year": 2020,
	 "regimens": [{"drug": {"id": 42, "name": "ibuprofen"}}]},
	{"id": 2, "age": "<1 year", "sex": "female", "country_treated": "USA", "outcome": "worse",
	 "outcome_computed": "deteriorated", "began_treatment_year": "", "pub_year": 2021,
	 "regimens": [{"drug": {"id": 42, "name": "ibuprofen"}}]}
]`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "covid-42-ibuprofen.json"), []byte(ibuprofenCases), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("not a case file"), 0o644))

	return &config.Config{
		Port:                  "0",
		Address:               "127.0.0.1",
		Env:                   config.EnvTest,
		MaxRequestBody:        1024,
		MaxHeaderSize:         4096,
		StoreBackend:          config.StoreMemory,
		BlobSource:            config.BlobSourceDir,
		RawFilesDir:           dir,
		IngestIntervalMinutes: 60,
		IngestWorkers:         2,
	}
}

func get(t *testing.T, h http.Handler, target string, out any) int {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	if out != nil && rr.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out))
	}
	return rr.Code
}

func TestApplicationIngestsAndServes(t *testing.T) {
	ctx := context.Background()
	app, err := newApplication(ctx, testConfig(t))
	require.NoError(t, err)
	defer app.close()

	require.NoError(t, app.start(ctx))

	status := app.scheduler.Status()
	assert.Equal(t, 1, status.FilesProcessed)
	assert.Zero(t, status.FilesFailed)

	router := app.server.Router()

	var aggregates []entities.AggregateResult
	require.Equal(t, http.StatusOK, get(t, router, "/api/drugs?age=35&gender=Male", &aggregates))
	assert.Equal(t, []entities.AggregateResult{
		{DrugName: "ibuprofen", DrugID: 42, Improved: 1},
	}, aggregates)

	var regimens []entities.RegimenResult
	require.Equal(t, http.StatusOK, get(t, router, "/api/regimens?drugId=42&age=0&gender=female", &regimens))
	require.Len(t, regimens, 1)
	assert.Equal(t, 2, regimens[0].RegimenID)

	assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/drugs?age=abc&gender=male", nil))
	assert.Equal(t, http.StatusOK, get(t, router, "/health", nil))
}

func TestApplicationRejectsMissingRawFilesDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.RawFilesDir = filepath.Join(t.TempDir(), "missing")

	_, err := newApplication(context.Background(), cfg)
	assert.Error(t, err)
}
