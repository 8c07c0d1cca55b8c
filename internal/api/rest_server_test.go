package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-levelgen/internal/level"
	"github.com/annel0/mmo-levelgen/internal/storage"
)

// Prometheus-метрики регистрируются в глобальном регистре, поэтому
// REST-сервер создаётся один раз на весь тестовый процесс
var (
	restOnce   sync.Once
	restServer *RestServer
	restErr    error
)

func sharedServer(t *testing.T) *RestServer {
	t.Helper()
	restOnce.Do(func() {
		dir, err := os.MkdirTemp("", "levelgen-rest-test-*")
		if err != nil {
			restErr = err
			return
		}
		store, err := storage.NewLevelStorage(dir)
		if err != nil {
			restErr = err
			return
		}
		svc := NewLevelService(testLayouts(), store, nil, nil)
		restServer = NewRestServer(Config{Port: ":0", Service: svc})
	})
	require.NoError(t, restErr)
	return restServer
}

func doRequest(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	sharedServer(t).Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) GenericResponse {
	t.Helper()
	var resp GenericResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "Тело ответа: %s", rec.Body.String())
	return resp
}

// generateTestLevel создаёт уровень через API и возвращает его идентификатор
func generateTestLevel(t *testing.T) string {
	t.Helper()
	rec := doRequest(t, http.MethodPost, "/api/levels", GenerateRequest{Layout: "tiny"})
	require.Equal(t, http.StatusCreated, rec.Code, "Тело ответа: %s", rec.Body.String())

	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var meta storage.LevelMeta
	require.NoError(t, json.Unmarshal(data, &meta))
	require.NotEmpty(t, meta.ID)
	return meta.ID
}

func TestRest_Health(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRest_Layouts(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/api/layouts", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	assert.Contains(t, rec.Body.String(), "tiny")
}

func TestRest_GenerateValidation(t *testing.T) {
	// Раскладка обязательна
	rec := doRequest(t, http.MethodPost, "/api/levels", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Неизвестная раскладка
	rec = doRequest(t, http.MethodPost, "/api/levels", GenerateRequest{Layout: "no-such"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRest_LevelLifecycle(t *testing.T) {
	id := generateTestLevel(t)

	// Уровень в листинге
	rec := doRequest(t, http.MethodGet, "/api/levels", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)

	// Метаданные и сводка полей
	rec = doRequest(t, http.MethodGet, "/api/levels/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "texture_size")
	assert.Contains(t, rec.Body.String(), "pixel_size")

	// Блоб отдаётся и декодируется
	rec = doRequest(t, http.MethodGet, "/api/levels/"+id+"/blob", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	_, err := level.DecodeLevel(rec.Body.Bytes())
	assert.NoError(t, err, "Блоб из API должен декодироваться")

	// Удаление
	rec = doRequest(t, http.MethodDelete, "/api/levels/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, http.MethodGet, "/api/levels/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "Удалённый уровень не должен находиться")
}

func TestRest_Graph(t *testing.T) {
	id := generateTestLevel(t)

	rec := doRequest(t, http.MethodGet, "/api/levels/"+id+"/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	nodes := data["nodes"].([]any)
	edges := data["edges"].([]any)
	assert.NotEmpty(t, nodes, "Граф должен содержать узлы")
	assert.NotEmpty(t, edges, "Граф должен содержать рёбра")
}

func TestRest_Sample(t *testing.T) {
	id := generateTestLevel(t)

	rec := doRequest(t, http.MethodGet, "/api/levels/"+id+"/sample?x=0&y=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Contains(t, data, "height")
	assert.Contains(t, data, "normal")
	assert.Contains(t, data, "biomes")
	assert.Contains(t, data, "radius")

	biomes := data["biomes"].(map[string]any)
	assert.Len(t, biomes, level.BiomeCount, "Ответ содержит вес каждого биома")

	// Невалидные координаты
	rec = doRequest(t, http.MethodGet, "/api/levels/"+id+"/sample?x=abc&y=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRest_Nearest(t *testing.T) {
	id := generateTestLevel(t)

	rec := doRequest(t, http.MethodGet, "/api/levels/"+id+"/nearest?x=0&y=0&k=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	nodes := resp.Data.(map[string]any)["nodes"].([]any)
	assert.Len(t, nodes, 3)

	// k вне диапазона
	rec = doRequest(t, http.MethodGet, "/api/levels/"+id+"/nearest?x=0&y=0&k=500", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRest_WalkAndPath(t *testing.T) {
	id := generateTestLevel(t)

	rec := doRequest(t, http.MethodGet, "/api/levels/"+id+"/walk?from_x=0&from_y=0&to_x=1&to_y=0&radius=0.1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	_, ok := resp.Data.(map[string]any)["walkable"]
	assert.True(t, ok, "Ответ должен содержать поле walkable")

	// Отрицательный радиус
	rec = doRequest(t, http.MethodGet, "/api/levels/"+id+"/walk?from_x=0&from_y=0&to_x=1&to_y=0&radius=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Путь между существующими узлами
	rec = doRequest(t, http.MethodGet, "/api/levels/"+id+"/path?from=0&to=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeResponse(t, rec)
	path := resp.Data.(map[string]any)["path"].([]any)
	assert.NotEmpty(t, path)

	// Узел вне диапазона
	rec = doRequest(t, http.MethodGet, fmt.Sprintf("/api/levels/%s/path?from=0&to=%d", id, 1<<20), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Нечисловые параметры
	rec = doRequest(t, http.MethodGet, "/api/levels/"+id+"/path?from=a&to=b", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRest_Stats(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Contains(t, data, "server")
	assert.Contains(t, data, "levels")
}

func TestRest_NotFound(t *testing.T) {
	for _, path := range []string{
		"/api/levels/missing-id",
		"/api/levels/missing-id/blob",
		"/api/levels/missing-id/graph",
		"/api/levels/missing-id/sample?x=0&y=0",
	} {
		rec := doRequest(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, "Путь %s должен отвечать 404", path)
	}

	rec := doRequest(t, http.MethodDelete, "/api/levels/missing-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
