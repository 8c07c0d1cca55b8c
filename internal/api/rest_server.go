package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/mmo-levelgen/internal/level"
	"github.com/annel0/mmo-levelgen/internal/middleware"
	"github.com/annel0/mmo-levelgen/internal/storage"
	"github.com/annel0/mmo-levelgen/internal/vec"
)

// RestServer представляет REST API сервер генерации уровней
type RestServer struct {
	router  *gin.Engine
	service *LevelService
	port    string
	metrics *ServerMetrics
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port    string        // порт для запуска сервера
	Service *LevelService // сервис уровней
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8080"
	}

	// Устанавливаем режим релиза для gin
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	loggerMw := middleware.NewRequestLogger()
	router.Use(loggerMw.Handler())

	router.Use(otelgin.Middleware("levelgen_api"))

	promMw := middleware.NewPrometheusMiddleware("levelgen_api")
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	server := &RestServer{
		router:  router,
		service: config.Service,
		port:    config.Port,
		metrics: NewServerMetrics(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := rs.router.Group("/api")
	{
		api.GET("/layouts", rs.handleGetLayouts)

		api.POST("/levels", rs.handleGenerateLevel)
		api.GET("/levels", rs.handleListLevels)
		api.GET("/levels/:id", rs.handleGetLevel)
		api.DELETE("/levels/:id", rs.handleDeleteLevel)

		api.GET("/levels/:id/blob", rs.handleGetLevelBlob)
		api.GET("/levels/:id/graph", rs.handleGetLevelGraph)
		api.GET("/levels/:id/sample", rs.handleSampleLevel)
		api.GET("/levels/:id/nearest", rs.handleNearestNodes)
		api.GET("/levels/:id/walk", rs.handleCanWalk)
		api.GET("/levels/:id/path", rs.handlePath)

		api.GET("/stats", rs.handleStats)
	}

	// Health check
	rs.router.GET("/health", rs.handleHealth)
}

// GenerateRequest представляет запрос на генерацию уровня
type GenerateRequest struct {
	Layout string   `json:"layout" binding:"required"`
	Seed   *int64   `json:"seed,omitempty"`
	Scale  *float64 `json:"scale,omitempty"`
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// handleGetLayouts возвращает имена доступных раскладок
func (rs *RestServer) handleGetLayouts(c *gin.Context) {
	layouts := rs.service.Layouts()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список раскладок",
		Data: map[string]interface{}{
			"layouts": layouts,
			"total":   len(layouts),
		},
	})
}

// handleGenerateLevel генерирует уровень по именованной раскладке
func (rs *RestServer) handleGenerateLevel(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса: " + err.Error(),
		})
		return
	}

	meta, err := rs.service.Generate(c.Request.Context(), req.Layout, req.Seed, req.Scale)
	if errors.Is(err, ErrLayoutNotFound) {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: fmt.Sprintf("Раскладка %q не найдена", req.Layout),
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка генерации уровня: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Уровень сгенерирован",
		Data:    meta,
	})
}

// handleListLevels возвращает метаданные всех сохранённых уровней
func (rs *RestServer) handleListLevels(c *gin.Context) {
	metas, err := rs.service.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка листинга уровней: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список уровней",
		Data: map[string]interface{}{
			"levels": metas,
			"total":  len(metas),
		},
	})
}

// handleGetLevel возвращает метаданные уровня и сводку по его полям
func (rs *RestServer) handleGetLevel(c *gin.Context) {
	id := c.Param("id")

	meta, err := rs.service.GetMeta(id)
	if rs.abortLevelError(c, id, err) {
		return
	}

	lvl, err := rs.service.Get(c.Request.Context(), id)
	if rs.abortLevelError(c, id, err) {
		return
	}

	bounds := lvl.Bounds()
	texSize := lvl.TextureSize()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Уровень найден",
		Data: map[string]interface{}{
			"meta": meta,
			"bounds": map[string]interface{}{
				"min": []float64{bounds.Min.X, bounds.Min.Y},
				"max": []float64{bounds.Max.X, bounds.Max.Y},
			},
			"texture_size": []int{texSize.X, texSize.Y},
			"pixel_size":   lvl.PixelSize(),
		},
	})
}

// handleDeleteLevel удаляет уровень
func (rs *RestServer) handleDeleteLevel(c *gin.Context) {
	id := c.Param("id")

	err := rs.service.Delete(c.Request.Context(), id)
	if rs.abortLevelError(c, id, err) {
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Уровень удалён",
	})
}

// handleGetLevelBlob отдаёт сжатый бинарный блоб уровня
func (rs *RestServer) handleGetLevelBlob(c *gin.Context) {
	id := c.Param("id")

	blob, err := rs.service.GetBlob(c.Request.Context(), id)
	if rs.abortLevelError(c, id, err) {
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.lvl", id))
	c.Data(http.StatusOK, "application/octet-stream", blob)
}

// handleGetLevelGraph возвращает узлы и рёбра глобального графа
func (rs *RestServer) handleGetLevelGraph(c *gin.Context) {
	id := c.Param("id")

	lvl, err := rs.service.Get(c.Request.Context(), id)
	if rs.abortLevelError(c, id, err) {
		return
	}

	points := lvl.Points()
	nodes := make([][]float64, len(points))
	for i, p := range points {
		nodes[i] = []float64{p.X, p.Y}
	}

	edges := lvl.Edges()
	edgeList := make([]map[string]interface{}, len(edges))
	for i, e := range edges {
		edgeList[i] = map[string]interface{}{
			"a":      e.A,
			"b":      e.B,
			"weight": e.Weight,
		}
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Граф уровня",
		Data: map[string]interface{}{
			"nodes": nodes,
			"edges": edgeList,
		},
	})
}

// handleSampleLevel возвращает высоту, нормаль и биомы в мировой точке
func (rs *RestServer) handleSampleLevel(c *gin.Context) {
	id := c.Param("id")

	pos, ok := rs.queryPoint(c, "x", "y")
	if !ok {
		return
	}

	lvl, err := rs.service.Get(c.Request.Context(), id)
	if rs.abortLevelError(c, id, err) {
		return
	}

	sample := lvl.Biome(pos)
	weights := make(map[string]float64, level.BiomeCount)
	for i, w := range sample.Weights {
		weights[level.Biome(i).String()] = w
	}
	normal := lvl.Normal2D(pos)

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Выборка полей",
		Data: map[string]interface{}{
			"height": lvl.Height(pos),
			"normal": []float64{normal.X, normal.Y},
			"biomes": weights,
			"radius": sample.Radius,
		},
	})
}

// handleNearestNodes возвращает k ближайших узлов графа к точке
func (rs *RestServer) handleNearestNodes(c *gin.Context) {
	id := c.Param("id")

	pos, ok := rs.queryPoint(c, "x", "y")
	if !ok {
		return
	}
	k, err := strconv.Atoi(c.DefaultQuery("k", "1"))
	if err != nil || k < 1 || k > 100 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Параметр k должен быть в диапазоне 1..100",
		})
		return
	}

	lvl, err := rs.service.Get(c.Request.Context(), id)
	if rs.abortLevelError(c, id, err) {
		return
	}

	ids := lvl.NearestTerrainIDs(k, pos)
	nodes := make([]map[string]interface{}, len(ids))
	for i, nodeID := range ids {
		p := lvl.Point(nodeID)
		nodes[i] = map[string]interface{}{
			"id":       nodeID,
			"position": []float64{p.X, p.Y},
		}
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Ближайшие узлы",
		Data:    map[string]interface{}{"nodes": nodes},
	})
}

// handleCanWalk проверяет проходимость прямого отрезка
func (rs *RestServer) handleCanWalk(c *gin.Context) {
	id := c.Param("id")

	from, ok := rs.queryPoint(c, "from_x", "from_y")
	if !ok {
		return
	}
	to, ok := rs.queryPoint(c, "to_x", "to_y")
	if !ok {
		return
	}
	radius, err := strconv.ParseFloat(c.DefaultQuery("radius", "0.5"), 64)
	if err != nil || radius < 0 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Параметр radius должен быть неотрицательным числом",
		})
		return
	}

	lvl, err := rs.service.Get(c.Request.Context(), id)
	if rs.abortLevelError(c, id, err) {
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Проверка проходимости",
		Data: map[string]interface{}{
			"walkable": lvl.CanWalk(from, to, radius),
		},
	})
}

// handlePath ищет путь между узлами графа
func (rs *RestServer) handlePath(c *gin.Context) {
	id := c.Param("id")

	from, err1 := strconv.Atoi(c.Query("from"))
	to, err2 := strconv.Atoi(c.Query("to"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Параметры from и to должны быть идентификаторами узлов",
		})
		return
	}

	lvl, err := rs.service.Get(c.Request.Context(), id)
	if rs.abortLevelError(c, id, err) {
		return
	}

	path, err := lvl.Path(from, to)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, GenericResponse{
			Success: false,
			Message: "Путь не найден: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Путь найден",
		Data:    map[string]interface{}{"path": path},
	})
}

// handleStats возвращает статистику сервера
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	if metas, err := rs.service.List(); err == nil {
		var totalBytes int
		for _, m := range metas {
			totalBytes += m.BlobSize
		}
		stats["levels"] = map[string]interface{}{
			"total":       len(metas),
			"total_bytes": totalBytes,
		}
	}

	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, _ := rs.metrics.GetCPUUsage()
	systemCPU, _ := rs.metrics.GetSystemCPUUsage()

	stats["server"] = map[string]interface{}{
		"uptime":      rs.metrics.GetUptime(),
		"memory_mb":   fmt.Sprintf("%.2f", memoryMB),
		"cpu_percent": fmt.Sprintf("%.2f", cpuPercent),
		"system_cpu":  fmt.Sprintf("%.2f", systemCPU),
		"server_time": time.Now().Unix(),
	}

	stats["memory_details"] = rs.metrics.GetDetailedMemoryStats()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// queryPoint читает пару float-параметров запроса как мировую точку
func (rs *RestServer) queryPoint(c *gin.Context, xName, yName string) (vec.Vec2Float, bool) {
	x, err1 := strconv.ParseFloat(c.Query(xName), 64)
	y, err2 := strconv.ParseFloat(c.Query(yName), 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: fmt.Sprintf("Параметры %s и %s должны быть числами", xName, yName),
		})
		return vec.Vec2Float{}, false
	}
	return vec.Vec2Float{X: x, Y: y}, true
}

// abortLevelError отвечает 404/500 при ошибке доступа к уровню
func (rs *RestServer) abortLevelError(c *gin.Context, id string, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, storage.ErrLevelNotFound) {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: fmt.Sprintf("Уровень %s не найден", id),
		})
		return true
	}
	c.JSON(http.StatusInternalServerError, GenericResponse{
		Success: false,
		Message: "Внутренняя ошибка сервера: " + err.Error(),
	})
	return true
}

// Start запускает REST сервер
func (rs *RestServer) Start() error {
	return rs.router.Run(rs.port)
}

// Handler возвращает http.Handler роутера (для тестов)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}
