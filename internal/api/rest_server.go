package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/blockverse/internal/auth"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/middleware"
	"github.com/annel0/blockverse/internal/room"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Сколько ждём ответа диспетчера на REST запрос
const lobbyTimeout = 3 * time.Second

// RestServer представляет REST API сервер
type RestServer struct {
	router  *gin.Engine
	lobby   Lobby
	tokens  *auth.TokenIssuer
	metrics *ServerMetrics
	logger  *logging.Logger
}

// Config содержит зависимости REST сервера
type Config struct {
	Lobby    Lobby                // игровое лобби
	Tokens   *auth.TokenIssuer    // nil - админка отвечает 503
	Registry *prometheus.Registry // метрики HTTP и /metrics
	Logger   *logging.Logger
}

// NewRestServer создает REST сервер с middleware и маршрутами
func NewRestServer(config Config) (*RestServer, error) {
	if config.Logger == nil {
		config.Logger = logging.GetAPILogger()
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("rest_api"))
	router.Use(middleware.NewRequestLogger(config.Logger).Handler())

	promMw, err := middleware.NewPrometheusMiddleware("rest_api", config.Registry)
	if err != nil {
		return nil, err
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Registry)

	rs := &RestServer{
		router:  router,
		lobby:   config.Lobby,
		tokens:  config.Tokens,
		metrics: NewServerMetrics(),
		logger:  config.Logger,
	}
	rs.setupRoutes()
	return rs, nil
}

// Router отдаёт gin.Engine, чтобы сервер мог повесить на него /ws
func (rs *RestServer) Router() *gin.Engine {
	return rs.router
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	{
		api.GET("/rooms", rs.handleListRooms)
		api.GET("/rooms/:id", rs.handleGetRoom)
		api.GET("/stats", rs.handleStats)
	}

	admin := api.Group("/admin")
	admin.Use(rs.jwtMiddleware(), rs.adminMiddleware())
	{
		admin.DELETE("/rooms/:id", rs.handleCloseRoom)
	}
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (rs *RestServer) lobbyContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), lobbyTimeout)
}

// fail переводит ошибку лобби в HTTP ответ
func (rs *RestServer) fail(c *gin.Context, err error) {
	if errors.Is(err, room.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Комната не найдена",
		})
		return
	}

	rs.logger.Error("Ошибка обращения к лобби: %v", err)
	c.JSON(http.StatusServiceUnavailable, GenericResponse{
		Success: false,
		Message: "Игровой сервер недоступен",
	})
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": rs.metrics.GetUptime(),
	})
}

// handleListRooms возвращает список комнат
func (rs *RestServer) handleListRooms(c *gin.Context) {
	ctx, cancel := rs.lobbyContext(c)
	defer cancel()

	rooms, err := rs.lobby.ListRooms(ctx)
	if err != nil {
		rs.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список комнат",
		Data:    rooms,
	})
}

// handleGetRoom возвращает подробности одной комнаты
func (rs *RestServer) handleGetRoom(c *gin.Context) {
	ctx, cancel := rs.lobbyContext(c)
	defer cancel()

	info, err := rs.lobby.RoomInfo(ctx, c.Param("id"))
	if err != nil {
		rs.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Комната",
		Data:    info,
	})
}

// handleStats возвращает статистику сервера
func (rs *RestServer) handleStats(c *gin.Context) {
	ctx, cancel := rs.lobbyContext(c)
	defer cancel()

	online, err := rs.lobby.Online(ctx)
	if err != nil {
		rs.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data: gin.H{
			"online": online,
			"server": rs.metrics.Snapshot(),
		},
	})
}

// handleCloseRoom закрывает комнату: участники получают error и
// остаются в лобби
func (rs *RestServer) handleCloseRoom(c *gin.Context) {
	ctx, cancel := rs.lobbyContext(c)
	defer cancel()

	id := c.Param("id")
	if err := rs.lobby.CloseRoom(ctx, id); err != nil {
		rs.fail(c, err)
		return
	}

	claims, _ := c.Get(claimsKey)
	if cl, ok := claims.(*auth.Claims); ok {
		rs.logger.Info("🔨 Комната %s закрыта администратором %s", id, cl.Subject)
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Комната закрыта",
	})
}
