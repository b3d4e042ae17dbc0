package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/seatplan/internal/auth"
	"github.com/MarcoPoloResearchLab/seatplan/internal/plan"
	"github.com/MarcoPoloResearchLab/seatplan/internal/planners"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	planIDContextKey         = "seatplan_plan_id"
	defaultHeartbeatInterval = 25 * time.Second
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingPlanResolver     = errors.New("planner resolver dependency required")
	errMissingPlanService      = errors.New("plan service dependency required")
	errMissingRealtime         = errors.New("realtime dispatcher dependency required")
)

type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

type PlanResolver interface {
	ResolvePlanID(ctx context.Context, claims auth.SessionClaims) (string, error)
}

type Dependencies struct {
	SessionValidator  SessionValidator
	Planners          PlanResolver
	PlanService       *plan.Service
	Realtime          *RealtimeDispatcher
	Logger            *zap.Logger
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Planners == nil {
		return nil, errMissingPlanResolver
	}
	if deps.PlanService == nil {
		return nil, errMissingPlanService
	}
	if deps.Realtime == nil {
		return nil, errMissingRealtime
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		sessions:  deps.SessionValidator,
		planners:  deps.Planners,
		plans:     deps.PlanService,
		realtime:  deps.Realtime,
		logger:    logger,
		heartbeat: heartbeat,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/plan", handler.handleGetPlan)
	protected.GET("/plan/stream", handler.handlePlanStream)
	protected.POST("/plan/moves", handler.handleMoveAttendee)
	protected.POST("/plan/drops", handler.handleDropAttendee)

	protected.POST("/tables", handler.handleCreateTable)
	protected.POST("/tables/presets", handler.handleAddPresets)
	protected.PATCH("/tables/:tableId", handler.handleUpdateTable)
	protected.DELETE("/tables/:tableId", handler.handleDeleteTable)
	protected.GET("/tables/:tableId/layout", handler.handleTableLayout)
	protected.PUT("/tables/:tableId/seats/:seatId", handler.handleAssignSeat)
	protected.DELETE("/tables/:tableId/seats/:seatId", handler.handleUnassignSeat)

	protected.POST("/guests", handler.handleCreateGuest)
	protected.PUT("/guests/:guestId", handler.handleReplaceGuest)
	protected.PATCH("/guests/:guestId/rsvp", handler.handleSetGuestRSVP)
	protected.DELETE("/guests/:guestId", handler.handleDeleteGuest)
	protected.DELETE("/guests/:guestId/companions/:companionId", handler.handleRemoveCompanion)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Last-Event-ID"},
		ExposeHeaders:    []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		config.AllowOrigins = allowedOrigins
	} else {
		config.AllowOriginFunc = func(string) bool { return true }
	}
	return cors.New(config)
}

type httpHandler struct {
	sessions  SessionValidator
	planners  PlanResolver
	plans     *plan.Service
	realtime  *RealtimeDispatcher
	logger    *zap.Logger
	heartbeat time.Duration
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	planID, err := h.planners.ResolvePlanID(c.Request.Context(), claims)
	if err != nil {
		if errors.Is(err, planners.ErrInvalidIdentity) {
			h.logger.Warn("session without usable identity", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.logger.Error("failed to resolve planner plan", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "plan_resolution_failed"})
		return
	}
	c.Set(planIDContextKey, planID)
	c.Next()
}

// NewHTTPServer wraps the handler in an http.Server whose request contexts
// derive from base. Cancelling base ends open plan streams, which
// http.Server.Shutdown does not close on its own.
func NewHTTPServer(address string, handler http.Handler, base context.Context) *http.Server {
	return &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return base
		},
	}
}
