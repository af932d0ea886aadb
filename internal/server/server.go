package server

import (
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/finclear/oms/internal/admission"
	"github.com/finclear/oms/internal/orders"
	"github.com/finclear/oms/pkg/errors"
	"github.com/finclear/oms/pkg/models"
)

// Server represents the HTTP server
type Server struct {
	logger    *zap.Logger
	ordersSvc orders.Service
	detector  *admission.Detector
}

// NewServer creates a new HTTP server
func NewServer(logger *zap.Logger, ordersSvc orders.Service, detector *admission.Detector) *Server {
	return &Server{
		logger:    logger,
		ordersSvc: ordersSvc,
		detector:  detector,
	}
}

// Router creates a new HTTP router
func (s *Server) Router() *gin.Engine {
	router := gin.New()

	router.Use(ginzap.Ginzap(s.logger, "2006-01-02T15:04:05Z07:00", true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	router.Use(cors.Default())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			ordersGroup := v1.Group("/orders")
			{
				ordersGroup.POST("", s.handleCreateOrder)
				ordersGroup.GET("", s.handleListOrders)
				ordersGroup.GET("/:id", s.handleGetOrder)
			}

			// The admission gate sits only in front of the batch
			// endpoint; single-order CRUD is never load shed.
			batch := v1.Group("/batch", admission.Middleware(s.detector))
			{
				batch.POST("/submit", s.handleBatchSubmit)
			}

			v1.GET("/admission/stats", s.handleAdmissionStats)
		}
	}

	return router
}

// handleBatchSubmit handles the bulk order submission endpoint
func (s *Server) handleBatchSubmit(c *gin.Context) {
	var req models.BatchSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.Wrap(errors.KindValidation,
			"orderIds must contain between 1 and 100 entries", err))
		return
	}

	result, err := s.ordersSvc.SubmitBatch(c.Request.Context(), req.OrderIDs)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleCreateOrder handles creating a single order
func (s *Server) handleCreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.Wrap(errors.KindValidation, "invalid order payload", err))
		return
	}

	order, err := s.ordersSvc.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// handleGetOrder handles getting an order
func (s *Server) handleGetOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.writeError(c, errors.New(errors.KindValidation, "order id must be an integer"))
		return
	}

	order, err := s.ordersSvc.GetOrder(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// handleListOrders handles listing orders with paging
func (s *Server) handleListOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	found, count, err := s.ordersSvc.ListOrders(c.Request.Context(), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": found, "total": count})
}

// handleAdmissionStats exposes the overload detector's self-counters
func (s *Server) handleAdmissionStats(c *gin.Context) {
	stats := s.detector.Stats()
	c.JSON(http.StatusOK, gin.H{
		"checks":             stats.Checks,
		"average_latency_us": stats.AverageLatency.Microseconds(),
	})
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{
		"code":    string(errors.KindOf(err)),
		"message": err.Error(),
	})
}
