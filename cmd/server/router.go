package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Skufu/GoSymptom/internal/chat"
	"github.com/Skufu/GoSymptom/internal/predict"
)

const requestIDHeader = "X-Request-ID"

// services is the read-only state shared by all handlers.
type services struct {
	Predictor *predict.Predictor
	Chat      *chat.Client
	Symptoms  []string
	Logger    *slog.Logger
}

type predictRequest struct {
	Symptoms []string `json:"symptoms"`
}

type chatRequest struct {
	Messages []chat.Message `json:"messages" binding:"required"`
}

type predictResponse struct {
	predict.Result
	Message string `json:"message"`
}

func setupRouter(db HealthChecker, svc *services) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Logger(),
		gin.Recovery(),
		requestID(),
		limitBodySize(1<<20), // 1MB max body
		cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
			ExposeHeaders: []string{requestIDHeader},
			MaxAge:        12 * time.Hour,
		}),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		modelStatus := "loaded"
		if !svc.Predictor.Loaded() {
			modelStatus = "missing"
		}

		dbStatus := "disabled"
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			dbStatus = "ok"
			if err := db.Ping(ctx); err != nil {
				dbStatus = fmt.Sprintf("unhealthy: %v", err)
			}
		}

		status, code := "ok", http.StatusOK
		if modelStatus != "loaded" || (dbStatus != "ok" && dbStatus != "disabled") {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status": status,
			"db":     dbStatus,
			"model":  modelStatus,
		})
	})

	api := router.Group("/api")
	api.GET("/symptoms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"symptoms": svc.Symptoms})
	})
	api.POST("/predict", svc.handlePredict)
	api.POST("/chat", svc.handleChat)

	return router
}

func (s *services) handlePredict(c *gin.Context) {
	var payload predictRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		bindError(c, err)
		return
	}

	result, err := s.Predictor.Predict(payload.Symptoms)
	var (
		lookupErr *predict.LookupError
		modelErr  *predict.ModelError
	)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, predictResponse{Result: result, Message: predict.FormatMarkdown(result)})
	case errors.Is(err, predict.ErrNoSymptoms):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "no_symptoms",
			"message": predict.NoSymptomsMessage,
		})
	case errors.Is(err, predict.ErrAbstained):
		c.JSON(http.StatusOK, gin.H{
			"abstained":    true,
			"reason":       err.Error(),
			"confidence":   result.Confidence,
			"unrecognized": result.Unrecognized,
			"message":      "I could not match these symptoms to a condition with confidence. Please consult a real doctor.",
		})
	case errors.As(err, &lookupErr):
		s.Logger.Error("reference lookup failed",
			"request_id", c.GetString("request_id"),
			"disease", lookupErr.Missing.Disease,
			"table", lookupErr.Missing.Table,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed", "message": err.Error()})
	case errors.As(err, &modelErr):
		s.Logger.Error("prediction failed", "request_id", c.GetString("request_id"), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model_unavailable", "message": err.Error()})
	default:
		s.Logger.Error("prediction failed", "request_id", c.GetString("request_id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

func (s *services) handleChat(c *gin.Context) {
	var payload chatRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		bindError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Chat.Respond(c.Request.Context(), payload.Messages))
}

func bindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
}

// requestID tags each request with an id, reusing the caller's when present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
