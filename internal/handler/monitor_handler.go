package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/learnspire/testtrack-backend/internal/config"
	"github.com/learnspire/testtrack-backend/internal/middleware"
	"github.com/learnspire/testtrack-backend/internal/model"
	"github.com/learnspire/testtrack-backend/internal/response"
	"github.com/learnspire/testtrack-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams live proctoring data for a test over SSE.
type MonitorHandler struct {
	rdb            *redis.Client
	testService    *service.TestService
	attemptService *service.AttemptService
	monitorService *service.MonitorService
	log            zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	rdb *redis.Client,
	testService *service.TestService,
	attemptService *service.AttemptService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		testService:    testService,
		attemptService: attemptService,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorTestSSE godoc
// GET /api/v1/admin/tests/:test_id/monitor
// Streams a snapshot followed by live violation/submit events and periodic
// progress refreshes.
func (h *MonitorHandler) MonitorTestSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	hasPerm := false
	for _, p := range claims.Permissions {
		if p == string(model.PermissionMonitorRead) {
			hasPerm = true
			break
		}
	}
	if !hasPerm {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")

	h.sendInitialSnapshot(c, reqCtx, testID, test)

	channelName := config.CacheKey.TestMonitorChannel(testID.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Track whether any candidate has joined so we can skip empty refreshes
	hasCandidates := false

	h.log.Info().Str("test_id", testID.String()).Msg("Admin attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("test_id", testID.String()).Msg("Admin disconnected from live monitor SSE")
			return

		case msg := <-ch:
			// Forward raw JSON directly, no deserialization needed
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

			hasCandidates = true

		case <-refreshTicker.C:
			if !hasCandidates {
				continue
			}
			h.sendRefresh(c, reqCtx, testID)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendInitialSnapshot gathers attempt data and writes the first SSE event.
func (h *MonitorHandler) sendInitialSnapshot(
	c *gin.Context,
	ctx context.Context,
	testID uuid.UUID,
	test *model.Test,
) {
	overviews, _, _ := h.attemptService.GetTestResults(ctx, testID, 1, 1000, nil, nil)

	totalJoined := len(overviews)
	totalInProgress := 0
	totalCompleted := 0

	candidatesSnapshot := make([]map[string]interface{}, 0, len(overviews))
	for _, ov := range overviews {
		switch ov.Status {
		case model.AttemptStatusInProgress:
			totalInProgress++
		case model.AttemptStatusCompleted:
			totalCompleted++
		}

		var percentage int
		if ov.Percentage != nil {
			percentage = *ov.Percentage
		}

		candidatesSnapshot = append(candidatesSnapshot, map[string]interface{}{
			"candidate_id":    ov.CandidateID,
			"name":            ov.Name,
			"batch":           ov.Batch,
			"status":          ov.Status,
			"percentage":      percentage,
			"started_at":      ov.StartedAt,
			"answered_count":  int64(0),
			"violation_count": int64(ov.ViolationCount),
		})
	}

	// Fetch counts with a timeout so a slow query doesn't block the connection
	var initialTotalViolations int64
	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	if progress, err := h.monitorService.GetCandidateProgress(fetchCtx, testID); err == nil {
		initialTotalViolations = progress.TotalViolations
		for i, snap := range candidatesSnapshot {
			cid, ok := snap["candidate_id"].(int)
			if !ok {
				continue
			}
			if count, found := progress.AnsweredCounts[cid]; found {
				candidatesSnapshot[i]["answered_count"] = count
			}
			if count, found := progress.ViolationCounts[cid]; found {
				candidatesSnapshot[i]["violation_count"] = count
			}
		}
	}

	c.SSEvent("message", map[string]interface{}{
		"type": "snapshot",
		"data": map[string]interface{}{
			"test": map[string]interface{}{
				"id":       testID.String(),
				"title":    test.Title,
				"duration": test.DurationMinutes,
			},
			"stats": map[string]interface{}{
				"total_joined":      totalJoined,
				"total_in_progress": totalInProgress,
				"total_completed":   totalCompleted,
				"total_violations":  initialTotalViolations,
			},
			"candidates": candidatesSnapshot,
		},
	})
	c.Writer.Flush()
}

// sendRefresh polls current progress and sends a compact refresh event.
func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, testID uuid.UUID) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	progress, err := h.monitorService.GetCandidateProgress(ctx, testID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to fetch candidate progress for refresh")
		return
	}

	progressData := make([]map[string]interface{}, 0, len(progress.AnsweredCounts)+len(progress.ViolationCounts))

	for cid, answered := range progress.AnsweredCounts {
		progressData = append(progressData, map[string]interface{}{
			"candidate_id":    cid,
			"answered_count":  answered,
			"violation_count": progress.ViolationCounts[cid], // 0 if missing
		})
		delete(progress.ViolationCounts, cid) // mark as handled
	}

	// Remaining violation-only candidates (already submitted, not in-progress)
	for cid, violations := range progress.ViolationCounts {
		progressData = append(progressData, map[string]interface{}{
			"candidate_id":    cid,
			"answered_count":  int64(0),
			"violation_count": violations,
		})
	}

	c.SSEvent("message", map[string]interface{}{
		"type":             "refresh",
		"total_violations": progress.TotalViolations,
		"candidates":       progressData,
	})
	c.Writer.Flush()
}
