package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/learnspire/testtrack-backend/internal/config"
	"github.com/learnspire/testtrack-backend/internal/engine"
	"github.com/learnspire/testtrack-backend/internal/middleware"
	"github.com/learnspire/testtrack-backend/internal/service"
	ws "github.com/learnspire/testtrack-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// eventFeed serializes server-to-client writes. Gorilla connections allow
// only one concurrent writer, and events arrive from both the read loop and
// the engine's timer/monitor callbacks; everything funnels through one
// channel drained by a single goroutine. When the buffer is full the event
// is dropped, which only happens once the writer is already gone.
type eventFeed struct {
	mu     sync.Mutex
	closed bool
	ch     chan interface{}
}

func newEventFeed(buf int) *eventFeed {
	return &eventFeed{ch: make(chan interface{}, buf)}
}

func (f *eventFeed) emit(v interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- v:
	default:
	}
}

func (f *eventFeed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}

// SessionWSHandler drives one test-taking session per WebSocket connection.
// Each connection owns an engine.Session; answers and violations are
// autosaved to Redis queues as they happen, and the final result flows
// through the result sink to the persistence worker.
type SessionWSHandler struct {
	rdb            *redis.Client
	testService    *service.TestService
	attemptService *service.AttemptService
	resultSink     *service.QueueResultSink
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewSessionWSHandler creates a new SessionWSHandler.
func NewSessionWSHandler(rdb *redis.Client, testService *service.TestService, attemptService *service.AttemptService, resultSink *service.QueueResultSink, log zerolog.Logger, allowedOrigins []string) *SessionWSHandler {
	return &SessionWSHandler{
		rdb:            rdb,
		testService:    testService,
		attemptService: attemptService,
		resultSink:     resultSink,
		log:            log.With().Str("component", "session_ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// TestSessionStream godoc
// WS /ws/v1/candidate/tests/:test_id/session
// Upgrades to WebSocket and runs the candidate's timed session: navigation,
// answer autosave, focus-loss tracking, and submission.
func (h *SessionWSHandler) TestSessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid test ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	candidateID := claims.UserID

	// SECURITY: the candidate must have joined the test before streaming.
	if err := h.attemptService.VerifyActiveAttempt(c.Request.Context(), testID, candidateID); err != nil {
		ws.WriteError(conn, "no active attempt for this test")
		return
	}

	def, err := h.testService.LoadDefinition(c.Request.Context(), testID)
	if err != nil {
		h.log.Error().Err(err).Str("test_id", testID.String()).Msg("Load definition failed")
		ws.WriteError(conn, "test definition unavailable")
		return
	}

	attempt, err := h.attemptService.GetAttempt(c.Request.Context(), testID, candidateID)
	if err != nil {
		h.log.Error().Err(err).Msg("Get attempt failed")
		ws.WriteError(conn, "attempt lookup failed")
		return
	}

	wsLog := h.log.With().
		Int("candidate_id", candidateID).
		Str("test_id", testID.String()).
		Logger()

	feed := newEventFeed(32)
	go func() {
		for ev := range feed.ch {
			if err := ws.WriteTyped(conn, ev); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed")
				return
			}
		}
	}()

	var sess *engine.Session
	sess = engine.NewSession(def, candidateID, h.resultSink, engine.Callbacks{
		OnWarning: func(count, remaining int) {
			h.publishMonitor(testID, map[string]interface{}{
				"event":        "violation",
				"candidate_id": candidateID,
				"count":        count,
			})
			feed.emit(ws.WarningResponse{Event: ws.EventWarning, Count: count, Remaining: remaining})
		},
		OnForcedSubmit: func(trigger engine.SubmitTrigger, outcome engine.SubmitOutcome) {
			h.finishAttempt(wsLog, sess, testID, candidateID, outcome)
			feed.emit(ws.SubmittedResponse{
				Event:   ws.EventAutoSubmitted,
				Trigger: string(trigger),
				Result:  summarizeResult(outcome.Result),
			})
		},
	})

	wsLog.Info().Msg("Candidate connected")

	for {
		var msg ws.ClientMessage
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionStart:
			h.handleStart(sess, feed, def, attempt.StartedAt, attempt.ViolationCount, testID, candidateID, wsLog)
		case ws.ActionAnswer:
			h.handleAnswer(sess, feed, def, testID, candidateID, &msg, wsLog)
		case ws.ActionClear:
			h.handleClear(sess, feed, def, testID, candidateID, &msg, wsLog)
		case ws.ActionMark:
			h.handleMark(sess, feed, def, testID, candidateID, &msg)
		case ws.ActionNext:
			sess.Next()
			feed.emit(snapshotState(sess))
		case ws.ActionPrevious:
			sess.Previous()
			feed.emit(snapshotState(sess))
		case ws.ActionGoto:
			sess.MoveTo(msg.Section, msg.Question)
			feed.emit(snapshotState(sess))
		case ws.ActionFocusLost:
			h.handleFocusLost(sess, testID, candidateID)
		case ws.ActionSubmit:
			h.handleSubmit(sess, feed, testID, candidateID, msg.Force, wsLog)
		case ws.ActionPing:
			feed.emit(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			feed.emit(ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)})
		}
	}

	// Stop the countdown so a disconnected candidate is not force-submitted
	// by this connection's timer; a reconnect resumes from persisted state.
	sess.Detach()
	feed.close()
}

// handleStart moves the session into progress, restoring autosaved answers
// and review marks from Redis so a reload lands the candidate where they
// left off. The countdown always resumes from the server-side start time.
func (h *SessionWSHandler) handleStart(sess *engine.Session, feed *eventFeed, def *engine.TestDefinition, startedAt time.Time, priorViolations int, testID uuid.UUID, candidateID int, wsLog zerolog.Logger) {
	ctx := context.Background()

	if sess.Stage() != engine.StageInstructions {
		feed.emit(snapshotState(sess))
		return
	}

	remaining, err := h.attemptService.RemainingSeconds(ctx, testID, candidateID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Remaining time lookup failed")
		feed.emit(ws.ErrorResponse{Event: ws.EventError, Error: "failed to start session"})
		return
	}

	if err := sess.Resume(startedAt, remaining, priorViolations); err != nil {
		feed.emit(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
		return
	}

	index := buildQuestionIndex(def)

	saved, err := h.rdb.HGetAll(ctx, config.CacheKey.CandidateAnswersKey(testID.String(), candidateID)).Result()
	if err != nil {
		wsLog.Warn().Err(err).Msg("Autosaved answers unavailable")
	}
	for qID, raw := range saved {
		ref, ok := index[qID]
		if !ok {
			continue
		}
		var ans engine.Answer
		if err := json.Unmarshal([]byte(raw), &ans); err != nil {
			wsLog.Warn().Str("q_id", qID).Msg("Corrupt autosaved answer, skipping")
			continue
		}
		sess.SetAnswer(ref.SectionIndex, ref.QuestionIndex, &ans)
	}

	marks, err := h.rdb.HGetAll(ctx, config.CacheKey.CandidateReviewMarksKey(testID.String(), candidateID)).Result()
	if err != nil {
		wsLog.Warn().Err(err).Msg("Review marks unavailable")
	}
	for qID := range marks {
		if ref, ok := index[qID]; ok {
			sess.ToggleMarkForReview(ref.SectionIndex, ref.QuestionIndex)
		}
	}

	// Track which test the candidate is actively sitting, for monitoring.
	h.rdb.Set(ctx, config.CacheKey.CandidateActiveTestKey(candidateID), testID.String(), time.Duration(remaining+60)*time.Second)

	h.publishMonitor(testID, map[string]interface{}{
		"event":        "started",
		"candidate_id": candidateID,
	})

	st := snapshotState(sess)
	st.Event = ws.EventStarted
	feed.emit(st)
}

// handleAnswer records an answer in the session, autosaves it to the Redis
// hash, and queues it for database persistence.
func (h *SessionWSHandler) handleAnswer(sess *engine.Session, feed *eventFeed, def *engine.TestDefinition, testID uuid.UUID, candidateID int, msg *ws.ClientMessage, wsLog zerolog.Logger) {
	q := def.QuestionAt(msg.Section, msg.Question)
	if q == nil {
		feed.emit(ws.ErrorResponse{Event: ws.EventError, Error: "question out of range"})
		return
	}

	var ans *engine.Answer
	switch msg.Kind {
	case ws.AnswerKindChoice:
		if msg.Option < 0 || msg.Option >= len(q.Options) {
			feed.emit(ws.ErrorResponse{Event: ws.EventError, Error: "option out of range"})
			return
		}
		ans = engine.ChoiceAnswer(msg.Option)
	case ws.AnswerKindText:
		ans = engine.TextAnswer(msg.Value)
	default:
		feed.emit(ws.ErrorResponse{Event: ws.EventError, Error: "unknown answer kind: " + msg.Kind})
		return
	}

	if err := sess.SetAnswer(msg.Section, msg.Question, ans); err != nil {
		feed.emit(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
		return
	}

	h.autosaveAnswer(testID, candidateID, q.ID, ans, wsLog)

	feed.emit(ws.SavedResponse{Event: ws.EventSaved, Section: msg.Section, Question: msg.Question})
	feed.emit(snapshotState(sess))
}

// handleClear removes the stored answer for a question.
func (h *SessionWSHandler) handleClear(sess *engine.Session, feed *eventFeed, def *engine.TestDefinition, testID uuid.UUID, candidateID int, msg *ws.ClientMessage, wsLog zerolog.Logger) {
	q := def.QuestionAt(msg.Section, msg.Question)
	if q == nil {
		feed.emit(ws.ErrorResponse{Event: ws.EventError, Error: "question out of range"})
		return
	}

	if err := sess.SetAnswer(msg.Section, msg.Question, nil); err != nil {
		feed.emit(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
		return
	}

	h.autosaveAnswer(testID, candidateID, q.ID, nil, wsLog)

	feed.emit(ws.SavedResponse{Event: ws.EventSaved, Section: msg.Section, Question: msg.Question})
	feed.emit(snapshotState(sess))
}

// handleMark toggles the review flag and mirrors it to Redis so the flag
// survives a reload.
func (h *SessionWSHandler) handleMark(sess *engine.Session, feed *eventFeed, def *engine.TestDefinition, testID uuid.UUID, candidateID int, msg *ws.ClientMessage) {
	q := def.QuestionAt(msg.Section, msg.Question)
	if q == nil {
		feed.emit(ws.ErrorResponse{Event: ws.EventError, Error: "question out of range"})
		return
	}

	if err := sess.ToggleMarkForReview(msg.Section, msg.Question); err != nil {
		feed.emit(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
		return
	}

	ctx := context.Background()
	marksKey := config.CacheKey.CandidateReviewMarksKey(testID.String(), candidateID)
	st := sess.QuestionState(msg.Section, msg.Question)
	if st.MarkedForReview {
		h.rdb.HSet(ctx, marksKey, q.ID.String(), "1")
	} else {
		h.rdb.HDel(ctx, marksKey, q.ID.String())
	}

	feed.emit(ws.SavedResponse{Event: ws.EventSaved, Section: msg.Section, Question: msg.Question, Marked: st.MarkedForReview})
	feed.emit(snapshotState(sess))
}

// handleFocusLost feeds one focus-loss event into the violation monitor and
// queues it for the audit trail. Warnings and the forced submit at the limit
// come back through the session callbacks.
func (h *SessionWSHandler) handleFocusLost(sess *engine.Session, testID uuid.UUID, candidateID int) {
	if sess.Stage() != engine.StageInProgress {
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"candidate_id": candidateID,
		"test_id":      testID.String(),
		"timestamp":    time.Now().Unix(),
		"payload":      `{"type":"focus_lost"}`,
	})
	h.rdb.RPush(context.Background(), config.WorkerKey.PersistViolationsQueue, payload)

	sess.RecordFocusLoss()
}

// handleSubmit runs the submission flow. Without force, unanswered questions
// that are marked for review block the submit and are reported back.
func (h *SessionWSHandler) handleSubmit(sess *engine.Session, feed *eventFeed, testID uuid.UUID, candidateID int, force bool, wsLog zerolog.Logger) {
	outcome := sess.Submit(force)

	if !outcome.Submitted {
		if len(outcome.UnansweredReview) > 0 {
			refs := make([]ws.UnansweredRef, 0, len(outcome.UnansweredReview))
			for _, r := range outcome.UnansweredReview {
				refs = append(refs, ws.UnansweredRef{Section: r.SectionIndex, Question: r.QuestionIndex})
			}
			feed.emit(ws.ReviewRequiredResponse{Event: ws.EventReviewRequired, Unanswered: refs})
			feed.emit(snapshotState(sess))
			return
		}
		feed.emit(ws.ErrorResponse{Event: ws.EventError, Error: "session is not in progress"})
		return
	}

	h.finishAttempt(wsLog, sess, testID, candidateID, outcome)
	feed.emit(ws.SubmittedResponse{
		Event:   ws.EventSubmitted,
		Trigger: string(engine.TriggerCandidate),
		Result:  summarizeResult(outcome.Result),
	})
}

// finishAttempt handles the side effects of a completed submission: monitor
// notification, active-test cleanup, and retrying a failed result write.
func (h *SessionWSHandler) finishAttempt(wsLog zerolog.Logger, sess *engine.Session, testID uuid.UUID, candidateID int, outcome engine.SubmitOutcome) {
	ctx := context.Background()

	h.rdb.Del(ctx, config.CacheKey.CandidateActiveTestKey(candidateID))

	h.publishMonitor(testID, map[string]interface{}{
		"event":        "submitted",
		"candidate_id": candidateID,
	})

	if outcome.PersistErr != nil {
		wsLog.Error().Err(outcome.PersistErr).Msg("Result enqueue failed, retrying in background")
		go func() {
			for i := 0; i < 3; i++ {
				time.Sleep(5 * time.Second)
				if err := sess.RetryPersist(context.Background()); err == nil {
					wsLog.Info().Msg("Result enqueued on retry")
					return
				}
			}
			wsLog.Error().Msg("Result enqueue retries exhausted")
		}()
		return
	}

	wsLog.Info().
		Int("score", outcome.Result.Score).
		Int("percentage", outcome.Result.Percentage).
		Bool("passed", outcome.Result.Passed).
		Msg("Session submitted")
}

// autosaveAnswer mirrors one answer into the Redis hash and queues it for
// the persistence worker. A nil answer clears the hash field and persists
// SQL null.
func (h *SessionWSHandler) autosaveAnswer(testID uuid.UUID, candidateID int, questionID uuid.UUID, ans *engine.Answer, wsLog zerolog.Logger) {
	ctx := context.Background()
	answersKey := config.CacheKey.CandidateAnswersKey(testID.String(), candidateID)

	answerJSON := "null"
	if ans != nil {
		raw, err := json.Marshal(ans)
		if err != nil {
			wsLog.Error().Err(err).Msg("Answer marshal failed")
			return
		}
		answerJSON = string(raw)
	}

	if ans == nil {
		if err := h.rdb.HDel(ctx, answersKey, questionID.String()).Err(); err != nil {
			wsLog.Error().Err(err).Msg("Autosave Redis error")
		}
	} else {
		if err := h.rdb.HSet(ctx, answersKey, questionID.String(), answerJSON).Err(); err != nil {
			wsLog.Error().Err(err).Msg("Autosave Redis error")
		}
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"candidate_id": candidateID,
		"test_id":      testID.String(),
		"q_id":         questionID.String(),
		"answer":       answerJSON,
	})
	h.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)
}

// publishMonitor pushes a live event onto the test's monitor channel for the
// admin SSE stream. Best effort.
func (h *SessionWSHandler) publishMonitor(testID uuid.UUID, event map[string]interface{}) {
	payload, _ := json.Marshal(event)
	h.rdb.Publish(context.Background(), config.CacheKey.TestMonitorChannel(testID.String()), payload)
}

func snapshotState(sess *engine.Session) ws.SessionState {
	section, question := sess.Position()
	return ws.SessionState{
		Event:            ws.EventState,
		Stage:            string(sess.Stage()),
		Section:          section,
		Question:         question,
		IsLast:           sess.IsLastQuestion(),
		RemainingSeconds: sess.TimeRemaining(),
		AnsweredCount:    sess.AnsweredCount(),
		MarkedCount:      sess.MarkedForReviewCount(),
		ViolationCount:   sess.ViolationCount(),
	}
}

func summarizeResult(res *engine.Result) ws.ResultSummary {
	if res == nil {
		return ws.ResultSummary{}
	}
	return ws.ResultSummary{
		Score:            res.Score,
		TotalMarks:       res.TotalMarks,
		Percentage:       res.Percentage,
		CorrectAnswers:   res.CorrectAnswers,
		IncorrectAnswers: res.IncorrectAnswers,
		Passed:           res.Passed,
		TimeSpentSeconds: res.TimeSpentSeconds,
		ViolationCount:   res.ViolationCount,
	}
}

// buildQuestionIndex maps question IDs to their (section, question) indices
// for restoring autosaved state.
func buildQuestionIndex(def *engine.TestDefinition) map[string]engine.QuestionRef {
	index := make(map[string]engine.QuestionRef, def.TotalQuestions())
	for si := range def.Sections {
		for qi := range def.Sections[si].Questions {
			index[def.Sections[si].Questions[qi].ID.String()] = engine.QuestionRef{SectionIndex: si, QuestionIndex: qi}
		}
	}
	return index
}
