// Package api exposes the trivia operation surface as a JSON HTTP API and
// forwards domain events to redis pubsub for external indexing.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/victornm/triviapot/internal/domain"
	"github.com/victornm/triviapot/internal/errors"
	"github.com/victornm/triviapot/internal/escrow"
	"github.com/victornm/triviapot/internal/event"
	"github.com/victornm/triviapot/internal/leaderboard"
	"github.com/victornm/triviapot/internal/score"
	"github.com/victornm/triviapot/internal/session"
	"github.com/victornm/triviapot/internal/winners"
)

type Config struct {
	Engine       *gin.Engine
	EventBus     *event.Bus
	Session      *session.Service
	Score        *score.Service
	Escrow       *escrow.Service
	Winners      *winners.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string

	// AdminToken gates the session-administration routes. Empty disables
	// the gate (local development only).
	AdminToken string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	qss *session.Service
	ss  *score.Service
	es  *escrow.Service
	ws  *winners.Service
	ls  *leaderboard.Service

	redis  Redis
	prefix string
	token  string
}

func New(c Config) *API {
	a := &API{
		qss:    c.Session,
		ss:     c.Score,
		es:     c.Escrow,
		ws:     c.Winners,
		ls:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
		token:  c.AdminToken,
	}

	a.registerRoutes(c.Engine)
	a.subscribeEvents(c.EventBus)

	return a
}

func (a *API) registerRoutes(e *gin.Engine) {
	v1 := e.Group("/v1")

	admin := v1.Group("", a.requireAdmin)
	admin.POST("/sessions", a.CreateSession)
	admin.POST("/sessions/:id/questions", a.AddQuestion)
	admin.POST("/sessions/:id/start", a.Start)
	admin.POST("/sessions/:id/advance", a.AdvanceRound)
	admin.POST("/sessions/:id/complete", a.Complete)
	admin.POST("/sessions/:id/winners", a.DetermineWinners)
	admin.POST("/sessions/:id/distribution", a.Distribute)

	v1.POST("/sessions/:id/deposits", a.Deposit)
	v1.POST("/sessions/:id/answers", a.SubmitAnswer)
	v1.POST("/sessions/:id/refunds", a.Refund)

	v1.GET("/sessions/:id", a.GetSession)
	v1.GET("/sessions/:id/registration", a.CheckRegistrationOpen)
	v1.GET("/sessions/:id/prize", a.GetPrizeDetails)
	v1.GET("/sessions/:id/questions/:number", a.GetQuestion)
	v1.GET("/sessions/:id/participants/:participant/score", a.GetParticipantScore)
	v1.GET("/sessions/:id/winners", a.GetWinners)
	v1.GET("/sessions/:id/distribution", a.GetDistribution)
	v1.GET("/sessions/:id/leaderboard", a.GetLeaderboard)
}

func (a *API) requireAdmin(c *gin.Context) {
	if a.token == "" {
		return
	}

	got := c.GetHeader("Authorization")
	want := "Bearer " + a.token
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		abortWithError(c, errors.New(errors.CodePermissionDenied,
			errors.WithReason(errors.ReasonUnauthorized),
			errors.WithMessagef("admin token required"),
		))
		return
	}
}

func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e})
}

func sessionID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		abortWithError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid session id %q", c.Param("id")),
		))
		return 0, false
	}
	return id, true
}

type Session struct {
	SessionID            uint64    `json:"session_id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description"`
	RegistrationDeadline time.Time `json:"registration_deadline"`
	StartTime            time.Time `json:"start_time"`
	MinParticipants      int       `json:"min_participants"`
	TotalRounds          int       `json:"total_rounds"`
	CurrentRound         int       `json:"current_round"`
	Status               string    `json:"status"`
}

func toSession(s domain.Session) Session {
	return Session{
		SessionID:            s.SessionID,
		Name:                 s.Name,
		Description:          s.Description,
		RegistrationDeadline: s.RegistrationDeadline,
		StartTime:            s.StartTime,
		MinParticipants:      s.MinParticipants,
		TotalRounds:          s.TotalRounds,
		CurrentRound:         s.CurrentRound,
		Status:               string(s.Status),
	}
}

type CreateSessionRequest struct {
	Name                 string          `json:"name" binding:"required"`
	Description          string          `json:"description"`
	RegistrationDeadline time.Time       `json:"registration_deadline" binding:"required"`
	StartTime            time.Time       `json:"start_time" binding:"required"`
	MinParticipants      int             `json:"min_participants" binding:"required"`
	TotalRounds          int             `json:"total_rounds" binding:"required"`
	EntryFee             decimal.Decimal `json:"entry_fee" binding:"required"`
	FirstPct             uint32          `json:"first_pct"`
	SecondPct            uint32          `json:"second_pct"`
	ThirdPct             uint32          `json:"third_pct"`
}

func (a *API) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	ss, err := a.qss.CreateSession(c.Request.Context(), session.CreateSessionRequest{
		Name:                 req.Name,
		Description:          req.Description,
		RegistrationDeadline: req.RegistrationDeadline,
		StartTime:            req.StartTime,
		MinParticipants:      req.MinParticipants,
		TotalRounds:          req.TotalRounds,
		EntryFee:             req.EntryFee,
		FirstPct:             req.FirstPct,
		SecondPct:            req.SecondPct,
		ThirdPct:             req.ThirdPct,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": toSession(*ss)})
}

type AddQuestionRequest struct {
	Number  int       `json:"number" binding:"required"`
	Text    string    `json:"text" binding:"required"`
	Options [4]string `json:"options" binding:"required"`
	Correct string    `json:"correct" binding:"required"`
}

func (a *API) AddQuestion(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req AddQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	err := a.qss.AddQuestion(c.Request.Context(), session.AddQuestionRequest{
		SessionID: id,
		Number:    req.Number,
		Text:      req.Text,
		Options:   req.Options,
		Correct:   req.Correct,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session_id": id, "number": req.Number})
}

func (a *API) Start(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	resp, err := a.qss.Start(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"started":      resp.Started,
		"participants": resp.Participants,
	})
}

func (a *API) AdvanceRound(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	ss, err := a.qss.AdvanceRound(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": toSession(*ss)})
}

func (a *API) Complete(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	ss, err := a.qss.Complete(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": toSession(*ss)})
}

type DepositRequest struct {
	Participant string          `json:"participant" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
}

func (a *API) Deposit(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	resp, err := a.es.Deposit(c.Request.Context(), escrow.DepositRequest{
		SessionID:   id,
		Participant: req.Participant,
		Amount:      req.Amount,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reference_id": resp.ReferenceID,
		"pool":         resp.Pool,
	})
}

type SubmitAnswerRequest struct {
	Participant string    `json:"participant" binding:"required"`
	Question    int       `json:"question" binding:"required"`
	Answer      string    `json:"answer" binding:"required"`
	SubmitTime  time.Time `json:"submit_time" binding:"required"`
}

func (a *API) SubmitAnswer(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	resp, err := a.ss.SubmitAnswer(c.Request.Context(), score.SubmitAnswerRequest{
		SessionID:   id,
		Question:    req.Question,
		Participant: req.Participant,
		Answer:      req.Answer,
		SubmitTime:  req.SubmitTime,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"correct":       resp.Correct,
		"total_correct": resp.TotalCorrect,
		"time_spent":    resp.TimeSpent,
	})
}

type RefundRequest struct {
	Participant string `json:"participant" binding:"required"`
}

func (a *API) Refund(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	resp, err := a.es.Refund(c.Request.Context(), escrow.RefundRequest{
		SessionID:   id,
		Participant: req.Participant,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reference_id": resp.ReferenceID,
		"amount":       resp.Amount,
	})
}

func (a *API) DetermineWinners(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	w, err := a.ws.DetermineWinners(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"winners": toWinners(*w)})
}

func (a *API) Distribute(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	d, err := a.es.Distribute(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"distribution": toDistribution(*d)})
}

func (a *API) GetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	ss, err := a.qss.GetSession(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": toSession(*ss)})
}

func (a *API) CheckRegistrationOpen(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	open, err := a.qss.CheckRegistrationOpen(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"open": open})
}

func (a *API) GetPrizeDetails(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	p, err := a.es.GetPrizeDetails(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entry_fee":    p.EntryFee,
		"first_pct":    p.FirstPct,
		"second_pct":   p.SecondPct,
		"third_pct":    p.ThirdPct,
		"participants": p.Participants,
		"pool":         p.Pool,
	})
}

func (a *API) GetQuestion(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid question number %q", c.Param("number")),
		))
		return
	}

	q, err := a.qss.GetQuestion(c.Request.Context(), id, number)
	if err != nil {
		abortWithError(c, err)
		return
	}

	// The correct option never leaves the service.
	c.JSON(http.StatusOK, gin.H{
		"session_id": q.SessionID,
		"number":     q.Number,
		"text":       q.Text,
		"options":    q.Options,
	})
}

func (a *API) GetParticipantScore(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	sc, err := a.ss.GetParticipantScore(c.Request.Context(), id, c.Param("participant"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"participant": sc.Participant,
		"correct":     sc.Correct,
		"time_spent":  sc.TimeSpent,
	})
}

func (a *API) GetWinners(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	w, err := a.ws.GetWinners(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"winners": toWinners(*w)})
}

func (a *API) GetDistribution(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	d, err := a.es.GetDistribution(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"distribution": toDistribution(*d)})
}

func (a *API) GetLeaderboard(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		SessionID: id,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": toLeaderboard(*l)})
}

func toLeaderboard(l domain.Leaderboard) Leaderboard {
	out := Leaderboard{
		SessionID: l.SessionID,
		Entries:   make([]LeaderboardEntry, 0, len(l.Entries)),
	}
	for _, entry := range l.Entries {
		out.Entries = append(out.Entries, LeaderboardEntry{
			Participant: entry.Participant,
			Correct:     entry.Correct,
			TimeSpent:   entry.TimeSpent,
		})
	}
	return out
}

type Winners struct {
	SessionID uint64 `json:"session_id"`
	First     string `json:"first"`
	Second    string `json:"second"`
	Third     string `json:"third"`
}

func toWinners(w domain.WinnerSet) Winners {
	return Winners{
		SessionID: w.SessionID,
		First:     w.First,
		Second:    w.Second,
		Third:     w.Third,
	}
}

type Distribution struct {
	SessionID uint64    `json:"session_id"`
	Winners   [3]string `json:"winners"`
	Prizes    [3]string `json:"prizes"`
	PayTime   time.Time `json:"pay_time"`
}

func toDistribution(d domain.Distribution) Distribution {
	out := Distribution{
		SessionID: d.SessionID,
		Winners:   d.Winners,
		PayTime:   d.PayTime,
	}
	for i, p := range d.Prizes {
		out.Prizes[i] = p.String()
	}
	return out
}
