package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/victornm/avidquiz/internal/challenge"
	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/errors"
	"github.com/victornm/avidquiz/internal/generator"
	"github.com/victornm/avidquiz/internal/leaderboard"
	"github.com/victornm/avidquiz/internal/session"
)

const (
	SessionCookie = "sid"
	SessionHeader = "X-Session-ID"

	sessionKey      = "sessionID"
	sessionMaxAge   = 30 * 24 * 60 * 60
	maxSessionIDLen = 128
)

func (a *API) registerHTTP(r gin.IRouter, allowedOrigin string) {
	r.Use(corsMiddleware(allowedOrigin))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	g := r.Group("/api", a.withSession)
	g.GET("/lessons", a.listLessons)
	g.GET("/random", a.randomLesson)
	g.GET("/session", a.getSession)
	g.POST("/session", a.postSession)
	g.POST("/ai/generate", a.generateLesson)
	g.GET("/ai/config", a.aiConfig)
	g.GET("/prochallenge", a.pickChallenge)
	g.POST("/prochallenge/submit", a.submitChallenge)
	g.POST("/prochallenge/hint", a.challengeHint)
	g.GET("/leaderboard", a.getLeaderboard)
	g.POST("/leaderboard/submit", a.submitScore)
	g.POST("/typing/score", a.typingScore)
}

// corsMiddleware reflects any origin when allowedOrigin is empty or "*".
func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", SessionHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if allowedOrigin == "" || allowedOrigin == "*" {
		c.AllowOriginFunc = func(string) bool { return true }
	} else {
		c.AllowOrigins = []string{allowedOrigin}
	}

	return cors.New(c)
}

// withSession resolves the session key from the X-Session-ID header or the
// sid cookie, issuing a new cookie when neither is present.
func (a *API) withSession(c *gin.Context) {
	sid := c.GetHeader(SessionHeader)
	if sid == "" {
		sid, _ = c.Cookie(SessionCookie)
	}

	if sid == "" || len(sid) > maxSessionIDLen {
		id, err := uuid.NewV7()
		if err != nil {
			abortWithError(c, errors.Internal(err))
			return
		}

		sid = id.String()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, sid, sessionMaxAge, "/", "", a.secureCookie, true)
	}

	c.Set(sessionKey, sid)
	c.Next()
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c, "api: request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{
		"error":  e.Message,
		"reason": e.Reason,
	})
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		abortWithError(c, errors.InvalidArgument("invalid request body"))
		return false
	}
	return true
}

func (a *API) listLessons(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"categories": a.cat.Categories(),
		"lessons":    a.cat.ByCategory(),
	})
}

func (a *API) randomLesson(c *gin.Context) {
	resp, err := a.qss.NextLesson(c, session.NextLessonRequest{
		SessionID: sessionID(c),
		Category:  c.Query("category"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp.Lesson)
}

func (a *API) getSession(c *gin.Context) {
	switch c.DefaultQuery("stage", "lesson") {
	case "lesson":
		resp, err := a.qss.NextLesson(c, session.NextLessonRequest{
			SessionID: sessionID(c),
			Category:  c.Query("category"),
			Source:    c.Query("source"),
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, lessonState(resp.Lesson, resp.Totals))

	case "quiz":
		resp, err := a.qss.CurrentQuestion(c, sessionID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, questionState(resp.Question, resp.Totals))

	default:
		abortWithError(c, errors.InvalidArgument("invalid stage %q", c.Query("stage")))
	}
}

func (a *API) postSession(c *gin.Context) {
	switch c.Query("stage") {
	case "add":
		var body struct {
			Title string `json:"title" binding:"required"`
		}
		if !bindJSON(c, &body) {
			return
		}

		resp, err := a.qss.MarkRead(c, session.MarkReadRequest{SessionID: sessionID(c), Title: body.Title})
		if err != nil {
			abortWithError(c, err)
			return
		}

		read := resp.ReadTitles
		if read == nil {
			read = []string{}
		}
		c.JSON(http.StatusOK, gin.H{
			"stage":       "added",
			"lessonsSeen": read,
			"count":       len(read),
			"known":       resp.Known,
			"message":     "lesson added to study list",
		})

	case "startQuiz":
		resp, err := a.qss.StartQuiz(c, sessionID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}

		st := questionState(resp.Question, resp.Totals)
		st.Message = "quiz started"
		c.JSON(http.StatusOK, st)

	case "answer":
		var body struct {
			AnswerIndex json.RawMessage `json:"answerIndex"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			slog.DebugContext(c, "api: unreadable answer body", "session", sessionID(c), "error", err)
		}

		resp, err := a.qss.Answer(c, session.AnswerRequest{SessionID: sessionID(c), AnswerIndex: answerIndex(body.AnswerIndex)})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, answerState(resp))

	default:
		abortWithError(c, errors.InvalidArgument("invalid stage %q", c.Query("stage")))
	}
}

// answerIndex decodes a submitted option index. Anything that is not an
// integer becomes -1 and is graded wrong.
func answerIndex(raw json.RawMessage) int {
	if len(raw) == 0 || string(raw) == "null" {
		return -1
	}

	var i int
	if err := json.Unmarshal(raw, &i); err != nil {
		return -1
	}
	return i
}

func (a *API) generateLesson(c *gin.Context) {
	var body struct {
		Category string `json:"category"`
		Topic    string `json:"topic"`
	}
	if !bindJSON(c, &body) {
		return
	}

	resp, err := a.gs.GenerateLesson(c, generator.GenerateLessonRequest{
		Category: body.Category,
		Topic:    body.Topic,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, QuizState{
		Stage:   "lesson",
		Lesson:  &resp.Lesson,
		Message: "AI-generated lesson",
	})
}

func (a *API) aiConfig(c *gin.Context) {
	c.JSON(http.StatusOK, a.gs.Config())
}

func (a *API) pickChallenge(c *gin.Context) {
	ch, err := a.cs.Pick(c, challenge.PickRequest{
		Difficulty: c.Query("difficulty"),
		Topic:      c.Query("topic"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ch)
}

func (a *API) submitChallenge(c *gin.Context) {
	var body struct {
		ID   string `json:"id" binding:"required"`
		Code string `json:"code"`
	}
	if !bindJSON(c, &body) {
		return
	}

	resp, err := a.cs.Submit(c, challenge.SubmitRequest{
		SessionID: sessionID(c),
		ID:        body.ID,
		Code:      body.Code,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	if !resp.Passed {
		c.JSON(http.StatusOK, gin.H{
			"passed":   false,
			"total":    resp.Total,
			"failures": resp.Failures,
			"stdout":   resp.Stdout,
			"stderr":   resp.Stderr,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"passed":      true,
		"total":       resp.Total,
		"coinsEarned": resp.CoinsEarned,
		"coinsTotal":  resp.Totals.Coins,
		"xpEarned":    resp.XPEarned,
		"xpTotal":     resp.Totals.XP,
		"message":     resp.Message,
		"stdout":      resp.Stdout,
	})
}

func (a *API) challengeHint(c *gin.Context) {
	var body struct {
		ID string `json:"id" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}

	resp, err := a.cs.Hint(c, challenge.HintRequest{SessionID: sessionID(c), ID: body.ID})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hint":       resp.Hint,
		"index":      resp.Index,
		"hasMore":    resp.HasMore,
		"coinsTotal": resp.Totals.Coins,
		"xpTotal":    resp.Totals.XP,
	})
}

func (a *API) getLeaderboard(c *gin.Context) {
	var limit int
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			abortWithError(c, errors.InvalidArgument("invalid limit"))
			return
		}
		limit = n
	}

	l, err := a.ls.Top(c, leaderboard.TopRequest{
		Mode:  domain.Mode(c.Query("mode")),
		Limit: limit,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, l.Entries)
}

func (a *API) submitScore(c *gin.Context) {
	var body struct {
		Name     string `json:"name"`
		Score    int    `json:"score"`
		Mode     string `json:"mode"`
		Category string `json:"category"`
	}
	if !bindJSON(c, &body) {
		return
	}

	resp, err := a.ls.Submit(c, leaderboard.SubmitRequest{
		SessionID: sessionID(c),
		Name:      body.Name,
		Mode:      domain.Mode(body.Mode),
		Score:     body.Score,
		Category:  body.Category,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"rank":    resp.Rank,
		"entry":   resp.Entry,
		"message": "Score submitted successfully!",
	})
}

func (a *API) typingScore(c *gin.Context) {
	var body struct {
		Score int `json:"score"`
	}
	if !bindJSON(c, &body) {
		return
	}

	best, err := a.qss.RecordTypingScore(c, sessionID(c), body.Score)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"score":   best,
	})
}
