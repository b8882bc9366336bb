// Package mockbackend emulates the enrichment backend: the three streaming endpoints and profile
// persistence. Outcomes are deterministic so end-to-end tests can assert on them.
package mockbackend

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jonjonssons/sacore-ai-web-sub002/internal/store"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/backend"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/identity"
)

// Markers recognized in names, ids and URLs. They let fixtures choose an outcome.
const (
	MarkerNoContacts = "nocontact"
	MarkerFail       = "fail"
	MarkerUnknown    = "unknown"
)

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
}

type Options struct {
	Logger *zap.Logger
	// Token, when set, is required as a bearer token on every request.
	Token string
	// CreditLimit rejects lookups with more profiles than this with 402. Zero disables the check.
	CreditLimit int
	// EventDelay is slept between stream events.
	EventDelay time.Duration
	// ErrorAfter sends an error event after this many results. Zero disables it.
	ErrorAfter int
}

// Server implements the backend's HTTP surface.
type Server struct {
	store *store.Store
	log   *zap.Logger
	opts  Options

	mu    sync.Mutex
	calls []Call
}

func New(st *store.Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Token = strings.TrimSpace(opts.Token)
	return &Server{store: st, log: logger, opts: opts}
}

// Handler returns the gin engine serving the API under /api.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.Use(gin.Recovery(), s.recordCall, s.authorize)

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
		api.POST("/"+backend.PathEmailStream, s.handleEmails)
		api.POST("/"+backend.PathLinkedInStream, s.handleLinkedIn)
		api.POST("/"+backend.PathAnalysisStream, s.handleAnalysis)
		api.GET("/"+backend.PathProfiles, s.handleListProfiles)
		api.PUT("/"+backend.PathProfiles+"/:id", s.handleSaveProfile)
	}
	return r
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Server) recordCall(c *gin.Context) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: c.Request.Method, Path: c.Request.URL.Path})
	s.mu.Unlock()

	start := time.Now()
	c.Next()
	s.log.Debug("request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("latency", time.Since(start)),
		zap.String("request_id", c.GetHeader("X-Request-Id")),
	)
}

func (s *Server) authorize(c *gin.Context) {
	if s.opts.Token == "" {
		return
	}
	if c.GetHeader("Authorization") != "Bearer "+s.opts.Token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized", "code": "unauthorized"})
	}
}

func (s *Server) checkCredits(c *gin.Context, n int) bool {
	if s.opts.CreditLimit <= 0 || n <= s.opts.CreditLimit {
		return true
	}
	c.JSON(http.StatusPaymentRequired, gin.H{
		"message": fmt.Sprintf("Insufficient credits: %d lookups requested, %d available", n, s.opts.CreditLimit),
		"code":    "insufficient_credits",
	})
	return false
}

// emitter writes SSE frames and honours EventDelay and ErrorAfter.
type emitter struct {
	ctx     context.Context
	w       gin.ResponseWriter
	delay   time.Duration
	errAt   int
	results int
	stopped bool
}

func (s *Server) startStream(c *gin.Context) *emitter {
	c.Header("Content-Type", sse.ContentType)
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	return &emitter{ctx: c.Request.Context(), w: c.Writer, delay: s.opts.EventDelay, errAt: s.opts.ErrorAfter}
}

func (e *emitter) send(payload gin.H) bool {
	if e.stopped {
		return false
	}
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-e.ctx.Done():
			e.stopped = true
			return false
		}
	}
	if err := sse.Encode(e.w, sse.Event{Data: payload}); err != nil {
		e.stopped = true
		return false
	}
	e.w.Flush()
	return true
}

func (e *emitter) result(payload gin.H) bool {
	payload["type"] = "result"
	if !e.send(payload) {
		return false
	}
	e.results++
	if e.errAt > 0 && e.results == e.errAt {
		e.send(gin.H{"type": "error", "message": "provider quota exhausted"})
		e.stopped = true
		return false
	}
	return true
}

func (e *emitter) status(msg string, processed, total int) bool {
	return e.send(gin.H{"type": "status", "message": msg, "processed": processed, "total": total})
}

func (e *emitter) complete(total int) {
	e.send(gin.H{"type": "complete", "totalProcessed": total})
}

func (s *Server) handleEmails(c *gin.Context) {
	var req backend.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid JSON format: " + err.Error()})
		return
	}
	total := len(req.ProfileIDs) + len(req.LinkedInURLs)
	if total == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "profileIds or linkedinUrls required"})
		return
	}
	if !s.checkCredits(c, total) {
		return
	}

	e := s.startStream(c)
	if !e.status(fmt.Sprintf("Looking up emails for %d profiles", total), 0, total) {
		return
	}
	processed := 0
	for _, id := range req.ProfileIDs {
		status, emails := emailOutcome(id)
		processed++
		if !e.result(gin.H{"profileId": id, "status": status, "emails": emails}) {
			return
		}
	}
	for _, u := range req.LinkedInURLs {
		status, emails := emailOutcome(slug(u))
		processed++
		// Half the URL results use the generic identifier field, as the provider does.
		key := "linkedinUrl"
		if processed%2 == 0 {
			key = "identifier"
		}
		if !e.result(gin.H{key: u, "status": status, "emails": emails}) {
			return
		}
	}
	e.complete(processed)
}

func emailOutcome(key string) (string, []gin.H) {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, MarkerNoContacts):
		return "no_contacts", []gin.H{}
	case strings.Contains(k, MarkerFail):
		return "failed", []gin.H{}
	}
	local := strings.NewReplacer(" ", ".", "/", ".").Replace(strings.Trim(k, "/ "))
	return "success", []gin.H{{"value": local + "@example.com"}}
}

func (s *Server) handleLinkedIn(c *gin.Context) {
	var req backend.LinkedInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid JSON format: " + err.Error()})
		return
	}
	if len(req.ProfileIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "profileIds required"})
		return
	}
	if !s.checkCredits(c, len(req.ProfileIDs)) {
		return
	}
	hints := make(map[string]backend.LinkedInProfile, len(req.ProfileData))
	for _, p := range req.ProfileData {
		hints[p.ProfileID] = p
	}

	e := s.startStream(c)
	if !e.status(fmt.Sprintf("Finding LinkedIn URLs for %d profiles", len(req.ProfileIDs)), 0, len(req.ProfileIDs)) {
		return
	}
	for _, id := range req.ProfileIDs {
		hint := hints[id]
		name := strings.TrimSpace(hint.FullName)
		data := gin.H{"profileId": id}
		lower := strings.ToLower(name + " " + id)
		switch {
		case strings.Contains(lower, MarkerFail):
			data["status"] = "failed"
			data["error"] = "provider timeout"
		case name == "" || strings.Contains(lower, MarkerUnknown):
			data["status"] = "no_linkedin_url_found"
		default:
			data["status"] = "success"
			data["linkedinUrl"] = "https://www.linkedin.com/in/" + strings.ToLower(strings.Join(strings.Fields(name), "-"))
			data["fullName"] = name
		}
		if !e.result(gin.H{"data": data}) {
			return
		}
	}
	e.complete(len(req.ProfileIDs))
}

func (s *Server) handleAnalysis(c *gin.Context) {
	var req backend.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid JSON format: " + err.Error()})
		return
	}
	if len(req.Criteria) == 0 || len(req.Profiles) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "criteria and profiles required"})
		return
	}
	if !s.checkCredits(c, len(req.Profiles)) {
		return
	}

	e := s.startStream(c)
	if !e.status(fmt.Sprintf("Analyzing %d profiles", len(req.Profiles)), 0, len(req.Profiles)) {
		return
	}
	for i, p := range req.Profiles {
		breakdown := gin.H{}
		matched := 0
		for _, crit := range req.Criteria {
			status := "no_match"
			if score(p.FullName+crit)%2 == 0 {
				status = "match"
				matched++
			}
			breakdown[crit] = gin.H{"status": status, "reason": "deterministic mock verdict"}
		}
		result := gin.H{
			"analysis": gin.H{
				// Scores travel as strings on some backends; both forms are exercised.
				"score":       scoreValue(100*matched/len(req.Criteria), i),
				"description": fmt.Sprintf("Matches %d of %d criteria", matched, len(req.Criteria)),
				"breakdown":   breakdown,
			},
			"enrichedData": gin.H{
				"fullName": p.FullName,
				"experience": []gin.H{
					{"title": "Former " + nonEmpty(p.Title, "Engineer"), "company": "Previous Co"},
					{"title": nonEmpty(p.Title, "Engineer"), "company": nonEmpty(p.Company, "Current Co"), "isCurrent": true},
				},
			},
		}
		if p.ProfileID != "" {
			result["profileId"] = p.ProfileID
		} else {
			result["linkedinUrl"] = p.LinkedInURL
		}
		if !e.result(result) {
			return
		}
	}
	e.complete(len(req.Profiles))
}

func (s *Server) handleListProfiles(c *gin.Context) {
	profiles, err := s.store.ListProfiles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

func (s *Server) handleSaveProfile(c *gin.Context) {
	id := c.Param("id")
	var rec candidate.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid JSON format: " + err.Error()})
		return
	}
	if rec.ID == "" {
		rec.ID = id
	}
	if rec.ID != id {
		c.JSON(http.StatusBadRequest, gin.H{"message": "profile id does not match path", "code": "id_mismatch"})
		return
	}
	if err := s.store.SaveProfile(c.Request.Context(), rec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": rec})
}

func slug(u string) string {
	key := identity.NormalizeLinkedInURL(u)
	return strings.TrimPrefix(key, "/in/")
}

func score(s string) uint32 {
	h := fnv.New32a()
	_, _ = io.WriteString(h, strings.ToLower(s))
	return h.Sum32()
}

func scoreValue(v, i int) any {
	if i%2 == 1 {
		return fmt.Sprintf("%d", v)
	}
	return v
}

func nonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}
