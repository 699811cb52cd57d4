package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roadwatch-io/roadwatch/internal/analytics"
	"github.com/roadwatch-io/roadwatch/internal/logging"
	"github.com/roadwatch-io/roadwatch/internal/metrics"
	"github.com/roadwatch-io/roadwatch/internal/validation"
)

// -----------------------------------------------------------------------------
// Health
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime,omitempty"`
}

var startTime = time.Now()

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: "0.1.0",
		Uptime:  time.Since(startTime).Round(time.Second).String(),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Auth
// -----------------------------------------------------------------------------

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Name            string `json:"name"`
}

type profileRequest struct {
	Name string `json:"name"`
}

// maxNameLength caps display names; the analytics API truncates beyond this.
const maxNameLength = 200

func validationFailure(c *gin.Context, errs validation.ValidationErrors) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "validation_failed",
		"message": errs.Error(),
		"fields":  errs,
	})
}

func (s *Server) loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "malformed JSON body"})
		return
	}

	req.Email = validation.SanitizeString(req.Email, validation.MaxStringLength)
	if errs := validation.Validate(
		validation.Required("email", req.Email),
		validation.ValidEmail("email", req.Email),
		validation.Required("password", req.Password),
	); len(errs) > 0 {
		validationFailure(c, errs)
		return
	}

	res := s.client.Login(c.Request.Context(), req.Email, req.Password)
	if !res.Success {
		c.JSON(http.StatusUnauthorized, res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "profile": s.sessions.Profile()})
}

func (s *Server) signupHandler(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "malformed JSON body"})
		return
	}

	req.Email = validation.SanitizeString(req.Email, validation.MaxStringLength)
	req.Name = validation.SanitizeString(req.Name, validation.MaxStringLength)

	// The confirmation check is local; a mismatch never reaches the wire.
	if errs := validation.Validate(
		validation.Required("email", req.Email),
		validation.ValidEmail("email", req.Email),
		validation.Required("name", req.Name),
		validation.MaxLength("name", req.Name, maxNameLength),
		validation.Required("password", req.Password),
		validation.MinLength("password", req.Password, 8),
		validation.Matches("confirmPassword", req.ConfirmPassword, req.Password),
	); len(errs) > 0 {
		validationFailure(c, errs)
		return
	}

	res := s.client.Signup(c.Request.Context(), req.Email, req.Password, req.Name)
	if !res.Success {
		c.JSON(http.StatusUnauthorized, res)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "profile": s.sessions.Profile()})
}

func (s *Server) logoutHandler(c *gin.Context) {
	if err := s.client.Logout(); err != nil {
		logging.L(c.Request.Context()).Error("logout failed to clear store", "error", err)
	}
	// Logged out either way; the in-memory credential is gone.
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) regenerateKeyHandler(c *gin.Context) {
	if !s.sessions.Current().Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "not logged in"})
		return
	}

	res := s.client.RegenerateAPIKey(c.Request.Context())
	if !res.Success {
		c.JSON(http.StatusBadGateway, res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "apiKey": s.sessions.APIKey()})
}

func (s *Server) updateProfileHandler(c *gin.Context) {
	if !s.sessions.Current().Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "not logged in"})
		return
	}

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "malformed JSON body"})
		return
	}
	req.Name = validation.SanitizeString(req.Name, validation.MaxStringLength)
	if errs := validation.Validate(
		validation.Required("name", req.Name),
		validation.MaxLength("name", req.Name, maxNameLength),
	); len(errs) > 0 {
		validationFailure(c, errs)
		return
	}

	res := s.client.UpdateProfile(c.Request.Context(), req.Name)
	if !res.Success {
		c.JSON(http.StatusBadGateway, res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "profile": s.sessions.Profile()})
}

// sessionHandler reports the current session state without touching the
// remote API. The API key itself is only returned on explicit regeneration.
func (s *Server) sessionHandler(c *gin.Context) {
	cur := s.sessions.Current()
	if !cur.Authenticated() {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"profile":       cur.Profile,
	})
}

// -----------------------------------------------------------------------------
// Dashboard data
// -----------------------------------------------------------------------------

// degraded answers an empty-but-valid payload when the analytics API is
// unreachable: the dashboard renders its empty state instead of an error
// page.
func degraded(c *gin.Context, endpoint string) {
	metrics.DegradedResponsesTotal.WithLabelValues(endpoint).Inc()
	c.JSON(http.StatusOK, gin.H{"items": []any{}, "count": 0, "degraded": true})
}

// dataError maps client errors onto responses. 401 means the session died
// mid-request (the client has already torn it down); everything else is the
// degraded empty state.
func (s *Server) dataError(c *gin.Context, endpoint string, err error) {
	if errors.Is(err, analytics.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "session expired"})
		return
	}
	logging.L(c.Request.Context()).Warn("data fetch failed", "endpoint", endpoint, "error", err)
	degraded(c, endpoint)
}

func (s *Server) hotspotsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	items, err := s.client.Hotspots(c.Request.Context(), limit)
	if err != nil {
		s.dataError(c, "hotspots", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (s *Server) schoolsHandler(c *gin.Context) {
	area := c.Query("area")
	if area != "" && !validation.IsValidAreaCode(area) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_area", "message": "area must be an ONS area code"})
		return
	}

	items, err := s.client.Schools(c.Request.Context(), area)
	if err != nil {
		s.dataError(c, "schools", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (s *Server) casualtiesHandler(c *gin.Context) {
	area := c.Param("area")
	if area == "" {
		area = c.Query("area")
		if area != "" && !validation.IsValidAreaCode(area) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_area", "message": "area must be an ONS area code"})
			return
		}
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	items, err := s.client.Casualties(c.Request.Context(), area, limit)
	if err != nil {
		s.dataError(c, "casualties", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (s *Server) summaryHandler(c *gin.Context) {
	summary, err := s.client.StatsSummary(c.Request.Context())
	if err != nil {
		if errors.Is(err, analytics.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "session expired"})
			return
		}
		metrics.DegradedResponsesTotal.WithLabelValues("summary").Inc()
		c.JSON(http.StatusOK, gin.H{"summary": nil, "degraded": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
