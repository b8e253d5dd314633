package main

import (
	"net/http"
	"sync"
	"time"

	"bitbucket.org/greenops/fieldops_backend/graph"
	"bitbucket.org/greenops/fieldops_backend/models"
	"bitbucket.org/greenops/fieldops_backend/utils"
	"bitbucket.org/greenops/fieldops_backend/workflow"
	"github.com/gin-gonic/gin"
)

// handler serves the GraphQL resolvers and exports over the repository current at request time.
type handler struct {
	repo func() models.RecordRepository
	// now defaults to time.Now; tables built per request use it for the edit window.
	now func() time.Time

	mu       sync.Mutex
	sessions *workflow.SessionManager
}

func newHandler(repo func() models.RecordRepository) *handler {
	return &handler{repo: repo}
}

func (h *handler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *handler) sessionManager() *workflow.SessionManager {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions == nil {
		h.sessions = workflow.NewSessionManager(h.repo())
		h.sessions.Now = h.clock
	}
	return h.sessions
}

// readinessGate answers 503 until a repository is available.
func (h *handler) readinessGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.repo() == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service not ready"})
			return
		}
		c.Next()
	}
}

func siteIdFrom(c *gin.Context) string {
	siteId, _ := utils.GetSiteIdFromContext(c.Request.Context())
	return siteId
}

// tableKind reads the :kind route parameter, answering 400 when it is unknown.
func tableKind(c *gin.Context) (models.TableKind, bool) {
	kind, err := models.ParseTableKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return kind, true
}

// loadTable builds the site table for the current request.
func (h *handler) loadTable(c *gin.Context, kind models.TableKind) (*models.Table, *models.Site, bool) {
	table, site, err := models.LoadTable(c.Request.Context(), h.repo(), siteIdFrom(c), kind)
	if err != nil {
		respondError(c, err)
		return nil, nil, false
	}
	table.Now = h.clock
	return table, site, true
}

// respondError answers with the status and details the GraphQL errors carry.
func respondError(c *gin.Context, err error) {
	status, code := graph.ErrorStatus(err)
	body := gin.H{"error": err.Error(), "code": code}
	if key, details := graph.ErrorDetails(err); key != "" {
		body[key] = details
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		body["error"] = "internal error"
	}
	c.JSON(status, body)
}
