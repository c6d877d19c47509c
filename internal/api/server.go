package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/aravindh-murugesan/snapsentry-go/internal/datastore"
	"github.com/aravindh-murugesan/snapsentry-go/internal/policy"
	"github.com/gin-gonic/gin"
)

// Server provides an HTTP API for registering volume policies at runtime.
type Server struct {
	addr      string
	store     *policy.Store
	datastore datastore.Datastore
	metrics   http.Handler
	server    *http.Server
	startTime time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithDatastore enables the latest-snapshot lookup.
func WithDatastore(ds datastore.Datastore) Option {
	return func(s *Server) { s.datastore = ds }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, store *policy.Store, opts ...Option) *Server {
	if addr == "" {
		addr = "0.0.0.0:8081"
	}
	s := &Server{
		addr:      addr,
		store:     store,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)

	volumes := r.Group("/api/volumes")
	volumes.GET("", s.handleListVolumes)
	volumes.POST("", s.handleCreateVolume)
	volumes.GET("/:id", s.handleGetVolume)
	volumes.PUT("/:id", s.handlePutVolume)
	volumes.DELETE("/:id", s.handleDeleteVolume)
	volumes.GET("/:id/snapshots/latest", s.handleLatestSnapshot)

	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Handler:           s.Router(),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(listener) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

type volumeResponse struct {
	policy.Policy
	Error string `json:"error,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	lastRefresh, lastErr := s.store.Status()

	body := gin.H{
		"status":        "ok",
		"uptime":        time.Since(s.startTime).String(),
		"policy_source": s.store.SourceName(),
		"volumes":       s.store.Snapshot().Len(),
	}
	if !lastRefresh.IsZero() {
		body["last_refresh"] = lastRefresh.Format(time.RFC3339)
	}
	if lastErr != nil {
		body["status"] = "degraded"
		body["last_error"] = lastErr.Error()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleListVolumes(c *gin.Context) {
	set := s.store.Snapshot()

	out := make([]volumeResponse, 0, set.Len())
	for _, id := range set.VolumeIDs() {
		if p, ok := set.Policies[id]; ok {
			out = append(out, volumeResponse{Policy: p})
			continue
		}
		out = append(out, volumeResponse{Policy: policy.Policy{VolumeID: id}, Error: set.Rejected[id].Error()})
	}

	c.JSON(http.StatusOK, gin.H{"volumes": out})
}

func (s *Server) handleCreateVolume(c *gin.Context) {
	var p policy.Policy
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if _, exists := s.store.Get(p.VolumeID); exists {
		c.JSON(http.StatusConflict, gin.H{"error": "volume already has a policy; use PUT to replace it"})
		return
	}
	if !s.register(c, p) {
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) handleGetVolume(c *gin.Context) {
	p, ok := s.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": policy.ErrUnknownVolume.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handlePutVolume(c *gin.Context) {
	var p policy.Policy
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	id := c.Param("id")
	if p.VolumeID != "" && p.VolumeID != id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "volume_id does not match the path"})
		return
	}
	p.VolumeID = id

	if !s.register(c, p) {
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeleteVolume(c *gin.Context) {
	if !s.store.Deregister(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": policy.ErrUnknownVolume.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleLatestSnapshot(c *gin.Context) {
	if s.datastore == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "no audit datastore configured"})
		return
	}

	info, err := s.datastore.GetLatestSnapshotInfo(c.Request.Context(), datastore.SnapshotResource(c.Param("id")))
	if errors.Is(err, datastore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audit datastore"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"volume_id":   string(info.Resource),
		"snapshot_id": string(info.ID),
		"created_at":  info.CreatedAt.Format(time.RFC3339),
		"labels":      info.Labels,
	})
}

func (s *Server) register(c *gin.Context, p policy.Policy) bool {
	if err := s.store.Register(p); err != nil {
		status := http.StatusInternalServerError
		if policy.IsConfigError(err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return false
	}
	return true
}
