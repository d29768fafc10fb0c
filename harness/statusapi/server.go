// Package statusapi serves a read-only HTTP view of a running cluster.
//
//	GET /health       → "OK"
//	GET /cluster      → every node, sorted by role id
//	GET /cluster/:id  → one node
//	GET /events       → lifecycle events and their summary
package statusapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/maesker/Master-Thesis/harness/cluster"
	"github.com/maesker/Master-Thesis/harness/trace"
)

// Snapshotter provides the node list; *cluster.State implements it.
type Snapshotter interface {
	Snapshot() []cluster.NodeStatus
}

// Server wraps a gin engine over a cluster state and its event log.
type Server struct {
	ginEngine *gin.Engine
	state     Snapshotter
	events    *trace.Log
	srv       *http.Server
}

// New creates a Server. events may be nil.
func New(state Snapshotter, events *trace.Log) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{ginEngine: router, state: state, events: events}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.ginEngine.GET("/health", s.handleHealth)
	s.ginEngine.GET("/cluster", s.handleCluster)
	s.ginEngine.GET("/cluster/:id", s.handleNode)
	s.ginEngine.GET("/events", s.handleEvents)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// ListenAndServe blocks serving on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logrus.Infof("status API listening on %s", addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops a server started with ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(ctx *gin.Context) {
	ctx.String(http.StatusOK, "OK")
}

func (s *Server) handleCluster(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.state.Snapshot())
}

func (s *Server) handleNode(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid role id"})
		return
	}
	for _, ns := range s.state.Snapshot() {
		if ns.ID == id {
			ctx.JSON(http.StatusOK, ns)
			return
		}
	}
	ctx.JSON(http.StatusNotFound, gin.H{"error": "role not running"})
}

func (s *Server) handleEvents(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"events":  s.events.Events(),
		"summary": trace.Summarize(s.events),
	})
}
