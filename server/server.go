// Package server exposes the caseflow control API over HTTP. It is a thin
// collaborator: all semantics live in the engine and the server only maps
// transport concerns.
package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/luno/jettison/errors"

	"github.com/caseflow/caseflow"
)

func New(engine *caseflow.Engine, graph *caseflow.Graph) *Server {
	s := &Server{
		engine: engine,
		graph:  graph,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	v1.POST("/workflows", s.start)
	v1.GET("/workflows", s.list)
	v1.GET("/workflows/:id", s.get)
	v1.GET("/workflows/:id/summary", s.summary)
	v1.GET("/workflows/:id/history", s.history)
	v1.GET("/workflows/:id/diagram", s.diagram)
	v1.POST("/workflows/:id/resume", s.resume)

	s.router = router
	return s
}

type Server struct {
	engine *caseflow.Engine
	graph  *caseflow.Graph
	router *gin.Engine
}

func (s *Server) Handler() http.Handler {
	return s.router
}

type startRequest struct {
	CustomerID string         `json:"customer_id" binding:"required"`
	StartedBy  string         `json:"started_by" binding:"required"`
	Bag        map[string]any `json:"bag"`
}

func (s *Server) start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(caseflow.ErrInvalidInput, err.Error()))
		return
	}

	instanceID, state, err := s.engine.Start(c.Request.Context(), req.CustomerID, req.StartedBy,
		caseflow.WithInitialBag(req.Bag))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"instance_id": instanceID,
		"state":       state,
	})
}

type resumeRequest struct {
	Actor         string         `json:"actor" binding:"required"`
	UserInput     *string        `json:"user_input"`
	ControlAction *string        `json:"control_action"`
	BagUpdates    map[string]any `json:"bag_updates"`
}

func (s *Server) resume(c *gin.Context) {
	var req resumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(caseflow.ErrInvalidInput, err.Error()))
		return
	}

	var opts []caseflow.ResumeOption
	if req.UserInput != nil {
		opts = append(opts, caseflow.WithUserInput(*req.UserInput))
	}

	if req.ControlAction != nil {
		opts = append(opts, caseflow.WithControlAction(*req.ControlAction))
	}

	if len(req.BagUpdates) > 0 {
		opts = append(opts, caseflow.WithBagUpdates(req.BagUpdates))
	}

	state, err := s.engine.Resume(c.Request.Context(), c.Param("id"), req.Actor, opts...)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (s *Server) get(c *gin.Context) {
	state, err := s.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (s *Server) summary(c *gin.Context) {
	state, err := s.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state.ToProjection())
}

func (s *Server) history(c *gin.Context) {
	events, err := s.engine.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) list(c *gin.Context) {
	states, err := s.engine.List(c.Request.Context(), caseflow.ListFilter{
		CustomerID:   c.Query("customer_id"),
		Status:       caseflow.Status(c.Query("status")),
		StartedBy:    c.Query("started_by"),
		WorkflowName: c.Query("workflow_name"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"states": states})
}

// diagram renders the process graph as a mermaid state diagram with the
// instance's current node highlighted.
func (s *Server) diagram(c *gin.Context) {
	state, err := s.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var sb strings.Builder
	err = caseflow.MermaidDiagram(s.graph, &sb, caseflow.TopToBottomDirection, state.LastNode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.String(http.StatusOK, sb.String())
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, caseflow.ErrInstanceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, caseflow.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
