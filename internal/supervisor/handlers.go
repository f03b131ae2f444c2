package supervisor

import (
	"errors"
	"net/http"

	"github.com/dyluth/frontdesk/internal/lifecycle"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createRequestBody struct {
	Question string `json:"question" form:"question"`
	Caller   string `json:"caller" form:"caller"`
}

type respondBody struct {
	Answer string `json:"answer" form:"answer"`
}

type checkBody struct {
	Question string `json:"question" form:"question"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.desk.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handlePending(c *gin.Context) {
	pending, err := s.desk.PendingRequests(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pending)
}

func (s *Server) handleHistory(c *gin.Context) {
	history, err := s.desk.History(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) handleGetRequest(c *gin.Context) {
	req, err := s.desk.Request(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) handleCreateRequest(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBind(&body); err != nil {
		s.writeError(c, &lifecycle.ValidationError{Field: "body", Reason: err.Error()})
		return
	}

	id, err := s.desk.RequestHelp(c.Request.Context(), body.Question, body.Caller)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleRespond(c *gin.Context) {
	var body respondBody
	if err := c.ShouldBind(&body); err != nil {
		s.writeError(c, &lifecycle.ValidationError{Field: "body", Reason: err.Error()})
		return
	}

	req, err := s.desk.SubmitSupervisorAnswer(c.Request.Context(), c.Param("id"), body.Answer)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) handleKnowledge(c *gin.Context) {
	entries, err := s.desk.KnowledgeBase(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) handleCheckKnowledge(c *gin.Context) {
	var body checkBody
	if err := c.ShouldBind(&body); err != nil {
		s.writeError(c, &lifecycle.ValidationError{Field: "body", Reason: err.Error()})
		return
	}

	answer, found, err := s.desk.CheckKnowledgeBase(c.Request.Context(), body.Question)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": found, "answer": answer})
}

func (s *Server) handleTimeoutSweep(c *gin.Context) {
	n, err := s.desk.RunTimeoutSweep(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "timed_out": n})
}

// writeError maps lifecycle errors onto HTTP status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var (
		validation *lifecycle.ValidationError
		notFound   *lifecycle.NotFoundError
		already    *lifecycle.AlreadyResolvedError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.As(err, &already):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Status: string(already.Status)})
	case lifecycle.IsStoreUnavailable(err):
		s.logger.Warn("store unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error("unhandled API error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
