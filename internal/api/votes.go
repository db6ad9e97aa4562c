package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/LJTian/WrestlingNews/internal/votes"
)

// UserIDHeader 由上游认证层注入的用户标识
const UserIDHeader = "X-User-ID"

type voteRequest struct {
	ArticleID uint   `json:"article_id" binding:"required"`
	Direction string `json:"direction" binding:"required"`
}

func (s *Server) castVote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	tally, err := s.ledger.Cast(c.Request.Context(), req.ArticleID, c.GetHeader(UserIDHeader), votes.Direction(req.Direction))
	switch {
	case errors.Is(err, votes.ErrMissingUser):
		fail(c, http.StatusUnauthorized, "unauthorized", "missing "+UserIDHeader+" header")
		return
	case errors.Is(err, votes.ErrInvalidDirection):
		badRequest(c, "direction must be one of up, down, clear")
		return
	case errors.Is(err, votes.ErrArticleNotFound):
		notFound(c, "article not found")
		return
	case err != nil:
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, tally)
}
