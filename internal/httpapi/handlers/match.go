package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/studybuddy/backend/internal/common"
	"github.com/studybuddy/backend/internal/match"
)

type decisionReq struct {
	TargetUserID uint64 `json:"target_user_id" binding:"required"`
	Decision     string `json:"decision" binding:"required"`
}

func (h *Handler) SubmitMatchDecision(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req decisionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	overall, err := h.MatchSvc.SubmitDecision(c.Request.Context(), uid, req.TargetUserID, match.Status(req.Decision))
	if err != nil {
		failFromError(c, err)
		return
	}

	common.OK(c, gin.H{"status": overall})
}

func (h *Handler) ListPotentialMatches(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	candidates, err := h.MatchSvc.PotentialMatches(c.Request.Context(), uid, limit)
	if err != nil {
		failFromError(c, err)
		return
	}

	cards := make([]gin.H, 0, len(candidates))
	for _, u := range candidates {
		cards = append(cards, gin.H{
			"user_id":       u.ID,
			"full_name":     u.DisplayName(),
			"bio":           u.Bio,
			"major":         u.Major,
			"academic_year": u.AcademicYear,
		})
	}
	common.OK(c, gin.H{"candidates": cards})
}

func (h *Handler) ListPendingMatches(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	pending, err := h.MatchSvc.PendingMatches(c.Request.Context(), uid)
	if err != nil {
		failFromError(c, err)
		return
	}
	common.OK(c, gin.H{"pending": pending})
}
