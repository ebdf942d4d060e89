package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/studybuddy/backend/internal/common"
	"github.com/studybuddy/backend/internal/models"
	"gorm.io/gorm"
)

func (h *Handler) GetUserByID(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid user id")
		return
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40401, "user not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	// public profile only
	common.OK(c, gin.H{
		"id":            user.ID,
		"full_name":     user.DisplayName(),
		"bio":           user.Bio,
		"major":         user.Major,
		"academic_year": user.AcademicYear,
		"created_at":    user.CreatedAt,
	})
}

type updateProfileReq struct {
	FullName     *string `json:"full_name"`
	Bio          *string `json:"bio"`
	Major        *string `json:"major"`
	AcademicYear *string `json:"academic_year"`
}

func (h *Handler) UpdateMe(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	updates := map[string]any{}
	if req.FullName != nil {
		updates["full_name"] = *req.FullName
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.Major != nil {
		updates["major"] = *req.Major
	}
	if req.AcademicYear != nil {
		updates["academic_year"] = *req.AcademicYear
	}
	if len(updates) == 0 {
		common.Fail(c, http.StatusBadRequest, 10005, "nothing to update")
		return
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", uid).Updates(updates).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, user)
}
