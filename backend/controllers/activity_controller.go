package controllers

import (
	"strconv"

	"github.com/NarimanMilanfar/exam-generation-system/backend/config"
	"github.com/NarimanMilanfar/exam-generation-system/backend/models"
	"github.com/NarimanMilanfar/exam-generation-system/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ActivityController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewActivityController(db *gorm.DB, cfg *config.Config) *ActivityController {
	return &ActivityController{DB: db, Cfg: cfg}
}

// GetRecentActivity returns the authenticated user's latest actions.
func (ac *ActivityController) GetRecentActivity(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, ac.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	limit := 20
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 || parsed > 100 {
			return utils.BadRequest(c, "Invalid limit")
		}
		limit = parsed
	}

	var entries []models.ActivityLog
	if err := ac.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	var result []fiber.Map
	for _, e := range entries {
		result = append(result, fiber.Map{
			"action":        e.Action,
			"exam_id":       e.ExamID,
			"generation_id": e.GenerationID,
			"detail":        e.Detail,
			"created_at":    e.CreatedAt,
		})
	}

	return utils.Success(c, fiber.StatusOK, result)
}

// GetPlatformActivity returns the latest actions across all users,
// admin only.
func (ac *ActivityController) GetPlatformActivity(c *fiber.Ctx) error {
	var entries []models.ActivityLog
	if err := ac.DB.Order("created_at DESC").Limit(100).Find(&entries).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	var result []fiber.Map
	for _, e := range entries {
		result = append(result, fiber.Map{
			"user_id":       e.UserID,
			"action":        e.Action,
			"exam_id":       e.ExamID,
			"generation_id": e.GenerationID,
			"detail":        e.Detail,
			"created_at":    e.CreatedAt,
		})
	}

	return utils.Success(c, fiber.StatusOK, result)
}
