package controllers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/NarimanMilanfar/exam-generation-system/backend/config"
	"github.com/NarimanMilanfar/exam-generation-system/backend/models"
	"github.com/NarimanMilanfar/exam-generation-system/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ExamsController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewExamsController(db *gorm.DB, cfg *config.Config) *ExamsController {
	return &ExamsController{DB: db, Cfg: cfg}
}

func (ec *ExamsController) GetUserExams(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, ec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	// Optional filters
	topic := c.Query("topic")
	status := c.Query("status")

	query := ec.DB.Model(&models.Exam{}).Where("author_id = ?", userID)
	if topic != "" {
		query = query.Where("topic LIKE ?", "%"+topic+"%")
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var exams []models.Exam
	query.Order("created_at DESC").Find(&exams)

	var result []fiber.Map
	for _, exam := range exams {
		var questionCount, generationCount int64
		ec.DB.Model(&models.ExamQuestion{}).Where("exam_id = ?", exam.ID).Count(&questionCount)
		ec.DB.Model(&models.Generation{}).Where("exam_id = ?", exam.ID).Count(&generationCount)

		result = append(result, fiber.Map{
			"id":          exam.ID,
			"title":       exam.Title,
			"topic":       exam.Topic,
			"status":      exam.Status,
			"questions":   questionCount,
			"generations": generationCount,
			"created_at":  exam.CreatedAt,
		})
	}

	return c.JSON(result)
}

func (ec *ExamsController) GetExamDetails(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, ec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	examID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid exam ID",
		})
	}

	var exam models.Exam
	if err := ec.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence_order ASC")
	}).First(&exam, examID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Exam not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	if !ec.canManageExam(&exam, userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You don't have permission to view this exam",
		})
	}

	// Parse question options from JSON string to array
	var questions []map[string]interface{}
	for _, q := range exam.Questions {
		var options []string
		if q.Options != "" {
			json.Unmarshal([]byte(q.Options), &options)
		}

		questions = append(questions, map[string]interface{}{
			"id":             q.ID,
			"type":           q.Type,
			"text":           q.Text,
			"options":        options,
			"correct_answer": q.CorrectAnswer,
			"order":          q.SequenceOrder,
		})
	}

	return c.JSON(fiber.Map{
		"exam": fiber.Map{
			"id":          exam.ID,
			"title":       exam.Title,
			"description": exam.Description,
			"topic":       exam.Topic,
			"university":  exam.University,
			"status":      exam.Status,
			"author":      exam.AuthorID,
			"questions":   questions,
		},
	})
}

func (ec *ExamsController) CreateExam(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, ec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var input struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Topic       string `json:"topic"`
		University  string `json:"university"`
	}

	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	if input.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Title is required",
		})
	}

	exam := models.Exam{
		Title:       input.Title,
		Description: input.Description,
		Topic:       input.Topic,
		University:  input.University,
		Status:      "draft",
		AuthorID:    userID,
	}

	if err := ec.DB.Create(&exam).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create exam",
		})
	}

	ec.DB.Create(&models.ActivityLog{
		UserID: userID,
		Action: "exam_created",
		ExamID: exam.ID,
		Detail: exam.Title,
	})

	return c.JSON(fiber.Map{
		"message": "Exam created",
		"exam":    exam,
	})
}

func (ec *ExamsController) UpdateExam(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, ec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	examID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid exam ID",
		})
	}

	var input struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Topic       string `json:"topic"`
		University  string `json:"university"`
		Status      string `json:"status"`
	}

	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	var exam models.Exam
	if err := ec.DB.First(&exam, examID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Exam not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	if !ec.canManageExam(&exam, userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You don't have permission to edit this exam",
		})
	}

	// Update fields
	if input.Title != "" {
		exam.Title = input.Title
	}
	if input.Description != "" {
		exam.Description = input.Description
	}
	if input.Topic != "" {
		exam.Topic = input.Topic
	}
	if input.University != "" {
		exam.University = input.University
	}
	if input.Status != "" {
		if input.Status != "draft" && input.Status != "published" && input.Status != "archived" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid status",
			})
		}
		exam.Status = input.Status
	}

	if err := ec.DB.Save(&exam).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update exam",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Exam updated",
		"exam":    exam,
	})
}

func (ec *ExamsController) AddQuestion(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, ec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	examID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid exam ID",
		})
	}

	var input struct {
		Type          string   `json:"type"`
		Text          string   `json:"text"`
		Options       []string `json:"options"`
		CorrectAnswer int      `json:"correct_answer"`
	}

	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	var exam models.Exam
	if err := ec.DB.First(&exam, examID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Exam not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	if !ec.canManageExam(&exam, userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You don't have permission to add questions to this exam",
		})
	}

	optionsJson, err := validateQuestionInput(input.Type, input.Options, input.CorrectAnswer)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// Append after the highest order in use
	var orders []int
	ec.DB.Model(&models.ExamQuestion{}).Where("exam_id = ?", examID).Pluck("sequence_order", &orders)

	question := models.ExamQuestion{
		ExamID:        uint(examID),
		Type:          input.Type,
		Text:          input.Text,
		Options:       optionsJson,
		CorrectAnswer: input.CorrectAnswer,
		SequenceOrder: nextSequenceOrder(orders),
	}

	if err := ec.DB.Create(&question).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create question",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Question added",
		"question": question,
	})
}

func (ec *ExamsController) UpdateQuestion(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, ec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	examID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid exam ID",
		})
	}

	questionID, err := strconv.Atoi(c.Params("questionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid question ID",
		})
	}

	var input struct {
		Text          string   `json:"text"`
		Options       []string `json:"options"`
		CorrectAnswer *int     `json:"correct_answer"`
		SequenceOrder int      `json:"sequence_order"`
	}

	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	var exam models.Exam
	if err := ec.DB.First(&exam, examID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Exam not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	if !ec.canManageExam(&exam, userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You don't have permission to edit questions in this exam",
		})
	}

	var question models.ExamQuestion
	if err := ec.DB.Where("id = ? AND exam_id = ?", questionID, examID).First(&question).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Question not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	// Update fields
	if input.Text != "" {
		question.Text = input.Text
	}
	if input.Options != nil {
		correct := question.CorrectAnswer
		if input.CorrectAnswer != nil {
			correct = *input.CorrectAnswer
		}
		optionsJson, err := validateQuestionInput(question.Type, input.Options, correct)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		question.Options = optionsJson
		question.CorrectAnswer = correct
	} else if input.CorrectAnswer != nil {
		question.CorrectAnswer = *input.CorrectAnswer
	}
	if input.SequenceOrder != 0 {
		question.SequenceOrder = input.SequenceOrder
	}

	if err := ec.DB.Save(&question).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update question",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Question updated",
		"question": question,
	})
}

func (ec *ExamsController) DeleteQuestion(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, ec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	examID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid exam ID",
		})
	}

	questionID, err := strconv.Atoi(c.Params("questionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid question ID",
		})
	}

	var exam models.Exam
	if err := ec.DB.First(&exam, examID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Exam not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	if !ec.canManageExam(&exam, userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You don't have permission to delete questions in this exam",
		})
	}

	result := ec.DB.Where("id = ? AND exam_id = ?", questionID, examID).Delete(&models.ExamQuestion{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete question",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Question not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Question deleted",
	})
}

// canManageExam reports whether the user is the exam's author or a
// platform admin.
func (ec *ExamsController) canManageExam(exam *models.Exam, userID uint) bool {
	if exam.AuthorID == userID {
		return true
	}
	var user models.User
	if err := ec.DB.First(&user, userID).Error; err != nil {
		return false
	}
	return user.Role == "admin"
}

// nextSequenceOrder returns one past the highest order in use, so new
// questions never collide with survivors of a deletion.
func nextSequenceOrder(orders []int) int {
	next := 1
	for _, o := range orders {
		if o >= next {
			next = o + 1
		}
	}
	return next
}

// validateQuestionInput checks a question payload against its type and
// returns the encoded options column.
func validateQuestionInput(questionType string, options []string, correctAnswer int) (string, error) {
	switch questionType {
	case "multiple_choice":
		if len(options) < 2 {
			return "", errors.New("Multiple choice questions need at least two options")
		}
		if correctAnswer < 0 || correctAnswer >= len(options) {
			return "", errors.New("Invalid correct answer index")
		}
		optionsJson, err := json.Marshal(options)
		if err != nil {
			return "", errors.New("Could not encode options")
		}
		return string(optionsJson), nil
	case "true_false":
		if len(options) > 0 {
			return "", errors.New("True/false questions don't carry options")
		}
		if correctAnswer != 0 && correctAnswer != 1 {
			return "", errors.New("Correct answer must be 0 (true) or 1 (false)")
		}
		return "", nil
	default:
		return "", errors.New("Unknown question type")
	}
}
