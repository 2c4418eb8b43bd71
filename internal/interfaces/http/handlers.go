package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/application/service"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
	"github.com/garyjia/receipt-approval/internal/domain/workflow"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services       Services
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, maxUploadBytes int64, logger Logger) *Handlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultServerConfig().MaxUploadBytes
	}
	return &Handlers{
		services:       services,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ActionRequest is the body of PUT /api/receipts/:id/action
type ActionRequest struct {
	Action          string `json:"action" binding:"required"`
	RejectionReason string `json:"rejectionReason"`
}

// SectionRequest is the body of section create and rename
type SectionRequest struct {
	Name string `json:"name" binding:"required"`
}

// RegisterUserRequest is the body of POST /api/users
type RegisterUserRequest struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Role      string `json:"role" binding:"required"`
	SectionID *int64 `json:"section_id"`
}

// UpdateUserRequest is the body of PUT /api/users/:id; omitted fields are unchanged
type UpdateUserRequest struct {
	Email     *string `json:"email"`
	Role      *string `json:"role"`
	SectionID *int64  `json:"section_id"`
}

// UpdateProfileRequest is the body of PUT /api/profile
type UpdateProfileRequest struct {
	Email           *string `json:"email"`
	NewPassword     *string `json:"new_password"`
	CurrentPassword string  `json:"current_password"`
}

// ListRequest holds the query parameters of receipt listings
type ListRequest struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if h.services.Health != nil {
		healthy, details := h.services.Health.CheckHealth(c.Request.Context())
		response.Components = details
		if !healthy {
			response.Status = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: response, Error: "unhealthy"})
			return
		}
	}

	respondOK(c, http.StatusOK, response)
}

// Login handles POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("username and password are required"))
		return
	}

	session, err := h.services.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, session)
}

// PendingReceipts handles GET /api/receipts/pending
func (h *Handlers) PendingReceipts(c *gin.Context) {
	opts, err := bindListOptions(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	receipts, err := h.services.Receipts.Pending(c.Request.Context(), currentIdentity(c), opts)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, receipts)
}

// ReceiptHistory handles GET /api/receipts/history
func (h *Handlers) ReceiptHistory(c *gin.Context) {
	opts, err := bindListOptions(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	receipts, err := h.services.Receipts.History(c.Request.Context(), currentIdentity(c), opts)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, receipts)
}

// ExportHistory handles GET /api/receipts/history/export
func (h *Handlers) ExportHistory(c *gin.Context) {
	data, err := h.services.Receipts.ExportHistory(c.Request.Context(), currentIdentity(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	filename := fmt.Sprintf("receipt-history-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// CreateReceipt handles POST /api/receipts (multipart: title, description, section_id, image)
func (h *Handlers) CreateReceipt(c *gin.Context) {
	sectionID, err := strconv.ParseInt(c.PostForm("section_id"), 10, 64)
	if err != nil {
		respondError(c, h.logger, apperr.Validation("section_id must be a number"))
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, h.logger, apperr.Validation("image file is required"))
		return
	}
	if file.Size > h.maxUploadBytes {
		respondError(c, h.logger, apperr.Validation("image exceeds %d bytes", h.maxUploadBytes))
		return
	}

	f, err := file.Open()
	if err != nil {
		respondError(c, h.logger, apperr.Validation("cannot read image: %v", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		respondError(c, h.logger, apperr.Validation("cannot read image: %v", err))
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		respondError(c, h.logger, apperr.Validation("image exceeds %d bytes", h.maxUploadBytes))
		return
	}

	receipt, err := h.services.Receipts.Create(c.Request.Context(), currentIdentity(c), service.CreateReceiptInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		SectionID:   sectionID,
		Filename:    file.Filename,
		Image:       data,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusCreated, receipt)
}

// GetReceipt handles GET /api/receipts/:id
func (h *Handlers) GetReceipt(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	detail, err := h.services.Receipts.Get(c.Request.Context(), currentIdentity(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, detail)
}

// ActOnReceipt handles PUT /api/receipts/:id/action
func (h *Handlers) ActOnReceipt(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("action is required"))
		return
	}

	action, _ := workflow.ParseAction(req.Action)
	receipt, err := h.services.Approvals.Transition(c.Request.Context(), id, currentIdentity(c), action, req.RejectionReason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, receipt)
}

// DeleteReceipt handles DELETE /api/receipts/:id
func (h *Handlers) DeleteReceipt(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.services.Receipts.Delete(c.Request.Context(), currentIdentity(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// ListSections handles GET /api/sections
func (h *Handlers) ListSections(c *gin.Context) {
	sections, err := h.services.Sections.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, sections)
}

// CreateSection handles POST /api/sections
func (h *Handlers) CreateSection(c *gin.Context) {
	var req SectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("section name is required"))
		return
	}

	section, err := h.services.Sections.Create(c.Request.Context(), currentIdentity(c), req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusCreated, section)
}

// RenameSection handles PUT /api/sections/:id
func (h *Handlers) RenameSection(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req SectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("section name is required"))
		return
	}

	section, err := h.services.Sections.Rename(c.Request.Context(), currentIdentity(c), id, req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, section)
}

// DeleteSection handles DELETE /api/sections/:id
func (h *Handlers) DeleteSection(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.services.Sections.Delete(c.Request.Context(), currentIdentity(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// ListUsers handles GET /api/users[?role=]
func (h *Handlers) ListUsers(c *gin.Context) {
	var role *entity.Role
	if raw := c.Query("role"); raw != "" {
		r := entity.Role(raw)
		role = &r
	}

	users, err := h.services.Users.List(c.Request.Context(), currentIdentity(c), role)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, users)
}

// RegisterUser handles POST /api/users
func (h *Handlers) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("username, password, role and email are required"))
		return
	}

	user, err := h.services.Users.Register(c.Request.Context(), currentIdentity(c), service.RegisterUserInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		Role:      entity.Role(req.Role),
		SectionID: req.SectionID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusCreated, user)
}

// UpdateUser handles PUT /api/users/:id
func (h *Handlers) UpdateUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body: %v", err))
		return
	}

	in := service.UpdateUserInput{
		Email:     req.Email,
		SectionID: req.SectionID,
	}
	if req.Role != nil {
		role := entity.Role(*req.Role)
		in.Role = &role
	}

	user, err := h.services.Users.Update(c.Request.Context(), currentIdentity(c), id, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/users/:id
func (h *Handlers) DeleteUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.services.Users.Delete(c.Request.Context(), currentIdentity(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// GetProfile handles GET /api/profile
func (h *Handlers) GetProfile(c *gin.Context) {
	user, err := h.services.Users.Profile(c.Request.Context(), currentIdentity(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, user)
}

// UpdateProfile handles PUT /api/profile
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body: %v", err))
		return
	}

	user, err := h.services.Users.UpdateProfile(c.Request.Context(), currentIdentity(c), service.UpdateProfileInput{
		Email:           req.Email,
		NewPassword:     req.NewPassword,
		CurrentPassword: req.CurrentPassword,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, user)
}

// pathID parses the :id parameter, writing a 400 on failure
func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		respondError(c, h.logger, apperr.Validation("invalid id %q", idStr))
		return 0, false
	}
	return id, true
}

func bindListOptions(c *gin.Context) (port.ListOptions, error) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		return port.ListOptions{}, apperr.Validation("invalid query parameters")
	}

	if req.Limit <= 0 {
		req.Limit = defaultListLimit
	}
	if req.Limit > maxListLimit {
		req.Limit = maxListLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	opts := port.ListOptions{Limit: req.Limit, Offset: req.Offset}
	if req.Status != "" {
		status := entity.Status(req.Status)
		opts.Status = &status
	}
	return opts, nil
}
