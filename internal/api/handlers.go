package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"synbot/internal/auth"
	"synbot/internal/session"
)

// Handler wires HTTP routes to the session controller.
type Handler struct {
	controller *session.Controller
	auth       *auth.Manager
	logger     zerolog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(controller *session.Controller, authManager *auth.Manager, logger zerolog.Logger) *Handler {
	return &Handler{
		controller: controller,
		auth:       authManager,
		logger:     logger,
	}
}

// check token session matches the username in the path
func (h *Handler) requirePathUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := auth.SessionFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		if c.Param("username") != sess.Username() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user mismatch"})
			return
		}
		c.Next()
	}
}

func (h *Handler) authorizedSession(c *gin.Context) (*session.Session, bool) {
	sess, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return nil, false
	}
	return sess, true
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/users/register", h.registerUser)
	api.POST("/users/login", h.loginUser)
	api.POST("/users/reset-password", h.resetPassword)

	authMW := h.auth.Middleware()
	userRoutes := api.Group("/users/:username")
	userRoutes.Use(authMW, h.requirePathUser(), h.auth.CSRFMiddleware())
	userRoutes.POST("/display-name", h.setDisplayName)
	userRoutes.GET("/chats", h.listChats)
	userRoutes.POST("/chats", h.newChat)
	userRoutes.POST("/chats/switch", h.switchChat)
	userRoutes.GET("/chats/messages", h.getMessages)
	userRoutes.POST("/chats/turn", h.submitTurn)
	userRoutes.GET("/chats/export", h.exportChat)
	userRoutes.POST("/logout", h.logoutUser)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.controller.Register(c.Request.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, session.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"username": req.Username})
}

func (h *Handler) loginUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	sess, err := h.controller.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	authToken, err := h.auth.Issue(c.Request.Context(), sess)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	h.setAuthCookies(c, authToken, csrfToken)
	c.JSON(http.StatusOK, gin.H{
		"username":   sess.Username(),
		"auth_token": authToken,
	})
}

type resetPasswordRequest struct {
	Username    string `json:"username"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.controller.ResetPassword(c.Request.Context(), req.Username, req.NewPassword); err != nil {
		if errors.Is(err, session.ErrUnknownUsername) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type displayNameRequest struct {
	Name string `json:"name"`
}

func (h *Handler) setDisplayName(c *gin.Context) {
	sess, ok := h.authorizedSession(c)
	if !ok {
		return
	}
	var req displayNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.controller.SetDisplayName(c.Request.Context(), sess, req.Name); err != nil {
		h.writeControllerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"display_name": sess.DisplayName(),
		"current_chat": sess.ActiveThread(),
	})
}

func (h *Handler) listChats(c *gin.Context) {
	sess, ok := h.authorizedSession(c)
	if !ok {
		return
	}
	names := sess.ThreadNames()
	if names == nil {
		c.JSON(http.StatusConflict, gin.H{"error": session.ErrNotActive.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chats":   names,
		"current": sess.ActiveThread(),
	})
}

type chatNameRequest struct {
	Name string `json:"name"`
}

func (h *Handler) newChat(c *gin.Context) {
	sess, ok := h.authorizedSession(c)
	if !ok {
		return
	}
	var req chatNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	key, err := h.controller.NewChat(c.Request.Context(), sess, req.Name)
	if err != nil {
		h.writeControllerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chat": key})
}

func (h *Handler) switchChat(c *gin.Context) {
	sess, ok := h.authorizedSession(c)
	if !ok {
		return
	}
	var req chatNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.controller.SwitchChat(sess, req.Name); err != nil {
		h.writeControllerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"current": sess.ActiveThread()})
}

func (h *Handler) getMessages(c *gin.Context) {
	sess, ok := h.authorizedSession(c)
	if !ok {
		return
	}
	if sess.State() != session.StateActive {
		c.JSON(http.StatusConflict, gin.H{"error": session.ErrNotActive.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chat":     sess.ActiveThread(),
		"messages": sess.Messages(),
	})
}

// submitTurn accepts a multipart form: a "content" field and an optional
// "image" file consumed only by this turn's generation request.
func (h *Handler) submitTurn(c *gin.Context) {
	sess, ok := h.authorizedSession(c)
	if !ok {
		return
	}
	content := c.PostForm("content")
	var attachment []byte
	if file, err := c.FormFile("image"); err == nil && file != nil {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read image upload"})
			return
		}
		attachment, err = io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read image upload"})
			return
		}
	}

	reply, err := h.controller.SubmitTurn(c.Request.Context(), sess, content, attachment)
	if err != nil {
		h.writeControllerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (h *Handler) exportChat(c *gin.Context) {
	sess, ok := h.authorizedSession(c)
	if !ok {
		return
	}
	data, filename, err := h.controller.Export(sess)
	if err != nil {
		h.writeControllerError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *Handler) logoutUser(c *gin.Context) {
	sess, ok := h.authorizedSession(c)
	if !ok {
		return
	}
	if token, ok := auth.TokenFromContext(c); ok {
		h.auth.Revoke(c.Request.Context(), token)
	}
	h.controller.Logout(sess)
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

// writeControllerError maps controller sentinels onto HTTP statuses.
// Anything unknown is a persistence or generation-side failure and
// surfaces as a 500 rather than being swallowed.
func (h *Handler) writeControllerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrThreadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrDisplayNameRequired), errors.Is(err, session.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	maxAge := int(h.auth.TokenTTL().Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.auth.AuthCookieName(), authToken, maxAge, "/", "", false, true)
	c.SetCookie(h.auth.CSRFCookieName(), csrfToken, maxAge, "/", "", false, false)
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.auth.AuthCookieName(), "", -1, "/", "", false, true)
	c.SetCookie(h.auth.CSRFCookieName(), "", -1, "/", "", false, false)
}
