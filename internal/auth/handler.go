package auth

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Display names rounds use for masking. Nobody may register as one.
var reservedNames = map[string]struct{}{
	"you":     {},
	"not you": {},
}

func isReserved(name string) bool {
	_, ok := reservedNames[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

type Handler struct {
	Repo   *Repo
	Tokens TokenService
}

func NewHandler(repo *Repo, tokens TokenService) *Handler {
	return &Handler{Repo: repo, Tokens: tokens}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.register)
	rg.POST("/login", h.login)

	authed := rg.Group("", AuthMiddleware(h.Tokens, h.Repo))
	authed.POST("/change-password", h.changePassword)
	authed.POST("/logout", h.logout)
}

// RegisterUserRoutes mounts /users routes on an already authenticated group.
func (h *Handler) RegisterUserRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

type userResp struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Provider string `json:"provider"`
	IsAdmin  bool   `json:"is_admin"`
}

type sessionResp struct {
	User      userResp `json:"user"`
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
}

func toResp(ts TokenService, u *User) userResp {
	return userResp{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Provider: u.Provider,
		IsAdmin:  ts.admin(u.Email),
	}
}

func newSession(ts TokenService, u *User) (sessionResp, error) {
	token, exp, err := ts.Sign(u)
	if err != nil {
		return sessionResp{}, err
	}
	return sessionResp{User: toResp(ts, u), Token: token, ExpiresAt: exp.UTC().Format(time.RFC3339)}, nil
}

func (h *Handler) writeSession(c *gin.Context, status int, u *User) {
	s, err := newSession(h.Tokens, u)
	if err != nil {
		log.Printf("[auth] sign token for %s: %v", u.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}
	c.JSON(status, s)
}

// currentUser loads the user behind the request's claims. It writes the
// error response itself and returns nil on failure.
func (h *Handler) currentUser(c *gin.Context) *User {
	claims := MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return nil
	}
	u, err := h.Repo.GetByID(c.Request.Context(), claims.UserID)
	switch {
	case err != nil:
		log.Printf("[auth] load user %s: %v", claims.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load user failed"})
		return nil
	case u == nil:
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return nil
	}
	return u
}

func hashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func checkPassword(u *User, pw string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(pw)) == nil
}

type registerReq struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username 3-30 chars, valid email and password 8-72 chars required"})
		return
	}
	name := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if isReserved(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is reserved"})
		return
	}

	ctx := c.Request.Context()
	if u, _ := h.Repo.GetByEmail(ctx, email); u != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
		return
	}
	if u, _ := h.Repo.GetByUsername(ctx, name); u != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash failed"})
		return
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     name,
		Email:        email,
		PasswordHash: hash,
		Provider:     ProviderLocal,
	}
	if err := h.Repo.CreateUser(ctx, *u); err != nil {
		log.Printf("[auth] create user %s: %v", email, err)
		c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
		return
	}
	h.writeSession(c, http.StatusCreated, u)
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	u, err := h.Repo.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		log.Printf("[auth] login lookup: %v", err)
	}
	if !checkPassword(u, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	h.writeSession(c, http.StatusOK, u)
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=72"`
}

// changePassword also revokes every token issued before it.
func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "old password and new password of 8-72 chars required"})
		return
	}
	u := h.currentUser(c)
	if u == nil {
		return
	}
	if u.PasswordHash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account signs in with " + u.Provider})
		return
	}
	if !checkPassword(u, req.OldPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash failed"})
		return
	}
	if err := h.Repo.UpdatePasswordAndBumpTokenVersion(c.Request.Context(), u.ID, hash); err != nil {
		log.Printf("[auth] update password %s: %v", u.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update password failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}

func (h *Handler) logout(c *gin.Context) {
	claims := MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if err := h.Repo.BumpTokenVersion(c.Request.Context(), claims.UserID); err != nil {
		log.Printf("[auth] logout %s: %v", claims.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (h *Handler) me(c *gin.Context) {
	if u := h.currentUser(c); u != nil {
		c.JSON(http.StatusOK, toResp(h.Tokens, u))
	}
}
