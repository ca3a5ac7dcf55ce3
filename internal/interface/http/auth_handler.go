package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-cantina-online/internal/application"
	"github.com/oksasatya/go-cantina-online/internal/domain/entity"
	"github.com/oksasatya/go-cantina-online/internal/interface/middleware"
	"github.com/oksasatya/go-cantina-online/pkg/apperror"
	"github.com/oksasatya/go-cantina-online/pkg/helpers"
	"github.com/oksasatya/go-cantina-online/pkg/response"
	"github.com/oksasatya/go-cantina-online/pkg/validation"
)

const ResetPasswordMessage = "Password has been reset."

type AuthHandler struct {
	Svc     *application.AuthService
	Cookies *helpers.CookieManager
	Logger  *logrus.Logger
}

func NewAuthHandler(svc *application.AuthService, cookies *helpers.CookieManager, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Cookies: cookies, Logger: logger}
}

// UserView is the public projection of a user; the password hash never leaves the server.
type UserView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewUserView(u *entity.User) UserView {
	return UserView{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

type sessionResponse struct {
	User        UserView `json:"user"`
	AccessToken string   `json:"accessToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func meta(c *gin.Context) application.RequestMeta {
	return application.RequestMeta{IP: middleware.ClientIP(c), UserAgent: c.GetHeader("User-Agent")}
}

// bindJSON decodes the body into dst and renders 400 on malformed JSON.
// Field rules are enforced by the services.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Fail(c, apperror.Validation(apperror.ReasonInvalidPayload, "invalid payload").WithDetails(validation.ToDetails(err)))
		return false
	}
	return true
}

func (h *AuthHandler) signedIn(c *gin.Context, status int, res *application.AuthResult) {
	h.Cookies.SetRefresh(c, res.Tokens.RefreshToken, res.Tokens.RefreshTokenExpiry)
	response.JSON(c, status, sessionResponse{User: NewUserView(res.User), AccessToken: res.Tokens.AccessToken})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req application.RegisterInput
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Svc.Register(c.Request.Context(), req, meta(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.signedIn(c, http.StatusCreated, res)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req application.LoginInput
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), req, meta(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.signedIn(c, http.StatusOK, res)
}

// Refresh rotates both tokens using the refresh cookie.
func (h *AuthHandler) Refresh(c *gin.Context) {
	res, err := h.Svc.Refresh(c.Request.Context(), h.Cookies.Refresh(c), meta(c))
	if err != nil {
		if !apperror.HasReason(err, apperror.ReasonMissingToken) {
			h.Cookies.Clear(c)
		}
		response.Fail(c, err)
		return
	}
	h.Cookies.SetRefresh(c, res.Tokens.RefreshToken, res.Tokens.RefreshTokenExpiry)
	response.JSON(c, http.StatusOK, gin.H{"accessToken": res.Tokens.AccessToken})
}

// Logout clears the refresh cookie; it succeeds with or without a session.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.Cookies.Clear(c)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.Svc.Me(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"user": NewUserView(u)})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req application.UpdateProfileInput
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.Svc.UpdateProfile(c.Request.Context(), middleware.UserID(c), req, meta(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"user": NewUserView(u)})
}

// ForgotPassword answers the same way whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Svc.ForgotPassword(c.Request.Context(), req.Email, meta(c)); err != nil {
		response.Fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": application.ForgotPasswordMessage})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req application.ResetPasswordInput
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Svc.ResetPassword(c.Request.Context(), req, meta(c)); err != nil {
		response.Fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": ResetPasswordMessage})
}

func (h *AuthHandler) VerifyResetToken(c *gin.Context) {
	ok, err := h.Svc.VerifyResetToken(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"valid": ok})
}
