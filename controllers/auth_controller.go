package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/citis/sapro/middleware"
	"github.com/citis/sapro/utils"
)

// AuthController handles login and logout for the single shared credential.
type AuthController struct {
	sessions    *utils.SessionManager
	credential  *utils.Credential
	guard       *utils.LoginGuard
	displayName string
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(sessions *utils.SessionManager, credential *utils.Credential, guard *utils.LoginGuard, displayName string) *AuthController {
	return &AuthController{
		sessions:    sessions,
		credential:  credential,
		guard:       guard,
		displayName: displayName,
	}
}

// Login verifies the credential and issues a session token.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	ip := ctx.ClientIP()
	if a.guard.IsBanned(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, "too many failed login attempts, try again later")
		return
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}

	if !a.credential.Matches(req.Username, req.Password) {
		if a.guard.RecordFailure(ip) {
			utils.Sugar.Warnw("login temporarily banned", "ip", ip)
		}
		utils.Error(ctx, http.StatusUnauthorized, "invalid username or password")
		return
	}
	a.guard.Reset(ip)

	token, err := a.sessions.Issue()
	if err != nil {
		utils.Sugar.Errorw("issue session failed", "error", err)
		utils.Error(ctx, http.StatusInternalServerError, "failed to generate token")
		return
	}

	utils.Sugar.Infow("login", "ip", ip, "sessions", a.sessions.Count())
	utils.OK(ctx, gin.H{
		"token": token,
		"user":  a.displayName,
	})
}

// Logout revokes the presented token. It succeeds whether or not the token was valid.
func (a *AuthController) Logout(ctx *gin.Context) {
	if token := middleware.BearerToken(ctx); token != "" {
		a.sessions.Revoke(token)
	}
	utils.OK(ctx, nil)
}
