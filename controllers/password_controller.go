package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/citis/sapro/stores"
	"github.com/citis/sapro/utils"
)

// PasswordController exposes CRUD over the password vault.
type PasswordController struct {
	store *stores.PasswordStore
}

// NewPasswordController creates a new PasswordController instance.
func NewPasswordController(store *stores.PasswordStore) *PasswordController {
	return &PasswordController{store: store}
}

type passwordRequest struct {
	Service  string `json:"service"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// ListPasswords returns every entry in storage order.
func (p *PasswordController) ListPasswords(ctx *gin.Context) {
	utils.JSON(ctx, p.store.List())
}

// CreatePassword stores a new entry.
func (p *PasswordController) CreatePassword(ctx *gin.Context) {
	var req passwordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}
	entry, err := p.store.Create(req.Service, req.Username, req.Password)
	if err != nil {
		respondStoreError(ctx, err, "create password", "password not found")
		return
	}
	utils.JSON(ctx, entry)
}

// UpdatePassword replaces service, username and password of an entry.
func (p *PasswordController) UpdatePassword(ctx *gin.Context) {
	var req passwordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}
	entry, err := p.store.Update(ctx.Param("id"), req.Service, req.Username, req.Password)
	if err != nil {
		respondStoreError(ctx, err, "update password", "password not found")
		return
	}
	utils.JSON(ctx, entry)
}

// DeletePassword removes an entry. Unknown ids succeed.
func (p *PasswordController) DeletePassword(ctx *gin.Context) {
	if err := p.store.Delete(ctx.Param("id")); err != nil {
		respondStoreError(ctx, err, "delete password", "password not found")
		return
	}
	utils.OK(ctx, nil)
}
