package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/service"
	"github.com/d60-Lab/flare-sync/pkg/response"
)

type addAccountRequest struct {
	Platform   string `json:"platform" binding:"required,oneof=mastodon misskey bluesky xqt vvo"`
	AccountKey string `json:"account_key" binding:"required"`
	Token      string `json:"token"`
	AccessJwt  string `json:"access_jwt"`
	AuthToken  string `json:"auth_token"`
	CsrfToken  string `json:"csrf_token"`
	Cookie     string `json:"cookie"`
}

// AddAccount 登记账号，凭据密封后入库
// @Summary 添加账号
// @Tags 账号
// @Accept json
// @Produce json
// @Param request body addAccountRequest true "平台、账号键与凭据"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/accounts [post]
func (h *Handler) AddAccount(c *gin.Context) {
	var req addAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	accountKey, err := model.ParseMicroBlogKey(req.AccountKey)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	err = h.accountSvc.AddAccount(c.Request.Context(), model.PlatformType(req.Platform), accountKey, service.Credential{
		Token:     req.Token,
		AccessJwt: req.AccessJwt,
		AuthToken: req.AuthToken,
		CsrfToken: req.CsrfToken,
		Cookie:    req.Cookie,
	})
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

type accountView struct {
	AccountKey string `json:"account_key"`
	Platform   string `json:"platform"`
}

// ListAccounts 列出已登记账号（不回显凭据）
// @Summary 账号列表
// @Tags 账号
// @Produce json
// @Success 200 {object} response.Response{data=[]accountView}
// @Router /api/v1/accounts [get]
func (h *Handler) ListAccounts(c *gin.Context) {
	accounts, err := h.accountSvc.ListAccounts(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView{
			AccountKey: a.AccountKey.String(),
			Platform:   string(a.PlatformType),
		})
	}
	response.Success(c, views)
}

// RemoveAccount 删除账号
// @Summary 删除账号
// @Tags 账号
// @Produce json
// @Param key path string true "账号键 id@host"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/accounts/{key} [delete]
func (h *Handler) RemoveAccount(c *gin.Context) {
	accountKey, err := model.ParseMicroBlogKey(c.Param("key"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.accountSvc.RemoveAccount(c.Request.Context(), accountKey); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}
