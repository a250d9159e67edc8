package handler

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/repository"
	"github.com/d60-Lab/flare-sync/pkg/response"
)

type statusView struct {
	StatusKey string          `json:"status_key"`
	Platform  string          `json:"platform"`
	UserKey   string          `json:"user_key"`
	Content   json.RawMessage `json:"content"`
	Text      string          `json:"text,omitempty"`
}

func toStatusView(st *model.DbStatus) statusView {
	return statusView{
		StatusKey: st.StatusKey.String(),
		Platform:  string(st.PlatformType),
		UserKey:   st.UserKey.String(),
		Content:   json.RawMessage(st.Content),
		Text:      st.Text,
	}
}

// GetStatus 读本地缓存里的一条 status，不触发网络
// @Summary 读缓存 status
// @Tags 状态
// @Produce json
// @Param key path string true "status 键 id@host"
// @Success 200 {object} response.Response{data=statusView}
// @Failure 404 {object} response.Response
// @Router /api/v1/statuses/{key} [get]
func (h *Handler) GetStatus(c *gin.Context) {
	statusKey, err := model.ParseMicroBlogKey(c.Param("key"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	st, err := h.statusRepo.FindStatus(c.Request.Context(), statusKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(c, "status not cached")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, toStatusView(st))
}

// SearchStatuses 本地缓存全文检索（LIKE），离线可用
// @Summary 本地搜索
// @Tags 状态
// @Produce json
// @Param q query string true "检索词"
// @Param limit query int false "行数"
// @Success 200 {object} response.Response{data=[]statusView}
// @Router /api/v1/statuses [get]
func (h *Handler) SearchStatuses(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.BadRequest(c, "q is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	statuses, err := h.statusRepo.SearchStatusText(c.Request.Context(), q, limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	views := make([]statusView, 0, len(statuses))
	for i := range statuses {
		views = append(views, toStatusView(&statuses[i]))
	}
	response.Success(c, views)
}

type emojiView struct {
	Host   string          `json:"host"`
	Emojis json.RawMessage `json:"emojis"`
}

// GetEmojis 读实例自定义表情缓存（随时间线首刷入库）
// @Summary 读实例表情
// @Tags 状态
// @Produce json
// @Param host path string true "实例域名"
// @Success 200 {object} response.Response{data=emojiView}
// @Failure 404 {object} response.Response
// @Router /api/v1/emojis/{host} [get]
func (h *Handler) GetEmojis(c *gin.Context) {
	host := c.Param("host")
	row, err := h.statusRepo.FindEmojis(c.Request.Context(), host)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(c, "emojis not cached")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, emojiView{Host: row.Host, Emojis: json.RawMessage(row.Content)})
}

type deleteStatusRequest struct {
	AccountKey string `json:"account_key" binding:"required"`
	StatusKey  string `json:"status_key" binding:"required"`
}

// DeleteStatus 远端删除并级联清理本地缓存与时间线行
// @Summary 删除 status
// @Tags 状态
// @Accept json
// @Produce json
// @Param request body deleteStatusRequest true "账号与 status 键"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/statuses/delete [post]
func (h *Handler) DeleteStatus(c *gin.Context) {
	var req deleteStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	accountKey, err := model.ParseMicroBlogKey(req.AccountKey)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	statusKey, err := model.ParseMicroBlogKey(req.StatusKey)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ds, err := h.accountSvc.DataSource(c.Request.Context(), accountKey)
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}
	h.mutationResult(c, ds.DeleteStatus(c.Request.Context(), statusKey))
}
