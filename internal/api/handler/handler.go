package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/flare-sync/internal/repository"
	"github.com/d60-Lab/flare-sync/internal/service"
	"github.com/d60-Lab/flare-sync/pkg/response"
)

// Handler HTTP 处理器集合
type Handler struct {
	accountSvc  service.AccountService
	timelineSvc service.TimelineService
	statusRepo  repository.StatusRepository
	store       *repository.CacheStore
}

func New(accountSvc service.AccountService, timelineSvc service.TimelineService, store *repository.CacheStore) *Handler {
	return &Handler{
		accountSvc:  accountSvc,
		timelineSvc: timelineSvc,
		statusRepo:  store,
		store:       store,
	}
}

// ClearCache 维护入口：清空全部缓存行（实体 + 索引）
// @Summary 清空缓存
// @Tags 维护
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/cache/clear [post]
func (h *Handler) ClearCache(c *gin.Context) {
	if err := h.store.ClearCache(c.Request.Context()); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}
