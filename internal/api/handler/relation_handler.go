package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/paging"
	"github.com/d60-Lab/flare-sync/internal/service"
	"github.com/d60-Lab/flare-sync/pkg/response"
)

type relationRequest struct {
	AccountKey string `json:"account_key" binding:"required"`
	UserKey    string `json:"user_key" binding:"required"`
}

func (h *Handler) relationTarget(c *gin.Context) (service.DataSource, model.MicroBlogKey, bool) {
	var req relationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return nil, model.MicroBlogKey{}, false
	}
	accountKey, err := model.ParseMicroBlogKey(req.AccountKey)
	if err != nil {
		response.BadRequest(c, err.Error())
		return nil, model.MicroBlogKey{}, false
	}
	userKey, err := model.ParseMicroBlogKey(req.UserKey)
	if err != nil {
		response.BadRequest(c, err.Error())
		return nil, model.MicroBlogKey{}, false
	}
	ds, err := h.accountSvc.DataSource(c.Request.Context(), accountKey)
	if err != nil {
		response.NotFound(c, err.Error())
		return nil, model.MicroBlogKey{}, false
	}
	return ds, userKey, true
}

func (h *Handler) mutationResult(c *gin.Context, err error) {
	if err == nil {
		response.Success(c, nil)
		return
	}
	if paging.IsLoginExpired(err) {
		response.Unauthorized(c, err.Error())
		return
	}
	response.InternalError(c, err)
}

type relationView struct {
	Following bool `json:"following"`
	Blocking  bool `json:"blocking"`
	Muting    bool `json:"muting"`
}

// GetRelation 查询与目标用户的关系（远端快照同步进本地后返回）
// @Summary 查询关系
// @Tags 关系
// @Produce json
// @Param account_key query string true "登录账号 key"
// @Param user_key query string true "目标用户 key"
// @Success 200 {object} response.Response{data=relationView}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/relations [get]
func (h *Handler) GetRelation(c *gin.Context) {
	accountKey, err := model.ParseMicroBlogKey(c.Query("account_key"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	userKey, err := model.ParseMicroBlogKey(c.Query("user_key"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ds, err := h.accountSvc.DataSource(c.Request.Context(), accountKey)
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}
	lookup, ok := ds.(service.RelationLookup)
	if !ok {
		response.BadRequest(c, "platform does not support relation lookup")
		return
	}
	rel, err := lookup.Relation(c.Request.Context(), userKey)
	if err != nil {
		if paging.IsLoginExpired(err) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, relationView{
		Following: rel.Following,
		Blocking:  rel.Blocking,
		Muting:    rel.Muting,
	})
}

// Follow 关注（本地关系先行更新，远端失败回滚）
// @Summary 关注用户
// @Tags 关系
// @Accept json
// @Produce json
// @Param request body relationRequest true "账号与目标用户"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/relations/follow [post]
func (h *Handler) Follow(c *gin.Context) {
	ds, userKey, ok := h.relationTarget(c)
	if !ok {
		return
	}
	mut, ok := ds.(service.RelationMutator)
	if !ok {
		response.BadRequest(c, "platform does not support follow")
		return
	}
	h.mutationResult(c, mut.Follow(c.Request.Context(), userKey))
}

// Unfollow 取消关注
// @Summary 取消关注
// @Tags 关系
// @Accept json
// @Produce json
// @Param request body relationRequest true "账号与目标用户"
// @Success 200 {object} response.Response
// @Router /api/v1/relations/unfollow [post]
func (h *Handler) Unfollow(c *gin.Context) {
	ds, userKey, ok := h.relationTarget(c)
	if !ok {
		return
	}
	mut, ok := ds.(service.RelationMutator)
	if !ok {
		response.BadRequest(c, "platform does not support follow")
		return
	}
	h.mutationResult(c, mut.Unfollow(c.Request.Context(), userKey))
}

// Block 拉黑
// @Summary 拉黑用户
// @Tags 关系
// @Accept json
// @Produce json
// @Param request body relationRequest true "账号与目标用户"
// @Success 200 {object} response.Response
// @Router /api/v1/relations/block [post]
func (h *Handler) Block(c *gin.Context) {
	ds, userKey, ok := h.relationTarget(c)
	if !ok {
		return
	}
	mut, ok := ds.(service.BlockMutator)
	if !ok {
		response.BadRequest(c, "platform does not support block")
		return
	}
	h.mutationResult(c, mut.Block(c.Request.Context(), userKey))
}

// Unblock 取消拉黑
// @Summary 取消拉黑
// @Tags 关系
// @Accept json
// @Produce json
// @Param request body relationRequest true "账号与目标用户"
// @Success 200 {object} response.Response
// @Router /api/v1/relations/unblock [post]
func (h *Handler) Unblock(c *gin.Context) {
	ds, userKey, ok := h.relationTarget(c)
	if !ok {
		return
	}
	mut, ok := ds.(service.BlockMutator)
	if !ok {
		response.BadRequest(c, "platform does not support block")
		return
	}
	h.mutationResult(c, mut.Unblock(c.Request.Context(), userKey))
}

// Mute 静音
// @Summary 静音用户
// @Tags 关系
// @Accept json
// @Produce json
// @Param request body relationRequest true "账号与目标用户"
// @Success 200 {object} response.Response
// @Router /api/v1/relations/mute [post]
func (h *Handler) Mute(c *gin.Context) {
	ds, userKey, ok := h.relationTarget(c)
	if !ok {
		return
	}
	mut, ok := ds.(service.MuteMutator)
	if !ok {
		response.BadRequest(c, "platform does not support mute")
		return
	}
	h.mutationResult(c, mut.Mute(c.Request.Context(), userKey))
}

// Unmute 取消静音
// @Summary 取消静音
// @Tags 关系
// @Accept json
// @Produce json
// @Param request body relationRequest true "账号与目标用户"
// @Success 200 {object} response.Response
// @Router /api/v1/relations/unmute [post]
func (h *Handler) Unmute(c *gin.Context) {
	ds, userKey, ok := h.relationTarget(c)
	if !ok {
		return
	}
	mut, ok := ds.(service.MuteMutator)
	if !ok {
		response.BadRequest(c, "platform does not support mute")
		return
	}
	h.mutationResult(c, mut.Unmute(c.Request.Context(), userKey))
}
