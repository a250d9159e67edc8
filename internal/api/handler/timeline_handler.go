package handler

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/paging"
	"github.com/d60-Lab/flare-sync/internal/repository"
	"github.com/d60-Lab/flare-sync/internal/service"
	"github.com/d60-Lab/flare-sync/pkg/response"
)

type openTimelineRequest struct {
	AccountKey string `json:"account_key" binding:"required"`
	Kind       string `json:"kind" binding:"required"`
	Param      string `json:"param"`
}

type openTimelineResponse struct {
	SessionID string `json:"session_id"`
}

// OpenTimeline 打开一个时间线会话并返回 session id。
// pager 立即开始缓存回放与按策略的初始加载。
// @Summary 打开时间线
// @Tags 时间线
// @Accept json
// @Produce json
// @Param request body openTimelineRequest true "账号、时间线种类与参数"
// @Success 200 {object} response.Response{data=openTimelineResponse}
// @Failure 400 {object} response.Response
// @Router /api/v1/timelines [post]
func (h *Handler) OpenTimeline(c *gin.Context) {
	var req openTimelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	accountKey, err := model.ParseMicroBlogKey(req.AccountKey)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	sessionID, err := h.timelineSvc.Open(c.Request.Context(), accountKey, req.Kind, req.Param)
	if err != nil {
		if errors.Is(err, service.ErrUnknownTimeline) || errors.Is(err, service.ErrParamRequired) {
			response.BadRequest(c, err.Error())
			return
		}
		response.NotFound(c, err.Error())
		return
	}
	response.Success(c, openTimelineResponse{SessionID: sessionID})
}

type snapshotResponse struct {
	State                  string `json:"state"`
	Error                  string `json:"error,omitempty"`
	ItemCount              int    `json:"item_count"`
	AppendState            string `json:"append_state"`
	AppendError            string `json:"append_error,omitempty"`
	EndOfPaginationReached bool   `json:"end_of_pagination_reached"`
	LoginExpired           bool   `json:"login_expired,omitempty"`
}

func loadStateName(s paging.LoadState) string {
	switch s {
	case paging.StateLoading:
		return "loading"
	case paging.StateEmpty:
		return "empty"
	case paging.StateSuccess:
		return "success"
	case paging.StateError:
		return "error"
	default:
		return "unknown"
	}
}

func appendStateName(s paging.AppendState) string {
	switch s {
	case paging.AppendLoading:
		return "loading"
	case paging.AppendError:
		return "error"
	default:
		return "not_loading"
	}
}

func toSnapshotResponse(snap paging.Snapshot) snapshotResponse {
	resp := snapshotResponse{
		State:                  loadStateName(snap.State),
		ItemCount:              snap.ItemCount,
		AppendState:            appendStateName(snap.AppendState),
		EndOfPaginationReached: snap.EndOfPaginationReached,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
		resp.LoginExpired = paging.IsLoginExpired(snap.Err)
	}
	if snap.AppendErr != nil {
		resp.AppendError = snap.AppendErr.Error()
	}
	return resp
}

// TimelineSnapshot 读取会话状态快照
// @Summary 时间线状态
// @Tags 时间线
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} response.Response{data=snapshotResponse}
// @Failure 404 {object} response.Response
// @Router /api/v1/timelines/{id} [get]
func (h *Handler) TimelineSnapshot(c *gin.Context) {
	snap, err := h.timelineSvc.Snapshot(c.Param("id"))
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}
	response.Success(c, toSnapshotResponse(snap))
}

type timelineItem struct {
	StatusKey string          `json:"status_key"`
	SortID    int64           `json:"sort_id"`
	Pinned    bool            `json:"pinned"`
	Content   json.RawMessage `json:"content"`
	Text      string          `json:"text,omitempty"`
}

func toTimelineItems(items []repository.TimelineItem) []timelineItem {
	out := make([]timelineItem, 0, len(items))
	for _, it := range items {
		out = append(out, timelineItem{
			StatusKey: it.Status.StatusKey.String(),
			SortID:    it.Timeline.SortID,
			Pinned:    it.Timeline.Pinned,
			Content:   json.RawMessage(it.Status.Content),
			Text:      it.Status.Text,
		})
	}
	return out
}

// TimelineItems 读取一段行；读到尾部边界会触发追加拉取。
// @Summary 时间线行
// @Tags 时间线
// @Produce json
// @Param id path string true "session id"
// @Param offset query int false "起始行"
// @Param limit query int false "行数"
// @Success 200 {object} response.Response{data=[]timelineItem}
// @Failure 404 {object} response.Response
// @Router /api/v1/timelines/{id}/items [get]
func (h *Handler) TimelineItems(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	items, err := h.timelineSvc.Items(c.Param("id"), offset, limit)
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}
	response.Success(c, toTimelineItems(items))
}

// RefreshTimeline 触发刷新；在途拉取时合并为 no-op。
// @Summary 刷新时间线
// @Tags 时间线
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} response.Response
// @Router /api/v1/timelines/{id}/refresh [post]
func (h *Handler) RefreshTimeline(c *gin.Context) {
	if err := h.timelineSvc.Refresh(c.Param("id")); err != nil {
		response.NotFound(c, err.Error())
		return
	}
	response.Success(c, nil)
}

// RetryTimeline 重发失败的那次请求
// @Summary 重试时间线
// @Tags 时间线
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} response.Response
// @Router /api/v1/timelines/{id}/retry [post]
func (h *Handler) RetryTimeline(c *gin.Context) {
	if err := h.timelineSvc.Retry(c.Param("id")); err != nil {
		response.NotFound(c, err.Error())
		return
	}
	response.Success(c, nil)
}

// CloseTimeline 关闭会话，释放缓存观察并取消在途拉取
// @Summary 关闭时间线
// @Tags 时间线
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} response.Response
// @Router /api/v1/timelines/{id} [delete]
func (h *Handler) CloseTimeline(c *gin.Context) {
	if err := h.timelineSvc.Close(c.Param("id")); err != nil {
		response.NotFound(c, err.Error())
		return
	}
	response.Success(c, nil)
}
