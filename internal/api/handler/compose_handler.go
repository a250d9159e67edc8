package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/flare-sync/internal/datasource/bluesky"
	"github.com/d60-Lab/flare-sync/internal/datasource/mastodon"
	"github.com/d60-Lab/flare-sync/internal/datasource/misskey"
	"github.com/d60-Lab/flare-sync/internal/datasource/vvo"
	"github.com/d60-Lab/flare-sync/internal/datasource/xqt"
	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/pkg/response"
)

type composeRequest struct {
	AccountKey  string `json:"account_key" binding:"required"`
	Text        string `json:"text" binding:"required"`
	ReplyTo     string `json:"reply_to"`
	SpoilerText string `json:"spoiler_text"`
	Visibility  string `json:"visibility"`
}

// Compose 发帖。reply_to 是被回复 status 的平台内 id
// （Bluesky 传 at-uri）。
// @Summary 发帖
// @Tags 状态
// @Accept json
// @Produce json
// @Param request body composeRequest true "账号与内容"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/statuses [post]
func (h *Handler) Compose(c *gin.Context) {
	var req composeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	accountKey, err := model.ParseMicroBlogKey(req.AccountKey)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ds, err := h.accountSvc.DataSource(c.Request.Context(), accountKey)
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	switch d := ds.(type) {
	case *mastodon.DataSource:
		err = d.Compose(ctx, mastodon.PostStatusRequest{
			Status:      req.Text,
			InReplyToID: req.ReplyTo,
			SpoilerText: req.SpoilerText,
			Visibility:  req.Visibility,
		})
	case *misskey.DataSource:
		err = d.Compose(ctx, misskey.CreateNoteRequest{
			Text:       req.Text,
			CW:         req.SpoilerText,
			Visibility: req.Visibility,
			ReplyID:    req.ReplyTo,
		})
	case *bluesky.DataSource:
		err = d.Compose(ctx, req.Text, req.ReplyTo)
	case *xqt.DataSource:
		err = d.Compose(ctx, req.Text, req.ReplyTo)
	case *vvo.DataSource:
		err = d.Compose(ctx, req.Text)
	default:
		response.BadRequest(c, "platform does not support compose")
		return
	}
	h.mutationResult(c, err)
}
