package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/notify"
)

func setupStore(t *testing.T) (*CacheStore, notify.Hub) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.DbStatus{}, &model.DbUser{}, &model.DbEmoji{}, &model.DbPagingTimeline{},
	))
	hub := notify.NewChannelHub()
	t.Cleanup(func() { _ = hub.Close() })
	return NewCacheStore(db, hub), hub
}

func seedStatuses(t *testing.T, store *CacheStore, host string, ids ...string) {
	t.Helper()
	rows := make([]model.DbStatus, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, model.DbStatus{
			StatusKey:    model.NewMicroBlogKey(id, host),
			PlatformType: model.PlatformMastodon,
			Content:      fmt.Sprintf(`{"id":%q}`, id),
			CreatedAt:    time.Now(),
		})
	}
	require.NoError(t, store.UpsertStatuses(context.Background(), rows))
}

func pagingRow(accountType model.AccountType, pagingKey, id, host string, sortID int64, pinned bool) model.DbPagingTimeline {
	return model.DbPagingTimeline{
		AccountType: accountType,
		PagingKey:   pagingKey,
		StatusKey:   model.NewMicroBlogKey(id, host),
		SortID:      sortID,
		Pinned:      pinned,
	}
}

func TestReplaceWindowOrderAndIdempotence(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	account := model.AccountTypeSpecific(model.NewMicroBlogKey("1", "h"))
	const key = "home_1@h"

	seedStatuses(t, store, "h", "a", "b", "c", "p")
	window := []model.DbPagingTimeline{
		pagingRow(account, key, "p", "h", 1, true),
		pagingRow(account, key, "a", "h", 300, false),
		pagingRow(account, key, "b", "h", 200, false),
		pagingRow(account, key, "c", "h", 100, false),
	}

	require.NoError(t, store.ReplacePagingWindow(ctx, account, key, window))

	// 两次相同刷新不产生重复行
	again := make([]model.DbPagingTimeline, len(window))
	copy(again, window)
	for i := range again {
		again[i].ID = ""
	}
	require.NoError(t, store.ReplacePagingWindow(ctx, account, key, again))

	cnt, err := store.CountPaging(ctx, account, key)
	require.NoError(t, err)
	assert.EqualValues(t, 4, cnt)

	// pinned 优先，其余按 sort_id 降序
	items, err := store.GetPage(ctx, account, key, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 4)
	got := make([]string, len(items))
	for i, it := range items {
		got[i] = it.Status.StatusKey.ID
	}
	assert.Equal(t, []string{"p", "a", "b", "c"}, got)
}

func TestAppendPagingIsIdempotent(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	account := model.AccountTypeSpecific(model.NewMicroBlogKey("1", "h"))
	const key = "home_1@h"

	seedStatuses(t, store, "h", "a", "b")
	rows := []model.DbPagingTimeline{
		pagingRow(account, key, "a", "h", 2, false),
		pagingRow(account, key, "b", "h", 1, false),
	}
	require.NoError(t, store.AppendPaging(ctx, rows))

	dup := []model.DbPagingTimeline{pagingRow(account, key, "b", "h", 1, false)}
	require.NoError(t, store.AppendPaging(ctx, dup))

	cnt, err := store.CountPaging(ctx, account, key)
	require.NoError(t, err)
	assert.EqualValues(t, 2, cnt)
}

func TestEntitySharedAcrossTimelines(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	account := model.AccountTypeSpecific(model.NewMicroBlogKey("1", "h"))

	seedStatuses(t, store, "h", "shared")
	// 同一 status 进两条时间线，实体只存一份
	seedStatuses(t, store, "h", "shared")
	require.NoError(t, store.AppendPaging(ctx, []model.DbPagingTimeline{
		pagingRow(account, "home_1@h", "shared", "h", 1, false),
		pagingRow(account, "notifications_1@h", "shared", "h", 1, false),
	}))

	// 清掉一条时间线的索引行
	require.NoError(t, store.DeletePaging(ctx, account, "home_1@h"))

	// 实体仍在，另一条时间线不受影响
	_, err := store.FindStatus(ctx, model.NewMicroBlogKey("shared", "h"))
	require.NoError(t, err)
	items, err := store.GetPage(ctx, account, "notifications_1@h", 10, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDeleteStatusCascadesPagingRows(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	account := model.AccountTypeSpecific(model.NewMicroBlogKey("1", "h"))

	seedStatuses(t, store, "h", "gone", "stays")
	require.NoError(t, store.AppendPaging(ctx, []model.DbPagingTimeline{
		pagingRow(account, "home_1@h", "gone", "h", 2, false),
		pagingRow(account, "home_1@h", "stays", "h", 1, false),
		pagingRow(account, "user_x_1@h", "gone", "h", 2, false),
	}))

	require.NoError(t, store.DeleteStatus(ctx, model.NewMicroBlogKey("gone", "h")))

	_, err := store.FindStatus(ctx, model.NewMicroBlogKey("gone", "h"))
	assert.ErrorIs(t, err, ErrNotFound)
	items, err := store.GetPage(ctx, account, "home_1@h", 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "stays", items[0].Status.StatusKey.ID)
	cnt, err := store.CountPaging(ctx, account, "user_x_1@h")
	require.NoError(t, err)
	assert.Zero(t, cnt)
}

func TestWritesPublishNotifications(t *testing.T) {
	store, hub := setupStore(t)
	ctx := context.Background()
	account := model.AccountTypeSpecific(model.NewMicroBlogKey("1", "h"))
	const key = "home_1@h"

	ch, cancel := hub.Subscribe(notify.Topic(account.String(), key))
	defer cancel()

	seedStatuses(t, store, "h", "a")
	require.NoError(t, store.ReplacePagingWindow(ctx, account, key, []model.DbPagingTimeline{
		pagingRow(account, key, "a", "h", 1, false),
	}))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification after ReplacePagingWindow")
	}
}

func TestSearchStatusText(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertStatuses(ctx, []model.DbStatus{
		{StatusKey: model.NewMicroBlogKey("1", "h"), PlatformType: model.PlatformMastodon, Text: "hello flare world"},
		{StatusKey: model.NewMicroBlogKey("2", "h"), PlatformType: model.PlatformMastodon, Text: "unrelated"},
	}))
	rows, err := store.SearchStatusText(ctx, "flare", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].StatusKey.ID)
}
