package bluesky

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/repository"
)

func setupRelations(t *testing.T) repository.RelationRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.DbRelation{}))
	return repository.NewRelationRepository(db)
}

// viewer 里的 following/blocking 是记录 URI，非空才算生效
func TestRelationMapsViewerURIsToFlags(t *testing.T) {
	svc := testService(t, signedJwt(t, time.Now().Add(time.Hour)), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/xrpc/app.bsky.actor.getProfile", r.URL.Path)
		require.Equal(t, "did:plc:bob", r.URL.Query().Get("actor"))
		var out ProfileView
		out.DID = "did:plc:bob"
		out.Viewer.Following = "at://did:plc:alice/app.bsky.graph.follow/3k"
		out.Viewer.Muted = true
		json.NewEncoder(w).Encode(out)
	}))
	relations := setupRelations(t)
	d := &DataSource{
		accountKey:  svc.accountKey,
		accountType: model.AccountTypeSpecific(svc.accountKey),
		svc:         svc,
		relations:   relations,
	}

	userKey := model.MicroBlogKey{ID: "did:plc:bob", Host: "bsky.social"}
	rel, err := d.Relation(context.Background(), userKey)
	require.NoError(t, err)
	assert.True(t, rel.Following)
	assert.False(t, rel.Blocking)
	assert.True(t, rel.Muting)

	stored, err := relations.Get(context.Background(), d.accountType, userKey)
	require.NoError(t, err)
	assert.Equal(t, rel.Following, stored.Following)
	assert.Equal(t, rel.Muting, stored.Muting)
}
