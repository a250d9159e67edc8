package misskey

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

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

func TestRelationSyncsLocalSnapshot(t *testing.T) {
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users/relation", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "u2", body["userId"])
		json.NewEncoder(w).Encode(Relation{ID: "u2", IsFollowing: true, IsBlocking: true})
	}))
	relations := setupRelations(t)
	d := &DataSource{
		accountKey:  svc.accountKey,
		accountType: model.AccountTypeSpecific(svc.accountKey),
		svc:         svc,
		relations:   relations,
	}

	userKey := model.MicroBlogKey{ID: "u2", Host: "misskey.test"}
	rel, err := d.Relation(context.Background(), userKey)
	require.NoError(t, err)
	assert.True(t, rel.Following)
	assert.True(t, rel.Blocking)
	assert.False(t, rel.Muting)

	stored, err := relations.Get(context.Background(), d.accountType, userKey)
	require.NoError(t, err)
	assert.Equal(t, rel.Following, stored.Following)
	assert.Equal(t, rel.Blocking, stored.Blocking)
}
