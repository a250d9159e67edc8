package datasource

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/repository"
	"github.com/d60-Lab/flare-sync/pkg/logger"
)

var rollbackQueue atomic.Pointer[RollbackQueue]

// SetRollbackQueue 注册进程级回滚队列；不注册则回滚同步执行。
func SetRollbackQueue(q *RollbackQueue) {
	rollbackQueue.Store(q)
}

// OptimisticRelation 乐观更新：先写本地关系快照给 UI 立即反馈，
// 远端调用失败时回滚。失败与回滚之间存在短暂的错误展示窗口，属预期代价。
func OptimisticRelation(
	ctx context.Context,
	relations repository.RelationRepository,
	accountType model.AccountType,
	userKey model.MicroBlogKey,
	updates map[string]any,
	rollback map[string]any,
	call func(ctx context.Context) error,
) error {
	if err := relations.SetFlags(ctx, accountType, userKey, updates); err != nil {
		return err
	}
	if err := call(ctx); err != nil {
		if q := rollbackQueue.Load(); q != nil {
			q.Enqueue(ctx, accountType, userKey, rollback)
		} else if rbErr := relations.SetFlags(ctx, accountType, userKey, rollback); rbErr != nil {
			logger.Warn("relation rollback failed",
				zap.String("user", userKey.String()), zap.Error(rbErr))
		}
		return err
	}
	return nil
}
