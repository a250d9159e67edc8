package datasource

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/repository"
	"github.com/d60-Lab/flare-sync/pkg/logger"
)

type rollbackJob struct {
	accountType model.AccountType
	userKey     model.MicroBlogKey
	updates     map[string]any
}

// RollbackQueue 关系回滚的有界异步执行器。远端写失败后本地快照
// 要回退，但不让回退的数据库写阻塞调用方的错误返回路径。
type RollbackQueue struct {
	relations repository.RelationRepository
	ch        chan rollbackJob
}

func NewRollbackQueue(relations repository.RelationRepository, queueSize int) *RollbackQueue {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &RollbackQueue{relations: relations, ch: make(chan rollbackJob, queueSize)}
}

func (q *RollbackQueue) apply(job rollbackJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.relations.SetFlags(ctx, job.accountType, job.userKey, job.updates); err != nil {
		logger.Warn("relation rollback failed",
			zap.String("user", job.userKey.String()), zap.Error(err))
	}
}

// Start 启动 worker，返回停止函数。回退一条都不能丢：
// 收到停止信号后 worker 先把队列里剩余的 job 清干净再退出。
func (q *RollbackQueue) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 2
	}
	stopCh := make(chan struct{})
	done := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for {
				select {
				case job := <-q.ch:
					q.apply(job)
				case <-stopCh:
					for {
						select {
						case job := <-q.ch:
							q.apply(job)
						default:
							return
						}
					}
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		close(stopCh)
		for i := 0; i < workers; i++ {
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
				return nil
			}
		}
		return nil
	}
}

// Enqueue 队列满时退化为同步回滚，不丢回退。
func (q *RollbackQueue) Enqueue(ctx context.Context, accountType model.AccountType, userKey model.MicroBlogKey, updates map[string]any) {
	select {
	case q.ch <- rollbackJob{accountType: accountType, userKey: userKey, updates: updates}:
	default:
		logger.Warn("rollback queue full, applying inline", zap.String("user", userKey.String()))
		if err := q.relations.SetFlags(ctx, accountType, userKey, updates); err != nil {
			logger.Warn("relation rollback failed",
				zap.String("user", userKey.String()), zap.Error(err))
		}
	}
}

// QueueLen 当前队列长度（采样值）
func (q *RollbackQueue) QueueLen() int { return len(q.ch) }
