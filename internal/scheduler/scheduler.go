package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/LJTian/WrestlingNews/internal/logging"
)

var (
	// ErrBusy 已有一轮采集在运行（本进程或其他进程）
	ErrBusy    = errors.New("ingestion already running")
	ErrStopped = errors.New("scheduler stopped")
)

// Job 一轮采集，ingest.Orchestrator 即为实现
type Job interface {
	Ingest(ctx context.Context, sourceIDs ...uint) (int, error)
}

// Locker 跨进程互斥，storage.Store 基于 Redis SETNX 实现
type Locker interface {
	AcquireIngestLock(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

type Options struct {
	// StartupDelay 启动后延迟执行首轮采集，0 表示不执行
	StartupDelay time.Duration
	LockLease    time.Duration
}

type Scheduler struct {
	cron   *cron.Cron
	job    Job
	locker Locker
	opts   Options

	running  sync.Mutex
	inFlight sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	// mu 保护 stopped 与 startup，并保证 Stop 之后不再有新的 inFlight.Add
	mu      sync.Mutex
	stopped bool
	startup *time.Timer
}

func New(spec string, job Job, locker Locker, opts Options) (*Scheduler, error) {
	cronLog := cron.PrintfLogger(logging.Log)
	c := cron.New(cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   c,
		job:    job,
		locker: locker,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := c.AddFunc(spec, s.tick); err != nil {
		cancel()
		return nil, errors.Wrapf(err, "invalid cron spec %q", spec)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	if s.opts.StartupDelay <= 0 {
		return
	}
	// 延迟执行首轮采集，避免与服务启动争抢资源
	s.mu.Lock()
	if !s.stopped {
		s.startup = time.AfterFunc(s.opts.StartupDelay, s.tick)
	}
	s.mu.Unlock()
}

// Stop 停止调度并通知正在运行的采集在条目之间结束（进行中的抓取不会被中断），等待其提交完成或 ctx 到期
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	if s.startup != nil {
		s.startup.Stop()
	}
	s.mu.Unlock()

	s.cancel()
	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce 对外暴露的单次执行入口，供管理接口与命令行手动触发
func (s *Scheduler) RunOnce(ctx context.Context, sourceIDs ...uint) (int, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0, ErrStopped
	}
	if !s.running.TryLock() {
		s.mu.Unlock()
		return 0, ErrBusy
	}
	s.inFlight.Add(1)
	s.mu.Unlock()
	defer s.running.Unlock()
	defer s.inFlight.Done()

	if s.locker != nil {
		release, ok, err := s.locker.AcquireIngestLock(ctx, s.opts.LockLease)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, ErrBusy
		}
		defer release()
	}

	// 调用方取消或调度器停止都会让采集在条目之间结束
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	return s.job.Ingest(runCtx, sourceIDs...)
}

func (s *Scheduler) tick() {
	logging.Log.Info("start ingest job...")
	start := time.Now()
	n, err := s.RunOnce(s.ctx)
	switch {
	case errors.Is(err, ErrBusy):
		logging.Log.Info("ingest job skipped: previous run still in progress")
	case err != nil:
		logging.Log.Warnf("ingest job finished with error after %s: inserted=%d err=%v", time.Since(start).Round(time.Millisecond), n, err)
	default:
		logging.Log.Infof("ingest job done: inserted=%d took=%s", n, time.Since(start).Round(time.Millisecond))
	}
}
