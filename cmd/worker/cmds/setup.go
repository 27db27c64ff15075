package cmds

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inacomp/submission-judge/cmd/worker/internal/common"
	"github.com/inacomp/submission-judge/cmd/worker/internal/evaluate"
	"github.com/inacomp/submission-judge/internal/events"
	"github.com/inacomp/submission-judge/internal/logger"
	"github.com/inacomp/submission-judge/internal/store"
	"github.com/inacomp/submission-judge/internal/transcript"
)

// How long a one-off evaluation waits for the relay before publishing anyway
const relayConnectWait = 5 * time.Second

// pipeline owns every client an evaluator needs. close releases them.
type pipeline struct {
	evaluator *evaluate.Evaluator
	publisher events.Publisher
	relay     relayRunner
	// Set when the pipeline was built to record events
	recorder  *transcript.Recorder
	rdb       *redis.Client
	closers   []func() error
}

func (p *pipeline) close() error {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = errors.Join(errs, p.closers[i]())
	}
	return errs
}

type relayRunner interface {
	Run(ctx context.Context) error
	WaitConnected(ctx context.Context) error
}

// withRelay runs work while relay stays connected. The relay is stopped only after work returns,
// so verdicts published while work winds down after ctx is cancelled still reach the relay. A
// relay that fails cancels work. connectWait > 0 holds work back until the relay connects or the
// wait runs out.
func withRelay(
	ctx context.Context,
	relay relayRunner,
	connectWait time.Duration,
	work func(ctx context.Context) error,
) error {
	if relay == nil {
		return work(ctx)
	}

	relayCtx, stopRelay := context.WithCancel(context.WithoutCancel(ctx))
	defer stopRelay()
	workCtx, stopWork := context.WithCancel(ctx)
	defer stopWork()

	relayDone := make(chan error, 1)
	go func() {
		err := relay.Run(relayCtx)
		if err != nil {
			stopWork()
		}
		relayDone <- err
	}()

	if connectWait > 0 {
		waitCtx, cancel := context.WithTimeout(workCtx, connectWait)
		if err := relay.WaitConnected(waitCtx); err != nil {
			logger.Logger.WarnContext(ctx, "relay not connected, events will be dropped", "error", err)
		}
		cancel()
	}

	err := work(workCtx)
	stopRelay()
	return errors.Join(err, <-relayDone)
}

// needsRedis is true when any configured component talks to redis.
func needsRedis() bool {
	return cfg.Queue.Backend == "redis" || cfg.Relay.Mode == "redis"
}

func newPipeline(ctx context.Context, withStore, record bool) (*pipeline, error) {
	p := &pipeline{}

	if needsRedis() {
		p.rdb = common.NewRedisClient(cfg)
		p.closers = append(p.closers, p.rdb.Close)
	}

	publisher, err := common.NewPublisher(cfg, p.rdb)
	if err != nil {
		return nil, errors.Join(err, p.close())
	}
	if relay, ok := publisher.(*events.RelayClient); ok {
		p.relay = relay
	}
	if record {
		p.recorder = transcript.NewRecorder(publisher)
		publisher = p.recorder
	}
	p.publisher = publisher

	judgeClient, err := common.NewJudgeClient(cfg)
	if err != nil {
		return nil, errors.Join(err, p.close())
	}

	var resultStore store.Store = store.Discard{}
	if withStore {
		db, err := common.OpenDB(ctx, cfg)
		if err != nil {
			return nil, errors.Join(err, p.close())
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Join(err, p.close())
		}
		p.closers = append(p.closers, sqlDB.Close)
		resultStore = store.NewGormStore(db)
	} else {
		logger.Logger.WarnContext(ctx, "accepted submissions will not be saved")
	}

	var opts []evaluate.Option
	archiver, err := common.NewArchiver(ctx, cfg)
	if err != nil {
		return nil, errors.Join(err, p.close())
	}
	if archiver != nil {
		opts = append(opts, evaluate.WithArchiver(archiver))
	}

	p.evaluator, err = evaluate.NewEvaluator(
		judgeClient,
		publisher,
		resultStore,
		cfg.Judge.MaxWait,
		opts...,
	)
	if err != nil {
		return nil, errors.Join(err, p.close())
	}

	return p, nil
}
