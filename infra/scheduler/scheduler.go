package scheduler

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"bitbucket.org/novatechnologies/liveview/domain"
	"bitbucket.org/novatechnologies/liveview/infra/logger"
)

// Scheduler runs periodic jobs on the event loop: every tick posts the job
// to the dispatcher instead of running it on the cron goroutine.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher domain.Dispatcher
	log        logger.Logger
}

func New(dispatcher domain.Dispatcher, lg logger.Logger) *Scheduler {
	if lg == nil {
		lg = logger.DefaultLogger
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLogger(cronLogger{lg})),
		dispatcher: dispatcher,
		log:        lg,
	}
}

// Register adds job under a cron spec such as "@every 1m".
func (s *Scheduler) Register(name, spec string, job func()) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.dispatcher.Post(job)
	})
	if err != nil {
		return errors.Wrapf(err, "register %s task", name)
	}
	s.log.WithField("task", name).WithField("spec", spec).Debugf("Task registered")

	return nil
}

// Run starts the cron and stops it when ctx is done, waiting for running
// ticks.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.log.Infof("Scheduler started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Infof("Scheduler stopped")

	return nil
}

type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Trace(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(kv []interface{}) logrus.Fields {
	out := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			out[k] = kv[i+1]
		}
	}

	return out
}
