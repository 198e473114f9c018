package centrifugo

import (
	"context"
	"encoding/json"

	"github.com/centrifugal/gocent/v3"

	"bitbucket.org/novatechnologies/liveview/domain"
	"bitbucket.org/novatechnologies/liveview/infra"
	"bitbucket.org/novatechnologies/liveview/infra/logger"
)

var _ domain.ViewObserver = new(Publisher)

const (
	defaultPublishQueue = 256
	maxBatch            = 32
)

// Publisher republishes region updates to Centrifugo. Updates are queued by
// OnRegionUpdate and sent in batches by Run; when the queue is full the
// update is dropped.
type Publisher struct {
	client *gocent.Client
	prefix string
	queue  chan domain.RegionUpdate
	log    logger.Logger
}

func NewPublisher(cfg infra.CentrifugoConfig) *Publisher {
	client := gocent.New(gocent.Config{
		Addr: cfg.APIAddr,
		Key:  cfg.APIKey,
	})

	return &Publisher{
		client: client,
		prefix: cfg.PublishPrefix,
		queue:  make(chan domain.RegionUpdate, defaultPublishQueue),
		log:    logger.DefaultLogger,
	}
}

func (p *Publisher) WithLogger(lg logger.Logger) *Publisher {
	p.log = lg
	return p
}

func (p *Publisher) OnRegionUpdate(u domain.RegionUpdate) {
	select {
	case p.queue <- u:
	default:
		p.log.WithField("region", u.Region).Warnf("Publish queue is full, update dropped")
	}
}

func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-p.queue:
			p.BatchPublish(ctx, p.drain(u))
		}
	}
}

func (p *Publisher) drain(first domain.RegionUpdate) []domain.RegionUpdate {
	batch := []domain.RegionUpdate{first}
	for len(batch) < maxBatch {
		select {
		case u := <-p.queue:
			batch = append(batch, u)
		default:
			return batch
		}
	}

	return batch
}

// BatchPublish sends updates in one API request, each to the channel of its
// region.
func (p *Publisher) BatchPublish(ctx context.Context, updates []domain.RegionUpdate) {
	log := p.log.WithField("batch", len(updates))

	pipe := p.client.Pipe()
	for _, u := range updates {
		data, err := json.Marshal(u)
		if err != nil {
			log.WithField("region", u.Region).Errorf("Can't marshal update: %v", err)
			continue
		}
		if err := pipe.AddPublish(ChannelName(p.prefix, u.Region), data); err != nil {
			log.Errorf("Error calling AddPublish: %v", err)
		}
	}

	replies, err := p.client.SendPipe(ctx, pipe)
	if err != nil {
		log.Errorf("Error sending pipe: %v", err)
		return
	}
	for _, reply := range replies {
		if reply.Error != nil {
			log.Errorf("Error in pipe reply: %v", reply.Error)
		}
	}
	log.Tracef("Published region updates")
}
