package centrifugo

import (
	"context"
	"fmt"
	"time"

	cfge "github.com/centrifugal/centrifuge-go"
	"github.com/pkg/errors"

	"bitbucket.org/novatechnologies/liveview/domain"
	"bitbucket.org/novatechnologies/liveview/infra"
	"bitbucket.org/novatechnologies/liveview/infra/logger"
)

const SourceName = "centrifugo"

// ChannelName is the channel carrying events of one kind.
func ChannelName(prefix string, kind domain.EventType) string {
	return prefix + kind
}

// Source subscribes to one Centrifugo channel per event kind and forwards
// publications to the broker.
type Source struct {
	client   *cfge.Client
	broker   domain.EventsBroker
	channels map[string]domain.EventType
	log      logger.Logger
	ctx      context.Context
	clientID string
}

// NewSource returns a source for kinds. Nothing is dialed until Run.
func NewSource(
	cfg infra.CentrifugoConfig,
	kinds []domain.EventType,
	broker domain.EventsBroker,
) (*Source, error) {
	if cfg.Addr == "" {
		return nil, errors.New("centrifugo: empty address")
	}

	wsURL := fmt.Sprintf("ws://%s/connection/websocket", cfg.Addr)
	c := cfge.NewJsonClient(wsURL, cfge.DefaultConfig())

	s := &Source{
		client:   c,
		broker:   broker,
		channels: make(map[string]domain.EventType, len(kinds)),
		log:      logger.DefaultLogger,
		ctx:      context.Background(),
	}
	for _, kind := range kinds {
		s.channels[ChannelName(cfg.ChannelPrefix, kind)] = kind
	}

	if cfg.TokenSecret != "" {
		token, clientID, err := ConnectionToken(cfg.TokenSecret, time.Now())
		if err != nil {
			return nil, err
		}
		c.SetToken(token)
		s.clientID = clientID
		s.log = s.log.WithField("client", clientID)
	}

	c.OnConnect(s)
	c.OnDisconnect(s)
	c.OnError(s)

	if cfg.Debug {
		h := &debugHandler{src: s}
		c.OnMessage(h)
		c.OnServerPublish(h)
	}

	return s, nil
}

// WithLogger replaces the logger. The connection's client id stays attached.
func (s *Source) WithLogger(lg logger.Logger) *Source {
	if s.clientID != "" {
		lg = lg.WithField("client", s.clientID)
	}
	s.log = lg
	return s
}

// Run connects and blocks until ctx is done.
func (s *Source) Run(ctx context.Context) error {
	s.ctx = ctx

	for channel := range s.channels {
		sub, err := s.client.NewSubscription(channel)
		if err != nil {
			return errors.Wrapf(err, "can't create subscription %s", channel)
		}
		sub.OnPublish(s)
		sub.OnSubscribeSuccess(s)
		sub.OnSubscribeError(s)
		if err := sub.Subscribe(); err != nil {
			return errors.Wrapf(err, "can't subscribe to %s", channel)
		}
	}

	if err := s.client.Connect(); err != nil {
		return errors.Wrap(err, "can't connect to centrifugo")
	}

	<-ctx.Done()

	return errors.Wrap(s.client.Close(), "close centrifugo client")
}

func (s *Source) OnPublish(sub *cfge.Subscription, e cfge.PublishEvent) {
	s.forward(sub.Channel(), e.Data)
}

func (s *Source) forward(channel string, data []byte) {
	kind, ok := s.channels[channel]
	if !ok {
		s.log.WithField("channel", channel).Warnf("Publication from unknown channel")
		return
	}

	s.broker.Publish(
		kind,
		domain.NewEvent(s.ctx, data).WithMetaKV(domain.MetaSource, SourceName),
	)
}

func (s *Source) OnConnect(_ *cfge.Client, e cfge.ConnectEvent) {
	s.log.Infof("Connected to centrifugo with ID %s", e.ClientID)
}

func (s *Source) OnDisconnect(_ *cfge.Client, e cfge.DisconnectEvent) {
	s.log.WithField("reconnect", e.Reconnect).
		Warnf("Disconnected from centrifugo: %s", e.Reason)
}

func (s *Source) OnError(_ *cfge.Client, e cfge.ErrorEvent) {
	s.log.Errorf("Centrifugo client error: %s", e.Message)
}

func (s *Source) OnSubscribeSuccess(sub *cfge.Subscription, e cfge.SubscribeSuccessEvent) {
	s.log.Infof(
		"Subscribed on channel %s, resubscribed: %v, recovered: %v",
		sub.Channel(),
		e.Resubscribed,
		e.Recovered,
	)
}

func (s *Source) OnSubscribeError(sub *cfge.Subscription, e cfge.SubscribeErrorEvent) {
	s.log.Errorf("Subscribe on channel %s failed, error: %s", sub.Channel(), e.Error)
}

type debugHandler struct {
	src *Source
}

func (h *debugHandler) OnMessage(_ *cfge.Client, e cfge.MessageEvent) {
	h.src.log.Debugf("Message from server: %s", string(e.Data))
}

func (h *debugHandler) OnServerPublish(_ *cfge.Client, e cfge.ServerPublishEvent) {
	h.src.log.Debugf("Publication from server-side channel %s: %s", e.Channel, e.Data)
}
