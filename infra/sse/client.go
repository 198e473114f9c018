package sse

import (
	"context"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/go-http-utils/headers"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"bitbucket.org/novatechnologies/liveview/domain"
	"bitbucket.org/novatechnologies/liveview/infra/logger"
)

const (
	SourceName = "sse"

	DefaultReconnectBase = time.Second
	DefaultReconnectMax  = 30 * time.Second

	headerLastEventID = "Last-Event-ID"
	eventStreamType   = "text/event-stream"
)

// Options of the SSE client. Nil fields take defaults.
type Options struct {
	URL           string
	ReconnectBase *time.Duration
	ReconnectMax  *time.Duration
	LastEventID   *string
	Headers       map[string]string
}

// Client keeps an event stream open and publishes every dispatched event
// to the broker under its event name.
type Client struct {
	http   *resty.Client
	url    string
	broker domain.EventsBroker
	log    logger.Logger

	base   time.Duration
	max    time.Duration
	lastID string
}

func NewClient(opts Options, broker domain.EventsBroker) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("sse: empty stream URL")
	}

	base := pointer.GetDuration(opts.ReconnectBase)
	if base <= 0 {
		base = DefaultReconnectBase
	}
	maxDelay := pointer.GetDuration(opts.ReconnectMax)
	if maxDelay <= 0 {
		maxDelay = DefaultReconnectMax
	}
	if maxDelay < base {
		maxDelay = base
	}

	cli := resty.New()
	cli.SetHeaders(opts.Headers)
	cli.SetHeaders(map[string]string{
		headers.Accept:       eventStreamType,
		headers.CacheControl: "no-cache",
	})

	return &Client{
		http:   cli,
		url:    opts.URL,
		broker: broker,
		log:    logger.DefaultLogger,
		base:   base,
		max:    maxDelay,
		lastID: pointer.GetString(opts.LastEventID),
	}, nil
}

func (c *Client) WithLogger(lg logger.Logger) *Client {
	c.log = lg
	return c
}

// LastEventID is the ID sent with the next reconnection.
func (c *Client) LastEventID() string {
	return c.lastID
}

// Run streams until ctx is done, reconnecting with exponential backoff.
// It returns nil on cancellation.
func (c *Client) Run(ctx context.Context) error {
	log := c.log.WithField("url", c.url)
	delay := c.base

	for {
		connected, err := c.stream(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = c.base
		}

		log.WithError(err).
			WithField("wait", delay.String()).
			Warnf("Event stream interrupted, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.max {
			delay = c.max
		}
	}
}

// stream reads one connection until it fails. connected reports whether
// the server accepted the stream.
func (c *Client) stream(ctx context.Context) (connected bool, err error) {
	req := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	if c.lastID != "" {
		req.SetHeader(headerLastEventID, c.lastID)
	}

	resp, err := req.Get(c.url)
	if err != nil {
		return false, errors.Wrap(err, "connect")
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return false, errors.Errorf("unexpected status %d", resp.StatusCode())
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header().Get(headers.ContentType)); mt != eventStreamType {
		return false, errors.Errorf("unexpected content type %q", mt)
	}

	c.log.WithField("url", c.url).Infof("Event stream connected")

	dec := NewDecoder(body).WithLastEventID(c.lastID)
	for {
		msg, err := dec.Next()
		c.lastID = dec.LastEventID()
		if r := dec.Retry(); r > 0 {
			c.base = r
			if c.max < r {
				c.max = r
			}
		}
		if err == io.EOF {
			return true, errors.New("stream closed by server")
		}
		if err != nil {
			return true, errors.Wrap(err, "read stream")
		}

		c.publish(ctx, msg)
	}
}

func (c *Client) publish(ctx context.Context, msg Message) {
	ev := domain.NewEvent(ctx, []byte(msg.Data)).
		WithMetaKV(domain.MetaSource, SourceName).
		WithMetaKV(domain.MetaEventID, msg.ID)

	c.broker.Publish(msg.Event, ev)
}
