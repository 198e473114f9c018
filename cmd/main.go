package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlekSi/pointer"
	"golang.org/x/sync/errgroup"

	apihttp "bitbucket.org/novatechnologies/liveview/api/http"
	"bitbucket.org/novatechnologies/liveview/api/http/handler"
	"bitbucket.org/novatechnologies/liveview/api/ws"
	"bitbucket.org/novatechnologies/liveview/chart"
	"bitbucket.org/novatechnologies/liveview/dom"
	"bitbucket.org/novatechnologies/liveview/domain"
	"bitbucket.org/novatechnologies/liveview/infra"
	"bitbucket.org/novatechnologies/liveview/infra/broker"
	"bitbucket.org/novatechnologies/liveview/infra/centrifugo"
	"bitbucket.org/novatechnologies/liveview/infra/logger"
	"bitbucket.org/novatechnologies/liveview/infra/scheduler"
	"bitbucket.org/novatechnologies/liveview/infra/sse"
	"bitbucket.org/novatechnologies/liveview/liveview"
)

const configPath = "./config/.env"

func main() {
	if err := run(); err != nil {
		logger.DefaultLogger.Fatalf("Liveview stopped: %v", err)
	}
}

func run() error {
	conf, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := logger.Configure(conf.LogConfig.Level, conf.LogConfig.Format); err != nil {
		return err
	}
	log := logger.DefaultLogger.WithField("app", "liveview")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	defs, err := chart.LoadSeries(conf.ViewConfig.ChartSeriesFile)
	if err != nil {
		return err
	}

	eventsBroker := broker.NewInMemoryWithSize(conf.ViewConfig.QueueSize).
		WithLogger(log.WithField("component", "broker"))
	doc := dom.NewDocument().WithLogger(log.WithField("component", "document"))
	lineChart := chart.NewLineChart(defs).WithLogger(log.WithField("component", "chart"))
	views := handler.NewViewsHandler(doc, lineChart)

	broadcaster := ws.NewBroadcaster(
		func() interface{} { return views.Snapshot() },
		conf.HttpConfig.WSSendBuffer,
	).WithLogger(log.WithField("component", "ws"))
	doc.Observe(broadcaster)
	lineChart.Observe(broadcaster)

	var publisher *centrifugo.Publisher
	if conf.CentrifugoConfig.APIAddr != "" {
		publisher = centrifugo.NewPublisher(conf.CentrifugoConfig).
			WithLogger(log.WithField("component", "publisher"))
		doc.Observe(publisher)
		lineChart.Observe(publisher)
	}

	synchronizer := liveview.New(
		lineChart,
		liveview.Views{
			Price:       doc.Element(domain.RegionPrice),
			Change:      doc.Element(domain.RegionChange),
			Submissions: doc.Element(domain.RegionSubmissions),
			Funding:     doc.Element(domain.RegionFunding),
		},
		eventsBroker,
		liveview.Options{
			Series:      chart.Names(defs),
			SwapDelay:   conf.ViewConfig.SwapDelay,
			FundingUnit: conf.ViewConfig.FundingUnit,
		},
	).WithLogger(log.WithField("component", "synchronizer"))
	synchronizer.Subscribe(eventsBroker)

	cron := scheduler.New(eventsBroker, log.WithField("component", "scheduler"))
	if err := cron.Register("submissions-refresh", conf.ViewConfig.RefreshSpec, synchronizer.RefreshSubmissions); err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return eventsBroker.Run(ctx) })
	group.Go(func() error { return cron.Run(ctx) })

	if conf.SSEConfig.URL != "" {
		client, err := sse.NewClient(sse.Options{
			URL:           conf.SSEConfig.URL,
			ReconnectBase: pointer.ToDuration(conf.SSEConfig.ReconnectBase),
			ReconnectMax:  pointer.ToDuration(conf.SSEConfig.ReconnectMax),
		}, eventsBroker)
		if err != nil {
			return err
		}
		client.WithLogger(log.WithField("component", "sse"))
		group.Go(func() error { return client.Run(ctx) })
	}

	if conf.CentrifugoConfig.Addr != "" {
		source, err := centrifugo.NewSource(conf.CentrifugoConfig, domain.GetLiveEventTypes(), eventsBroker)
		if err != nil {
			return err
		}
		source.WithLogger(log.WithField("component", "centrifugo"))
		group.Go(func() error { return source.Run(ctx) })
	}

	if publisher != nil {
		group.Go(func() error { return publisher.Run(ctx) })
	}

	server := apihttp.NewServer(
		apihttp.NewRouter(views, broadcaster),
		conf.HttpConfig,
	).WithLogger(log.WithField("component", "http"))
	group.Go(func() error { return server.Start(ctx) })

	// shutdown
	group.Go(func() error {
		<-ctx.Done()
		broadcaster.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.HttpConfig.ShutdownTimeout)
		defer cancel()

		return server.Stop(shutdownCtx)
	})

	return group.Wait()
}
