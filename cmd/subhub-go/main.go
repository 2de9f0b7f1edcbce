package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/subhub-go/internal/aggregate"
	"github.com/John-Robertt/subhub-go/internal/auth"
	"github.com/John-Robertt/subhub-go/internal/config"
	"github.com/John-Robertt/subhub-go/internal/fetch"
	"github.com/John-Robertt/subhub-go/internal/httpapi"
	"github.com/John-Robertt/subhub-go/internal/store"
	"github.com/John-Robertt/subhub-go/internal/subscription"
)

func main() {
	def := config.Default()
	configPath := flag.String("config", "", "YAML 配置文件路径（可选）")
	listen := flag.String("listen", def.Listen, "HTTP 监听地址")
	storeDSN := flag.String("store", def.Store, "存储：memory 或 SQLite 文件路径")
	readHeaderTimeout := flag.Duration("read-header-timeout", def.ReadHeaderTimeout, "HTTP ReadHeaderTimeout（请求头读取超时）")
	convertTimeout := flag.Duration("convert-timeout", def.ConvertTimeout, "单次聚合/生成订阅的总超时（包含远程拉取）")
	fetchTimeout := flag.Duration("fetch-timeout", def.FetchTimeout, "单次远程拉取的超时（每个 URL 一次请求）")
	shutdownTimeout := flag.Duration("shutdown-timeout", def.ShutdownTimeout, "收到退出信号后的优雅退出等待时间")
	logLevel := flag.String("log-level", def.LogLevel, "日志级别（debug/info/warn/error）")
	healthcheck := flag.Bool("healthcheck", false, "请求本机 /healthz 后退出（用于容器健康检查）")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	// Explicit flags win over the file and the environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = *listen
		case "store":
			cfg.Store = *storeDSN
		case "read-header-timeout":
			cfg.ReadHeaderTimeout = *readHeaderTimeout
		case "convert-timeout":
			cfg.ConvertTimeout = *convertTimeout
		case "fetch-timeout":
			cfg.FetchTimeout = *fetchTimeout
		case "shutdown-timeout":
			cfg.ShutdownTimeout = *shutdownTimeout
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	if *healthcheck {
		u, err := deriveHealthzURL(cfg.Listen)
		if err == nil {
			err = runHealthcheck(u, 3*time.Second)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	log, err := newLogger(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func newLogger(level string, json bool) (*logrus.Logger, error) {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	if json {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

func run(cfg config.Config, log *logrus.Logger) error {
	if cfg.Admin.Username == auth.DefaultAdminUsername && cfg.Admin.Password == auth.DefaultAdminPassword {
		log.Warn("using the default admin credentials; set ADMIN_USERNAME and ADMIN_PASSWORD")
	}

	kv, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	st := store.New(kv)
	defer func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("close store")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	throttle := auth.NewThrottle(cfg.Login.Every, cfg.Login.Burst, 10*time.Minute)
	go throttle.Run(ctx, time.Minute)

	fopt := fetch.Options{Timeout: cfg.FetchTimeout}
	agg := aggregate.New(aggregate.HTTPFetcher{Options: fopt}, aggregate.Options{
		MaxDepth:    cfg.Aggregate.MaxDepth,
		MaxSources:  cfg.Aggregate.MaxSources,
		Concurrency: cfg.Aggregate.Concurrency,
	})
	agg.Log = log

	srv := &http.Server{
		Addr: cfg.Listen,
		Handler: httpapi.NewHandlerWithOptions(httpapi.Options{
			ConvertTimeout: cfg.ConvertTimeout,
			FetchTimeout:   cfg.FetchTimeout,
			Admin:          auth.Admin{Username: cfg.Admin.Username, Password: cfg.Admin.Password},
			Store:          st,
			Auth:           auth.NewService(st, cfg.SessionTTL),
			Throttle:       throttle,
			Aggregator:     agg,
			Builder: &subscription.Builder{
				Aggregator:         agg,
				Templates:          subscription.NewTemplateLoader(fopt),
				DefaultTemplateURL: cfg.DefaultTemplateURL,
				Log:                log,
			},
			Converter:     subscription.Converter{BaseURL: cfg.SubWorkerURL, Options: fopt},
			PublicURL:     cfg.PublicURL,
			SubscriberURL: cfg.SubscriberURL,
			QuickSubURL:   cfg.QuickSubURL,
			Log:           log,
		}),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	log.WithFields(logrus.Fields{
		"store":     cfg.Store,
		"converter": cfg.SubWorkerURL != "",
	}).Infof("listening on http://%s", cfg.Listen)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")

		shCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			log.WithError(err).Warn("graceful shutdown failed")
			_ = srv.Close()
		}

		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
