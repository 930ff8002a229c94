package main

import (
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/database/mongoclient"
	"github.com/x-xyz/nftvault/base/database/redisclient"
	"github.com/x-xyz/nftvault/base/goroutine"
	"github.com/x-xyz/nftvault/base/log"
	"github.com/x-xyz/nftvault/base/metrics"
	"github.com/x-xyz/nftvault/base/tracker"
	bValidator "github.com/x-xyz/nftvault/base/validator"
	"github.com/x-xyz/nftvault/domain/keys"
	"github.com/x-xyz/nftvault/domain/vault"
	mmiddleware "github.com/x-xyz/nftvault/middleware"
	"github.com/x-xyz/nftvault/service/cache"
	"github.com/x-xyz/nftvault/service/cache/provider"
	"github.com/x-xyz/nftvault/service/cache/provider/compound"
	"github.com/x-xyz/nftvault/service/cache/provider/primitive"
	redisCache "github.com/x-xyz/nftvault/service/cache/provider/redis"
	"github.com/x-xyz/nftvault/service/query"
	"github.com/x-xyz/nftvault/service/redis"
	event_repository "github.com/x-xyz/nftvault/stores/event/repository"
	event_usecase "github.com/x-xyz/nftvault/stores/event/usecase"
	hc_delivery "github.com/x-xyz/nftvault/stores/healthcheck/delivery/http"
	hc_repo "github.com/x-xyz/nftvault/stores/healthcheck/repository"
	hc_usecase "github.com/x-xyz/nftvault/stores/healthcheck/usecase"
	vault_delivery "github.com/x-xyz/nftvault/stores/vault/delivery/http"
	vault_usecase "github.com/x-xyz/nftvault/stores/vault/usecase"
)

const (
	eventPublishRetry = 200 * time.Millisecond
	frontCacheTTL     = 10 * time.Second
)

// readConfig reads flags, then the yaml they point at, then the environment.
func readConfig() {
	pflag.String("config", "infra/configs/config.yaml", "path of the yaml config")
	pflag.String("rail", "", "memory or evm, overrides the config")
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)

	viper.SetConfigType("yaml")
	viper.SetConfigFile(viper.GetString("config"))
	err := viper.ReadInConfig()
	if err != nil {
		panic(err)
	}

	// VAULT_EVM_VAULTKEY and friends override the file
	viper.SetEnvPrefix("vault")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if viper.GetBool(`debug`) {
		log.Log().Info("Service RUN on DEBUG mode")
	}
}

func main() {
	readConfig()
	context := ctx.Background()

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		context.WithField("err", err).Panic("loadConfig failed")
	}
	if err := log.Init(cfg.Log); err != nil {
		context.WithField("err", err).Panic("log.Init failed")
	}
	metrics.Init(cfg.Metrics)
	context = ctx.Background()

	// init mongo client
	var (
		mongoClient *mongoclient.Client
		q           query.Mongo
	)
	if cfg.Mongo.URI != "" {
		context.Info("init mongo")
		mongoClient = mongoclient.MustConnectMongoClient(cfg.Mongo)
		defer mongoClient.Close()
		q = query.New(mongoClient, cfg.CheckIndex, metrics.New("mongo"))
	}

	// init Redis service
	var redisSvc redis.Service
	if cfg.Redis.URI != "" {
		context.Info("init redis")
		pool := redisclient.MustConnectRedis(cfg.Redis)
		defer pool.Close()
		redisSvc = redis.New("vault", metrics.New("redis"), pool)
	}

	// local freecache in front of redis when redis is configured
	var cacheProvider provider.Provider = primitive.NewPrimitive("vault", cfg.Events.LocalCacheMB)
	if redisSvc != nil {
		cacheProvider = compound.NewCompound(
			[]provider.Provider{cacheProvider, redisCache.NewRedis(redisSvc)},
			compound.WithFrontTTL(frontCacheTTL),
		)
	}

	// event repos
	repos := []vault.EventRepo{event_repository.NewLog(context.Logger)}
	var store vault.EventStore
	if q != nil {
		mongoRepo := event_repository.NewMongo(q)
		if err := mongoRepo.Init(context); err != nil {
			context.WithField("err", err).Panic("event mongo repo Init failed")
		}
		repos = append(repos, mongoRepo)
		store = mongoRepo
	} else {
		memRepo := event_repository.NewMemory()
		repos = append(repos, memRepo)
		store = memRepo
	}
	if redisSvc != nil {
		repos = append(repos, event_repository.NewRedis(redisSvc, eventPublishRetry))
	}
	eventUC := event_usecase.New(&event_usecase.EventUseCaseCfg{
		Repos: repos,
		Store: store,
		Cache: cache.New(cache.ServiceConfig{
			Ttl:     cfg.Events.CacheTTL,
			Pfx:     keys.PfxEventList,
			Cache:   cacheProvider,
			Metrics: metrics.New("cache"),
		}),
		QueueLength: cfg.Events.QueueLength,
		Metrics:     metrics.New("events"),
	})

	// rails
	var r *rails
	switch cfg.Rail {
	case railEvm:
		r, err = newEvmRails(context, cfg)
	default:
		r, err = newMemoryRails(cfg)
	}
	if err != nil {
		context.WithFields(log.Fields{"err": err, "rail": cfg.Rail}).Panic("init rails failed")
	}

	vaultCfg, err := cfg.vaultParams(r.vault, r.collection)
	if err != nil {
		context.WithField("err", err).Panic("invalid vault config")
	}
	vaultUC, err := vault_usecase.New(&vault_usecase.VaultUseCaseCfg{
		Vault:    vaultCfg,
		Assets:   r.assets,
		NFT:      r.nft,
		Executor: r.executor,
		Sink:     eventUC,
		Metrics:  metrics.New("vault"),
	})
	if err != nil {
		context.WithField("err", err).Panic("vault_usecase.New failed")
	}
	context.WithFields(log.Fields{
		"vault": vaultCfg.Address,
		"owner": vaultCfg.Owner,
		"rail":  cfg.Rail,
	}).Info("vault started")

	// watch transfers into the vault
	trackerCtx, stopTracker := ctx.WithCancel(context)
	defer stopTracker()
	trackerDone := make(chan *goroutine.PanicEvent)
	close(trackerDone)
	if cfg.Tracker.Enabled && r.logs != nil {
		t := tracker.NewLogTracker(&tracker.LogTrackerCfg{
			Config:   cfg.Tracker,
			Source:   r.logs,
			Contract: r.collection.ToCommon(),
			Handler: tracker.NewDepositHandler(&tracker.DepositHandlerCfg{
				Vault:     vaultCfg.Address,
				Depositor: vaultUC,
			}),
			Metrics: metrics.New("tracker"),
		})
		trackerDone = goroutine.RecoverableGo(func() {
			t.Run(trackerCtx)
		}, goroutine.WithName("deposit-tracker"))
	}

	// init echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{}))
	e.Use(middleware.RequestID())
	middL := mmiddleware.InitMiddleware(metrics.New("http"))
	e.Use(middL.ResponseLogger())
	e.Use(middL.AddContext())
	e.Use(middleware.CORS())
	e.Validator = bValidator.NewCustomValidator(bValidator.New())

	hcUseCase := hc_usecase.New(hc_repo.New(mongoClient, redisSvc), r.probes...)
	hc_delivery.New(e, hcUseCase)
	vault_delivery.New(e, vaultUC, eventUC, mmiddleware.CacheHttp(cacheProvider, cfg.Server.CacheTTL, metrics.New("httpcache")))

	go func() {
		if err := e.Start(cfg.Server.Address); err != nil && err != http.ErrServerClosed {
			log.Log().WithField("err", err).Error("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	// Use a buffered channel to avoid missing signals as recommended for signal.Notify
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-quit
	log.Log().WithField("signal", sig).Info("received signal")
	sctx, cancel := ctx.WithTimeout(context, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Log().WithField("err", err).Error("shutting down the server")
	} else {
		log.Log().Info("shutdown server successfully")
	}

	// stop the tracker and accepting mutations, then drain the event queue
	stopTracker()
	<-trackerDone
	vaultUC.Close()
	eventUC.Close()
}
