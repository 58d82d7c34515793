package dig_container

import (
	"context"
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	echoapi "github.com/mystudenthub/backend/apps/api/echo"
	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/access"
	"github.com/mystudenthub/backend/core/broadcast"
	"github.com/mystudenthub/backend/core/circle"
	"github.com/mystudenthub/backend/core/material"
	"github.com/mystudenthub/backend/core/notification"
	"github.com/mystudenthub/backend/core/user"
	broadcastsvc "github.com/mystudenthub/backend/services/broadcast"
	cachesvc "github.com/mystudenthub/backend/services/cache"
	emailsvc "github.com/mystudenthub/backend/services/email"
	logsvc "github.com/mystudenthub/backend/services/logger"
	pushsvc "github.com/mystudenthub/backend/services/push"
	"github.com/mystudenthub/backend/storage/database"
	inmemdb "github.com/mystudenthub/backend/storage/database/inmem"
	sqlxdb "github.com/mystudenthub/backend/storage/database/sqlx"
)

// EngineInMemory selects the in-process store instead of PostgreSQL.
const EngineInMemory = "inmem"

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories is provided as a whole by the selected storage engine.
// DB is nil with the in-memory engine.
type Repositories struct {
	dig.Out
	DB         *sqlx.DB
	Users      user.Repository
	Identities user.IdentityStore
	Circles    circle.Repository
	Materials  material.Repository
	PushTokens notification.TokenRepository
}

type depsParam struct {
	dig.In
	Conf        *core.Config
	Logger      core.Logger
	Validate    *validator.Validate
	Translator  ut.Translator
	UserSvc     *user.Service
	Provisioner *user.Provisioner
	MaterialSvc *material.Service
	CircleSvc   *circle.Service
	NotifSvc    *notification.Service
	Enforcer    *access.Enforcer
	Revoker     core.TokenRevoker
	Registry    *prometheus.Registry
}

func newLogger(conf *core.Config) (core.Logger, error) {
	return newNamedLogger(conf, "api")
}

func newDBLogger(conf *core.Config) (core.Logger, error) {
	return newNamedLogger(conf, "db")
}

func newNamedLogger(conf *core.Config, name string) (core.Logger, error) {
	sink, err := logsvc.NewZapSink(conf)
	if err != nil {
		return nil, errors.Wrap(err, "building log sink")
	}
	logger := logsvc.NewRollbarLogger(sink, name, conf)
	logger.Enable(!conf.Debug)
	return logger, nil
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	if conf.Database.Engine == EngineInMemory {
		db := inmemdb.NewDB()
		return Repositories{
			Users:      inmemdb.NewUserRepository(db),
			Identities: inmemdb.NewIdentityStore(db),
			Circles:    inmemdb.NewCircleRepository(db),
			Materials:  inmemdb.NewMaterialRepository(db),
			PushTokens: inmemdb.NewPushTokenRepository(db),
		}
	}

	setUp := func(ctx context.Context) (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(ctx, db.DB, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp(context.Background())
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Repositories{
		DB:         db,
		Users:      sqlxdb.NewUserRepository(db),
		Identities: sqlxdb.NewIdentityStore(db),
		Circles:    sqlxdb.NewCircleRepository(db),
		Materials:  sqlxdb.NewMaterialRepository(db),
		PushTokens: sqlxdb.NewPushTokenRepository(db),
	}
}

func newCircleDirectory(repo circle.Repository) user.CircleDirectory {
	return circle.NewDirectory(repo)
}

// newRedisClient returns nil when no Redis address is configured.
func newRedisClient(conf *core.Config) *redis.Client {
	if conf.Redis.Address == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func newViewCache(conf *core.Config, rdb *redis.Client) core.ViewCache {
	if rdb == nil {
		return cachesvc.NewLRUViewCache(conf)
	}
	return cachesvc.NewRedisViewCache(rdb, conf)
}

func newRevoker(conf *core.Config, rdb *redis.Client) core.TokenRevoker {
	if rdb == nil {
		return cachesvc.NewLRURevoker(conf)
	}
	return cachesvc.NewRedisRevoker(rdb)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newForwarder returns nil when no Redis is configured: failures then stay within the process.
func newForwarder(conf *core.Config, rdb *redis.Client, logger core.Logger) *broadcastsvc.RedisForwarder {
	if rdb == nil {
		return nil
	}
	return broadcastsvc.NewRedisForwarder(rdb, conf, logger)
}

func newBus(logger core.Logger, reg *prometheus.Registry, fwd *broadcastsvc.RedisForwarder) (*broadcast.Bus, error) {
	reporter, err := broadcastsvc.NewReporter(logger, reg)
	if err != nil {
		return nil, errors.Wrap(err, "registering reporter")
	}
	bus := broadcast.NewBus(logger)
	bus.Subscribe(reporter.Handle)
	if fwd != nil {
		bus.Subscribe(fwd.Handle)
	}
	return bus, nil
}

func newEnforcer(bus *broadcast.Bus) *access.Enforcer {
	return access.NewEnforcer(access.NewPolicy(), bus)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newPushSender(conf *core.Config, logger core.Logger) notification.Sender {
	if conf.Debug {
		return pushsvc.NewConsoleSender(logger)
	}
	return pushsvc.NewFCMSender(conf)
}

func newAudience(svc *user.Service) notification.Audience {
	return svc
}

func newDeps(p depsParam) *echoapi.Deps {
	return &echoapi.Deps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		UserSvc:     p.UserSvc,
		Provisioner: p.Provisioner,
		MaterialSvc: p.MaterialSvc,
		CircleSvc:   p.CircleSvc,
		NotifSvc:    p.NotifSvc,
		Enforcer:    p.Enforcer,
		Revoker:     p.Revoker,
		Registry:    p.Registry,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// config & observability
	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRegistry))

	// storage
	must(c.Provide(newRepositories))
	must(c.Provide(newRedisClient))
	must(c.Provide(newViewCache))
	must(c.Provide(newRevoker))

	// access & broadcast
	must(c.Provide(newForwarder))
	must(c.Provide(newBus))
	must(c.Provide(newEnforcer))

	// validation
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	// services
	must(c.Provide(newEmailService))
	must(c.Provide(newPushSender))
	must(c.Provide(user.NewIdentityProvider))
	must(c.Provide(user.NewService))
	must(c.Provide(newAudience))
	must(c.Provide(newCircleDirectory))
	must(c.Provide(user.NewProvisioner))
	must(c.Provide(circle.NewService))
	must(c.Provide(material.NewService))
	must(c.Provide(notification.NewService))

	// API
	must(c.Provide(newDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
