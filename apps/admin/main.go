package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/circle"
	"github.com/mystudenthub/backend/core/user"
	emailsvc "github.com/mystudenthub/backend/services/email"
	logsvc "github.com/mystudenthub/backend/services/logger"
	"github.com/mystudenthub/backend/storage/database"
	inmemdb "github.com/mystudenthub/backend/storage/database/inmem"
	sqlxdb "github.com/mystudenthub/backend/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	ctx := context.Background()

	sink, err := logsvc.NewZapSink(conf)
	if err != nil {
		log.Fatal(err)
	}
	logger := logsvc.NewRollbarLogger(sink, "admin", conf)
	logger.Enable(!conf.Debug)

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	// set up DB & repos
	var (
		sqlDB      *sql.DB
		usrRepo    user.Repository
		idStore    user.IdentityStore
		circleRepo circle.Repository
	)
	if conf.Database.Engine == "inmem" {
		db := inmemdb.NewDB()
		usrRepo, idStore = inmemdb.NewUserRepository(db), inmemdb.NewIdentityStore(db)
		circleRepo = inmemdb.NewCircleRepository(db)
	} else {
		db, err := database.Open(ctx, conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer func() { _ = db.Close() }()
		sqlDB = db.DB
		usrRepo, idStore = sqlxdb.NewUserRepository(db), sqlxdb.NewIdentityStore(db)
		circleRepo = sqlxdb.NewCircleRepository(db)
	}
	idp := user.NewIdentityProvider(idStore, validate)

	// start CLI
	cli := commandLine{
		db:          sqlDB,
		usrSvc:      user.NewService(usrRepo, idp, mailSvc, logger, conf),
		provisioner: user.NewProvisioner(idp, usrRepo, circle.NewDirectory(circleRepo), validate, mailSvc, logger),
		out:         os.Stdout,
	}
	if err := cli.run(ctx, os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
