package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/lingo/core"
	"github.com/trezcool/lingo/core/quiz"
	cachesvc "github.com/trezcool/lingo/services/cache"
	logsvc "github.com/trezcool/lingo/services/logger"
	"github.com/trezcool/lingo/storage/database"
	sqlxrepos "github.com/trezcool/lingo/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	logger := logsvc.NewConsoleLogger(zl.Named("admin"))
	defer logger.Sync()

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// set up services
	var cache quiz.ContentCache = quiz.NopCache{}
	if conf.Redis.Enabled {
		cache = cachesvc.NewRedisContentCache(cachesvc.NewRedisClient(conf), conf.Redis.ContentTTL)
	}
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:         db,
		logger:     logger,
		translator: translator,
		quizSvc:    quiz.NewService(db, sqlxrepos.NewQuizRepository(db), cache, logger, validate),
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		os.Exit(1)
	}
}
