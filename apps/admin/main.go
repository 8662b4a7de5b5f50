package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/agenda/core"
	"github.com/trezcool/agenda/core/user"
	logsvc "github.com/trezcool/agenda/services/logger"
	"github.com/trezcool/agenda/storage/database"
	"github.com/trezcool/agenda/storage/database/sqlxrepos"
)

func main() {
	conf := core.NewConfig()

	rbLogger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	rbLogger.Enable(!conf.Debug)
	logger := rbLogger.With(map[string]interface{}{logsvc.ExtraComponent: "admin"})

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up DB
	if err := database.CreateIfNotExist(conf.Database); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf.Database)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:     db,
		engine: conf.Database.Engine,
		usrSvc: user.NewService(db, sqlxrepos.NewUserRepository(db), validate),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err, map[string]interface{}{"command": os.Args[1]})
		}
		os.Exit(1)
	}
}
