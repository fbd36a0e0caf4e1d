package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	echoapi "github.com/anquinko/academia/apps/api/echo"
	"github.com/anquinko/academia/core"
	"github.com/anquinko/academia/core/attendance"
	"github.com/anquinko/academia/core/billing"
	"github.com/anquinko/academia/core/grading"
	"github.com/anquinko/academia/core/user"
	emailsvc "github.com/anquinko/academia/services/email"
	logsvc "github.com/anquinko/academia/services/logger"
	"github.com/anquinko/academia/storage/database"
	sqlxrepos "github.com/anquinko/academia/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	if err := run(conf, logger); err != nil {
		logger.Fatal(fmt.Sprintf("api: %v", err), err)
	}
}

func run(conf *core.Config, logger *logsvc.RollbarLogger) error {
	// =========================================================================
	// Set up Dependencies

	db, err := setUpDB(conf)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	core.ParseEmailTemplates(logger)

	gradingRepo := sqlxrepos.NewGradingRepository(db)
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	gradingSvc := grading.NewService(gradingRepo, gradingRepo, mailSvc)
	billingSvc := billing.NewService(sqlxrepos.NewBillingRepository(db), mailSvc)
	attendanceSvc := attendance.NewService(sqlxrepos.NewAttendanceRepository(db))

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.RegisterValidators(validate, translator)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : %s", conf))
	defer logger.Info("Application stopped")

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		UserSvc:       usrSvc,
		GradingSvc:    gradingSvc,
		BillingSvc:    billingSvc,
		AttendanceSvc: attendanceSvc,
		Validate:      validate,
		Translator:    translator,
	})

	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	debugSrv := &http.Server{Addr: conf.Server.DebugHost, Handler: http.DefaultServeMux}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("debug server: %w", err)
		}
		return nil
	})
	g.Go(server.Start)

	// =========================================================================
	// Shutdown

	g.Go(func() error {
		select {
		case sig := <-server.ShutdownSignal():
			logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		case <-ctx.Done():
		}

		// give outstanding requests a deadline for completion
		sctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		_ = debugSrv.Shutdown(sctx)

		// asking listener to shutdown and shed load
		if err := server.Shutdown(sctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			return server.Close()
		}
		return nil
	})

	return g.Wait()
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
