package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/shivamrj1035/tutor-flow-backend/pkg/domain/service"
	"github.com/shivamrj1035/tutor-flow-backend/pkg/infrastructure/event"
	"github.com/shivamrj1035/tutor-flow-backend/pkg/infrastructure/health"
	"github.com/shivamrj1035/tutor-flow-backend/pkg/infrastructure/metrics"
	"github.com/shivamrj1035/tutor-flow-backend/pkg/infrastructure/mysql"
	"github.com/shivamrj1035/tutor-flow-backend/pkg/infrastructure/payment"
	"github.com/shivamrj1035/tutor-flow-backend/pkg/infrastructure/transport"
)

func main() {
	app := &cli.App{
		Name:  appID,
		Usage: "course checkout, payment reconciliation and enrollment",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the REST and gRPC health servers",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("purchase service stopped")
	}
}

func migrate(c *cli.Context) error {
	_, db, err := bootstrap(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	return mysql.Migrate(db)
}

func serve(c *cli.Context) error {
	cnf, db, err := bootstrap(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	if cnf.MigrateOnStart {
		if err := mysql.Migrate(db); err != nil {
			return err
		}
	}
	if cnf.StripeWebhookSecret == "" {
		log.Warn("stripe webhook secret is not set, every payment notification will be rejected")
	}

	metrics.Register(prometheus.DefaultRegisterer)

	logger := log.StandardLogger()
	purchaseService := service.NewPurchaseService(
		service.Repositories{
			Purchases: mysql.NewPurchaseRepository(db),
			Courses:   mysql.NewCourseRepository(db),
			Lectures:  mysql.NewLectureRepository(db),
			Buyers:    mysql.NewBuyerRepository(db),
		},
		payment.NewProvider(cnf.StripeSecretKey, cnf.StripeWebhookSecret),
		event.NewLogDispatcher(logger.WithField("component", "events")),
		cnf.checkout(),
	)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker(db, logger)
	grpcServer := grpc.NewServer()
	checker.Register(grpcServer)
	restServer := &http.Server{Addr: cnf.ServeRESTAddress, Handler: transport.Router(purchaseService, db, logger)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		checker.Run(gctx, cnf.HealthInterval)
		return nil
	})
	g.Go(func() error {
		return serveGRPC(grpcServer, cnf.ServeGRPCAddress)
	})
	g.Go(func() error {
		log.WithFields(log.Fields{"address": cnf.ServeRESTAddress}).Info("starting REST server")
		if err := restServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "REST server failed")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cnf.ShutdownTimeout)
		defer cancel()
		err := restServer.Shutdown(shutdownCtx)
		health.GracefulStop(shutdownCtx, grpcServer)
		return err
	})

	return g.Wait()
}

func bootstrap(ctx context.Context) (*config, *sqlx.DB, error) {
	cnf, err := parseEnv()
	if err != nil {
		return nil, nil, err
	}
	if err = initLogger(cnf.LogLevel); err != nil {
		return nil, nil, err
	}

	db, err := mysql.Open(ctx, cnf.connection())
	if err != nil {
		return nil, nil, err
	}
	return cnf, db, nil
}

func serveGRPC(srv *grpc.Server, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}

	log.WithFields(log.Fields{"address": address}).Info("starting gRPC health server")
	if err := srv.Serve(listener); err != nil {
		return errors.Wrap(err, "gRPC server failed")
	}
	return nil
}
