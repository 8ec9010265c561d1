package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"appointment-scheduler/internal/booking"
	"appointment-scheduler/internal/config"
	"appointment-scheduler/internal/grpcapi"
	gweb "appointment-scheduler/internal/grpcweb"
	"appointment-scheduler/internal/handler"
	"appointment-scheduler/internal/logger"
	"appointment-scheduler/internal/metrics"
	"appointment-scheduler/internal/middleware"
	"appointment-scheduler/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger isn't built yet
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()
	log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// database
	st, err := store.Open(ctx, cfg.Database.URL, log)
	if err != nil {
		log.Fatal("open store", zap.Error(err))
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector("appointments", reg)

	policy := booking.DefaultPolicy(cfg.Booking.Location)
	policy.OpenHour, policy.CloseHour = cfg.Booking.OpenHour, cfg.Booking.CloseHour

	bookingLog := log.Named("booking")
	validator := booking.NewValidator(st, policy, booking.WithLogger(bookingLog))
	slots := booking.NewSlotQuery(st, policy, booking.WithLogger(bookingLog))
	rl := middleware.NewRateLimiter(ctx, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, m)

	// grpc server
	var (
		grpcSrv *grpc.Server
		bridge  *gweb.Bridge
	)
	if cfg.Server.GRPCEnabled() {
		svc := grpcapi.New(validator, slots, st, m, log.Named("grpc"))
		grpcSrv = grpcapi.NewGRPCServer(svc, rl, cfg.Admin.Secret, m, log.Named("grpc"))

		lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
		if err != nil {
			log.Fatal("grpc listen", zap.Error(err))
		}
		go func() {
			log.Info("grpc listening", zap.String("port", cfg.Server.GRPCPort))
			if err := grpcSrv.Serve(lis); err != nil {
				log.Error("grpc serve", zap.Error(err))
			}
		}()

		// grpc-web bridge -> forwards browser requests to grpc on localhost
		bridge, err = gweb.New("localhost:"+cfg.Server.GRPCPort,
			gweb.Options{AllowedOrigins: cfg.Server.CORSOrigins}, log.Named("grpcweb"))
		if err != nil {
			log.Fatal("grpc-web bridge", zap.Error(err))
		}
		defer bridge.Close()
	}

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	deps := handler.Deps{
		Validator: validator,
		Slots:     slots,
		Store:     st,
		Admin:     cfg.Admin,
		Metrics:   m,
		Limiter:   rl,
		Logger:    log.Named("http"),

		TrustedProxies: cfg.Server.TrustedProxies,
	}
	if bridge != nil {
		deps.GRPCWeb = bridge.Handler()
	}

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: handler.New(deps).Router(),
	}
	go func() {
		log.Info("http listening", zap.String("port", cfg.Server.HTTPPort), zap.Bool("admin_auth", cfg.Admin.Enabled()))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http serve", zap.Error(err))
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
}
