package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/infra/database"
	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/infra/http/handlers"
	appmw "github.com/abhi-theCoder/AgentSuit-Duplicate/internal/infra/http/middleware"
	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/infra/mail"
	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/infra/queue"
	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/infra/scheduler"
	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/infra/sms"
	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/infra/worker"
	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/usecase"
)

func main() {
	godotenv.Load()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := database.NewDBConnection(os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	rabbitMQ, err := queue.NewRabbitMQ(
		envOr("RABBITMQ_USER", "user"),
		envOr("RABBITMQ_PASS", "password"),
		envOr("RABBITMQ_HOST", "localhost"),
		envOr("RABBITMQ_PORT", "5672"),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer rabbitMQ.Conn.Close()
	defer rabbitMQ.Ch.Close()

	// 1. Repositories + stage catalog
	leadRepo := database.NewLeadRepository(db)
	stageRepo := database.NewStageRepository(db)

	catalog, err := stageRepo.LoadCatalog(ctx)
	if err != nil {
		log.Fatalf("❌ could not load the stage catalog: %v", err)
	}

	// 2. Transport (one channel per deployment)
	var transport usecase.Transport
	switch os.Getenv("DRIP_TRANSPORT") {
	case "email":
		port, _ := strconv.Atoi(envOr("MAIL_PORT", "587"))
		transport = mail.NewEmailSender(
			os.Getenv("MAIL_HOST"), port, os.Getenv("MAIL_USER"), os.Getenv("MAIL_PASS"),
			envOr("MAIL_FROM", "no-reply@agentsuit.app"),
		)
	default:
		transport = sms.NewClient(
			os.Getenv("TWILIO_ACCOUNT_SID"),
			os.Getenv("TWILIO_AUTH_TOKEN"),
			os.Getenv("TWILIO_PHONE_NUMBER"),
		)
	}

	// 3. Drip engine
	sched := scheduler.NewLeadScheduler()
	defer sched.Stop()

	sendRetries, _ := strconv.Atoi(envOr("SMS_SEND_RETRIES", "0"))
	dispatchUC := usecase.NewDispatchStageUseCase(leadRepo, catalog, transport, sched, sendRetries)
	enrollUC := usecase.NewEnrollLeadUseCase(leadRepo, dispatchUC)
	cancelUC := usecase.NewCancelLeadUseCase(leadRepo, sched)
	recoverUC := usecase.NewRecoverSchedulesUseCase(leadRepo, catalog, sched, dispatchUC)

	// 4. Recovery runs before any traffic: timers did not survive the last
	// process, the persisted deadlines did.
	if err := recoverUC.Execute(ctx); err != nil {
		log.Printf("🚨 Recovery finished with problems: %v", err)
	}

	// 5. Enrollment intake worker
	enrollWorker := queue.NewWorker(rabbitMQ.Ch, enrollUC)
	go enrollWorker.Start(queue.QueueName)

	// 6. Reconcile sweep, the safety net under the timers
	reconciler := worker.NewDripReconcileWorker(leadRepo, sched, dispatchUC)
	go reconciler.Start(ctx)

	// 7. Router
	producer := queue.NewProducer(rabbitMQ.Conn, rabbitMQ.Ch)
	leadHandler := handlers.NewLeadHandler(producer, cancelUC)
	healthHandler := handlers.NewHealthHandler(db, rabbitMQ.Conn)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(appmw.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: strings.Split(envOr("CORS_ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	r.Post("/leads", leadHandler.CaptureLead)
	r.Delete("/leads/{id}/drip", leadHandler.HandleCancel)
	r.Get("/health", healthHandler.Handle)
	r.Handle("/metrics", promhttp.Handler())

	port := ":" + envOr("PORT", "8080")
	log.Printf("🔥 AgentSuit drip engine running on port %s", port)
	http.ListenAndServe(port, r)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
