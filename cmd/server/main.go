package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/yourorg/checkout-orchestrator/internal/config"
	"github.com/yourorg/checkout-orchestrator/internal/confirm"
	"github.com/yourorg/checkout-orchestrator/internal/confirm/circuitbreaker"
	"github.com/yourorg/checkout-orchestrator/internal/dispatch"
	"github.com/yourorg/checkout-orchestrator/internal/monitor"
	"github.com/yourorg/checkout-orchestrator/internal/orchestrator"
	"github.com/yourorg/checkout-orchestrator/internal/orderstore"
	"github.com/yourorg/checkout-orchestrator/internal/policy"
	"github.com/yourorg/checkout-orchestrator/internal/renderer"
	"github.com/yourorg/checkout-orchestrator/internal/reporting"
	"github.com/yourorg/checkout-orchestrator/internal/session"
	"github.com/yourorg/checkout-orchestrator/internal/widget/tosspay"
)

const serviceName = "checkout-orchestrator"

// server bundles the handlers' shared collaborators.
type server struct {
	orch    *orchestrator.Orchestrator
	store   *orderstore.Store
	monitor *monitor.ContractMonitor
	rec     *reporting.Recorder
}

func newServer(orch *orchestrator.Orchestrator, store *orderstore.Store, cm *monitor.ContractMonitor, rec *reporting.Recorder) *server {
	return &server{orch: orch, store: store, monitor: cm, rec: rec}
}

// startCheckoutHandler runs the full checkout entry flow for the page-entry
// query parameters and registers the order for the later confirmation's
// amount check.
func (s *server) startCheckoutHandler(c *gin.Context) {
	// The session must outlive this request: submit arrives on a later
	// request, and net/http cancels the request context as soon as the
	// handler returns. Teardown stays the only way to close the session.
	sess, err := s.orch.Start(context.WithoutCancel(c.Request.Context()), c.Request.URL.Query())
	if err != nil {
		failure, _ := sess.Failure()
		c.JSON(http.StatusBadRequest, gin.H{
			"sessionId": sess.ID,
			"state":     sess.State(),
			"failure":   failure,
			"recovery":  s.orch.Recovery(failure.Code, 0, "intent"),
		})
		return
	}

	oi, _ := sess.Intent()
	if err := s.store.Register(oi.OrderID, oi.OrderName, oi.Amount); err != nil {
		log.Printf("server: rejecting checkout for order %s: %v", oi.OrderID, err)
		s.orch.Teardown(sess.ID)
		c.JSON(http.StatusConflict, gin.H{"code": "ORDER_ALREADY_CONFIRMED", "message": "이미 처리된 주문입니다."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": sess.ID,
		"state":     sess.State(),
		"orderId":   oi.OrderID,
		"orderName": oi.OrderName,
		"amount":    oi.Amount,
	})
}

// submitHandler triggers the redirect-based payment request for a session.
func (s *server) submitHandler(c *gin.Context) {
	redirect, err := s.orch.Submit(c.Param("sessionId"))
	if err != nil {
		var derr *dispatch.DispatchError
		switch {
		case errors.As(err, &derr):
			// Failed before any redirect; the session stays usable.
			c.JSON(http.StatusBadGateway, gin.H{"error": derr.Error(), "recoverable": true})
		case errors.Is(err, dispatch.ErrNotReady), errors.Is(err, session.ErrSessionClosed):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkoutUrl": redirect.CheckoutURL})
}

// successReturnHandler is the landing route for the external service's
// success redirect. The confirmation outcome, not the redirect, decides the
// final status.
func (s *server) successReturnHandler(c *gin.Context) {
	outcome, err := s.orch.HandleSuccessReturn(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		failure, _ := outcome.Session.Failure()
		c.JSON(http.StatusBadRequest, gin.H{"status": "FAILED", "failure": failure, "recovery": outcome.Recovery})
		return
	}
	if outcome.Result.Confirmed {
		c.JSON(http.StatusOK, gin.H{
			"status":  "CONFIRMED",
			"orderId": c.Query("orderId"),
			"amount":  c.Query("amount"),
		})
		return
	}
	failure, _ := outcome.Session.Failure()
	c.JSON(http.StatusOK, gin.H{"status": "FAILED", "failure": failure, "recovery": outcome.Recovery})
}

// failReturnHandler is the landing route for the external service's failure
// redirect. No confirmation happens here.
func (s *server) failReturnHandler(c *gin.Context) {
	outcome, err := s.orch.HandleFailureReturn(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "FAILED", "failure": outcome.Failure, "recovery": outcome.Recovery})
}

// confirmPaymentHandler is the backend confirmation endpoint. It validates
// the payload against the contract schema, then checks the echoed amount
// against the registered order before marking it confirmed.
func (s *server) confirmPaymentHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "요청 본문을 읽을 수 없습니다."})
		return
	}

	valid, violations, err := s.monitor.Validate(body)
	if err != nil {
		log.Printf("server: confirm contract validation error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "message": "결제 승인 중 오류가 발생했습니다."})
		return
	}
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": monitor.FormatErrors(violations)})
		return
	}

	// The body was already drained for the schema check; decode the bytes
	// rather than binding the request again.
	var req confirm.Request
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	if err := s.store.Confirm(req.OrderID, req.Amount, req.PaymentKey); err != nil {
		switch {
		case errors.Is(err, orderstore.ErrUnknownOrder):
			c.JSON(http.StatusNotFound, gin.H{"code": "ORDER_NOT_FOUND", "message": "주문을 찾을 수 없습니다."})
		case errors.Is(err, orderstore.ErrAmountMismatch):
			log.Printf("server: amount mismatch confirming order %s", req.OrderID)
			c.JSON(http.StatusBadRequest, gin.H{"code": "AMOUNT_MISMATCH", "message": "결제 금액이 주문 금액과 일치하지 않습니다."})
		case errors.Is(err, orderstore.ErrAlreadyConfirmed):
			c.JSON(http.StatusConflict, gin.H{"code": "ALREADY_CONFIRMED", "message": "이미 승인된 주문입니다."})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "message": "결제 승인 중 오류가 발생했습니다."})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orderId":    req.OrderID,
		"amount":     req.Amount,
		"paymentKey": req.PaymentKey,
		"status":     "DONE",
		"approvedAt": time.Now().Format(time.RFC3339),
	})
}

// retrospectiveHandler exposes the aggregated session outcome report.
func (s *server) retrospectiveHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.rec.GenerateRetrospective())
}

func setupRouter(s *server) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))

	router.GET("/checkout/start", s.startCheckoutHandler)
	router.POST("/checkout/:sessionId/submit", s.submitHandler)
	router.GET("/checkout/success", s.successReturnHandler)
	router.GET("/checkout/fail", s.failReturnHandler)
	router.POST("/api/payments/confirm", s.confirmPaymentHandler)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/internal/retrospective", s.retrospectiveHandler)
	return router
}

// initTracer installs a stdout-exporting tracer provider and returns its
// shutdown hook.
func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdown, err := initTracer()
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var gateway *tosspay.Gateway
	if cfg.ProviderBaseURL != "" {
		gateway = tosspay.NewGatewayWithBaseURL(httpClient, cfg.ProviderBaseURL)
	} else {
		gateway = tosspay.NewGateway(httpClient)
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{})
	confirmer := confirm.NewService(httpClient, cfg.ConfirmEndpoint, breaker)

	recovery, err := policy.NewRecoveryPolicy(policy.DefaultRules())
	if err != nil {
		log.Fatalf("Failed to compile recovery policy: %v", err)
	}

	contractMonitor, err := monitor.NewConfirmRequestMonitor()
	if err != nil {
		log.Fatalf("Failed to compile confirmation contract schema: %v", err)
	}

	recorder := reporting.NewRecorder()
	orch := orchestrator.New(
		gateway,
		renderer.New(),
		dispatch.New(dispatch.ReturnURLs{Success: cfg.SuccessURL, Fail: cfg.FailURL}),
		confirmer,
		recovery,
		session.NewRegistry(),
		recorder,
		orchestrator.Config{
			ClientKey:   cfg.ClientKey,
			CustomerKey: cfg.CustomerKey,
			Currency:    cfg.Currency,
		},
	)

	srv := newServer(orch, orderstore.NewStore(), contractMonitor, recorder)

	log.Println("Starting server...")
	router := setupRouter(srv)
	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
