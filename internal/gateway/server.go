package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/plexdns-gateway/pkg/middleware"
)

// Service はゲートウェイが呼び出すサービスファサード。
// 失敗時のエラーメッセージはそのままクライアントに返される。
type Service interface {
	Install(ctx context.Context) error
	Uninstall(ctx context.Context) error
	CreateDomain(ctx context.Context, p Payload) (any, error)
	DeleteDomain(ctx context.Context, p Payload) error
	AddRecord(ctx context.Context, p Payload) (any, error)
	UpdateRecord(ctx context.Context, p Payload) error
	DelRecord(ctx context.Context, p Payload) error
}

// Config はゲートウェイの設定。起動後に変更されることはない。
type Config struct {
	// APIToken はクライアントの認証に使用する共有トークン。
	APIToken string
	// Identity はレコード操作に注入するプロバイダの識別情報。
	Identity Identity
	// AllowedOrigins はCORSを許可するオリジン。
	AllowedOrigins []string
}

// Option はServerの任意設定。
type Option func(*Server)

// WithRegisterer はメトリクスを登録するPrometheusレジストリを指定する。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Server) {
		s.registerer = reg
	}
}

// Server はDNS管理APIのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// service はサービスファサード。
	service Service
	// identity はレコード操作に注入するプロバイダの識別情報。
	identity   Identity
	registerer prometheus.Registerer
	metrics    *metrics
	httpServer *http.Server
}

// NewServer は新しいゲートウェイサーバーを生成する。
func NewServer(port string, cfg Config, service Service, opts ...Option) *Server {
	s := &Server{
		port:     port,
		service:  service,
		identity: cfg.Identity,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics(s.registerer)

	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.HandleMethodNotAllowed = false
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(s.metrics.middleware())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.APIToken(cfg.APIToken))
	router.Use(jsonBody())
	s.router = router
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler はルーティング済みのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動する。Shutdownで停止した場合はnilを返す。
func (s *Server) Run() error {
	log.Printf("ゲートウェイを起動: port=%s", s.port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown は処理中のリクエストの完了を待ってHTTPサーバーを停止する。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes は操作ごとのルーティングを設定する。
func (s *Server) setupRoutes() {
	for _, op := range Operations {
		method, path := op.Route()
		s.router.Handle(method, path, s.handle(op))
	}

	s.router.NoRoute(func(c *gin.Context) {
		middleware.AbortWithError(c, http.StatusNotFound, "Endpoint not found")
	})
}

// handle は操作を実行するハンドラを返す。
// 検証エラーとサービスファサードのエラーはいずれも400として返す。
func (s *Server) handle(op Operation) gin.HandlerFunc {
	sc := schemas[op]
	return func(c *gin.Context) {
		c.Set(operationKey, op)

		payload, err := sc.validate(bodyFrom(c), s.identity)
		if err != nil {
			middleware.WriteJSON(c, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		result, err := s.dispatch(c.Request.Context(), op, payload)
		if err != nil {
			s.metrics.facade.WithLabelValues(op.String()).Inc()
			log.Printf("操作に失敗: operation=%s, error=%v", op, err)
			middleware.WriteJSON(c, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		middleware.WriteJSON(c, http.StatusOK, result)
	}
}
