package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/annel0/blockverse/internal/api"
	"github.com/annel0/blockverse/internal/auth"
	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/transport"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ServerConfig - параметры игрового сервера
type ServerConfig struct {
	HTTPAddr   string // адрес HTTP (WebSocket, REST, /metrics)
	KCPAddr    string // пусто - KCP выключен
	Dispatcher DispatcherConfig
	Tokens     *auth.TokenIssuer // для админских маршрутов REST
	Bus        eventbus.EventBus // может быть nil
}

// Server - входная точка: HTTP с /ws и REST, плюс опциональный KCP
type Server struct {
	cfg        ServerConfig
	registry   *prometheus.Registry
	dispatcher *Dispatcher
	rest       *api.RestServer

	httpSrv  *http.Server
	listener net.Listener
	kcp      *transport.KCPListener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *logging.Logger
}

// NewServer собирает сервер: диспетчер, REST и маршрут /ws
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if cfg.Bus != nil {
		if err := eventbus.RegisterMetrics(reg, cfg.Bus); err != nil {
			return nil, fmt.Errorf("ошибка регистрации метрик шины: %w", err)
		}
	}

	logger := logging.GetServerLogger()
	d := NewDispatcher(cfg.Dispatcher, cfg.Bus, reg)

	rest, err := api.NewRestServer(api.Config{
		Lobby:    d,
		Tokens:   cfg.Tokens,
		Registry: reg,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания REST сервера: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		registry:   reg,
		dispatcher: d,
		rest:       rest,
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}

	rest.Router().GET("/ws", s.handleWebSocket)
	s.httpSrv = &http.Server{
		Handler:           rest.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Dispatcher возвращает диспетчер комнат
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Registry - реестр метрик этого сервера
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Addr - фактический адрес HTTP после Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// KCPAddr - фактический адрес KCP после Start; nil если KCP выключен
func (s *Server) KCPAddr() net.Addr {
	if s.kcp == nil {
		return nil
	}
	return s.kcp.Addr()
}

// Start запускает диспетчер и слушатели. Не блокирует.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("ошибка запуска HTTP на %s: %w", s.cfg.HTTPAddr, err)
	}
	s.listener = ln

	if s.cfg.KCPAddr != "" {
		kl, err := transport.ListenKCP(s.cfg.KCPAddr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("ошибка запуска KCP на %s: %w", s.cfg.KCPAddr, err)
		}
		s.kcp = kl
	}

	go s.dispatcher.Run(s.ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP сервер завершился с ошибкой: %v", err)
		}
	}()

	if s.kcp != nil {
		s.wg.Add(1)
		go s.acceptKCP()
		s.logger.Info("🚀 KCP слушает %s", s.kcp.Addr())
	}

	s.logger.Info("🚀 Сервер запущен на %s (ws://%s/ws)", ln.Addr(), ln.Addr())
	return nil
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := transport.Upgrade(c.Writer, c.Request)
	if err != nil {
		s.logger.Warn("Не удалось принять WebSocket с %s: %v", c.ClientIP(), err)
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.dispatcher.ServeConn(s.ctx, conn)
}

func (s *Server) acceptKCP() {
	defer s.wg.Done()

	for {
		conn, err := s.kcp.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			s.logger.Error("Ошибка приёма KCP соединения: %v", err)
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.dispatcher.ServeConn(s.ctx, conn)
		}()
	}
}

// Stop закрывает слушатели, останавливает диспетчер и ждёт соединения
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("🛑 Останавливаем сервер...")

	var firstErr error
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		firstErr = err
	}

	s.cancel()
	if s.kcp != nil {
		s.kcp.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		<-s.dispatcher.Done()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("🛑 Сервер остановлен")
	case <-ctx.Done():
		if firstErr == nil {
			firstErr = ctx.Err()
		}
	}
	return firstErr
}
