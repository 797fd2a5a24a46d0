package serverfx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/joeydtaylor/steeze-bridge/pkg/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Server owns the public listener and the optional admin listener.
type Server struct {
	log   *zap.Logger
	app   *http.Server
	admin *http.Server

	appLn, adminLn net.Listener
}

type serverDeps struct {
	fx.In
	Cfg   config.Config
	Log   *zap.Logger
	App   http.Handler `name:"app"`
	Admin http.Handler `name:"admin"`
}

func provideServer(d serverDeps) *Server {
	s := &Server{
		log: d.Log,
		app: &http.Server{
			Addr:              d.Cfg.ListenAddress(),
			Handler:           d.App,
			ReadHeaderTimeout: 15 * time.Second,
			ReadTimeout:       15 * time.Second,
			// A response may legitimately take the whole exchange timeout.
			WriteTimeout: d.Cfg.ExchangeTimeout() + 5*time.Second,
			IdleTimeout:  60 * time.Second,
			// "OPTIONS *" is a request for the core like any other.
			DisableGeneralOptionsHandler: true,
		},
	}
	if d.Cfg.Admin.Enable {
		s.admin = &http.Server{
			Addr:              d.Cfg.Admin.Address,
			Handler:           d.Admin,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return s
}

// Start binds both listeners, then serves in the background. Bind errors are
// returned; a serve error after that is reported to fail.
func (s *Server) Start(fail func(error)) error {
	ln, err := net.Listen("tcp", s.app.Addr)
	if err != nil {
		return err
	}
	s.appLn = ln

	if s.admin != nil {
		aln, err := net.Listen("tcp", s.admin.Addr)
		if err != nil {
			_ = ln.Close()
			return err
		}
		s.adminLn = aln
		s.log.Info("admin listener starting", zap.String("addr", aln.Addr().String()))
		go s.serve(fail, func() error { return s.admin.Serve(aln) })
	}

	s.log.Info("server starting", zap.String("addr", ln.Addr().String()))
	go s.serve(fail, func() error { return s.app.Serve(ln) })
	return nil
}

func (s *Server) serve(fail func(error), run func() error) {
	if err := run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fail(err)
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.admin != nil {
		errs = append(errs, s.admin.Shutdown(ctx))
	}
	errs = append(errs, s.app.Shutdown(ctx))
	return errors.Join(errs...)
}

// AppAddr is the bound public address once started.
func (s *Server) AppAddr() string {
	if s.appLn == nil {
		return s.app.Addr
	}
	return s.appLn.Addr().String()
}

func (s *Server) AdminAddr() string {
	if s.adminLn == nil {
		return ""
	}
	return s.adminLn.Addr().String()
}
