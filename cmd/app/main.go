package main

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/blue-iris-software/notekeeper-back/internal/config"
	"github.com/blue-iris-software/notekeeper-back/internal/db"
	"github.com/blue-iris-software/notekeeper-back/internal/service"
	"github.com/blue-iris-software/notekeeper-back/internal/transport"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.NewConfig,
			db.NewGormClient,
			newLogger,
			service.NewAuth,
			service.NewNotes,
			transport.NewHTTPServer,
		),
		fx.Invoke(func(server *transport.HTTPServer) {}),
	)

	app.Run()
}

func newLogger() (*zap.SugaredLogger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
