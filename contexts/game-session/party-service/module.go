package partyservice

import (
	"log/slog"

	httpadapter "chipsplit/contexts/game-session/party-service/adapters/http"
	"chipsplit/contexts/game-session/party-service/adapters/memory"
	"chipsplit/contexts/game-session/party-service/application"
	"chipsplit/contexts/game-session/party-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Repository   ports.Repository
	Outbox       ports.OutboxWriter
	Clock        ports.Clock
	IDGenerator  ports.IDGenerator
	Codes        ports.CodeGenerator
	Tokens       ports.TokenGenerator
	CodeAttempts int
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:         deps.Repository,
		Outbox:       deps.Outbox,
		Clock:        deps.Clock,
		IDGen:        deps.IDGenerator,
		Codes:        deps.Codes,
		Tokens:       deps.Tokens,
		CodeAttempts: deps.CodeAttempts,
		Logger:       deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:  store,
		Outbox:      store,
		Clock:       store,
		IDGenerator: store,
		Codes:       store,
		Tokens:      store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
