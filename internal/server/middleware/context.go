package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"docgraph/internal/docs"
	"docgraph/pkg/ai"
	"docgraph/pkg/answer"
	graphstore "docgraph/pkg/graph/store"
	"docgraph/pkg/rerank"
	"docgraph/pkg/retriever"
)

type AppUser struct {
	UserID      string
	Role        string
	Permissions []string
}

// App holds the services shared by all request handlers. Everything here is
// constructed once at startup and safe for concurrent use.
type App struct {
	DBConn    *pgxpool.Pool
	Queue     *amqp091.Channel
	Key       *keyfunc.Keyfunc
	S3        *s3.Client
	AiClient  ai.Client
	Docs      *docs.Store
	Graph     *graphstore.Store
	Retriever *retriever.Retriever
	Reranker  *rerank.Client
	Generator *answer.Generator

	MasterAPIKey   string
	MasterUserID   string
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
