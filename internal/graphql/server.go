package graphql

import (
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/sirupsen/logrus"

	"github.com/rpattn/changereport/internal/middleware"
)

// NewServer builds the gqlgen handler for the report schema.
func NewServer(resolver *Resolver, logger *logrus.Logger) *handler.Server {
	srv := handler.New(NewExecutableSchema(resolver))
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})
	srv.Use(&middleware.OperationLoggerExtension{Logger: logger})
	return srv
}
