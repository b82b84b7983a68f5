package server

import (
	"net/http"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"connectrpc.com/otelconnect"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mpapenbr/racesim-engine/log"
)

// NewMux registers the race service and the grpc health service.
func NewMux(srv *raceServer) *http.ServeMux {
	mux := http.NewServeMux()
	var interceptors []connect.Interceptor
	if myOtel, err := otelconnect.NewInterceptor(); err == nil {
		interceptors = append(interceptors, myOtel)
	} else {
		log.Warn("could not create otel interceptor", log.ErrorField(err))
	}
	path, handler := srv.Handler(connect.WithInterceptors(interceptors...))
	mux.Handle(path, handler)
	mux.Handle(grpchealth.NewHandler(grpchealth.NewStaticChecker(ServiceName)))
	return mux
}

// NewHandler serves h2c and applies a permissive CORS setup.
func NewHandler(mux http.Handler) http.Handler {
	return h2c.NewHandler(newCORS().Handler(mux), &http2.Server{})
}

func newCORS() *cors.Cors {
	// browsers watching a race may come from anywhere
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"Accept",
			"Accept-Encoding",
			"Accept-Post",
			"Connect-Accept-Encoding",
			"Connect-Content-Encoding",
			"Content-Encoding",
			"Grpc-Accept-Encoding",
			"Grpc-Encoding",
			"Grpc-Message",
			"Grpc-Status",
			"Grpc-Status-Details-Bin",
		},
		// FF caps this value at 24h, Chrome at 2h
		MaxAge: int(2 * time.Hour / time.Second),
	})
}
