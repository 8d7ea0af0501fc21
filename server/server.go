package server

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/carsafe/carsafe/server/auth"
	"github.com/carsafe/carsafe/server/auth/key"
	"github.com/carsafe/carsafe/server/logger"
	"github.com/carsafe/carsafe/server/models"
	"github.com/carsafe/carsafe/server/work"
	"github.com/carsafe/carsafe/shared"
	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
)

type RequestContextKey string

type DecodedJWT struct {
	Claims   *auth.CarsafeTokenClaims
	ErrorMsg string
}

type ResponsePayload struct {
	Errors  []string    `json:"errors,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

var logg = logger.NewLogger()

// app holds every injected collaborator the handlers need - the datastore,
// signing keys, worker pool & validators all arrive through here.
type app struct {
	ds          *models.Datastore
	authKeyPair *key.KeyPair
	workerPool  *work.WorkerPoolAdapter
	validate    *validator.Validate
	config      *shared.ServerConfig
}

func newApp(
	ds *models.Datastore,
	authKeyPair *key.KeyPair,
	workerPool *work.WorkerPoolAdapter,
	config *shared.ServerConfig,
) (*app, error) {
	validate := validator.New()
	if err := RegisterValidators(validate); err != nil {
		return nil, err
	}

	return &app{
		ds:          ds,
		authKeyPair: authKeyPair,
		workerPool:  workerPool,
		validate:    validate,
		config:      config,
	}, nil
}

// Start brings the whole server up: config, datastore, worker pool, routes.
// It blocks until SIGINT/SIGTERM & then shuts everything down in order.
func Start(config *viper.Viper, devMode bool) {
	serverConfig, err := parseServerConfig(config)
	fatalOnError(err)

	rootDir := configDirectory(devMode)

	restoreDbBackupIfNeeded(serverConfig, rootDir)

	ds, err := models.NewDatastore(serverConfig.Sqlite.PassPhrase, rootDir)
	fatalOnError(err)

	authKeyPair, err := key.NewKeyPairFromRSAPrivateKeyPem(serverConfig.Carsafe.PrivateKeyPem)
	fatalOnError(err)

	workerPool := work.NewWorkerAdapter(ds, serverConfig.Carsafe.Cron.TimeZone)

	app, err := newApp(ds, authKeyPair, workerPool, serverConfig)
	fatalOnError(err)

	fatalOnError(app.registerJobHandlers())
	fatalOnError(app.enqueuePeriodicJobs())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%v", serverConfig.Carsafe.Listener.Port),
		Handler: app.router(),
	}

	workerPool.Start()
	go serve(server)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	app.cleanup(server)
}

func (app *app) router() *mux.Router {
	router := mux.NewRouter()
	router.Use(app.initialContextMiddleware, loggingMiddleware)

	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/jwks.json", app.jwks).Methods("GET")
	router.HandleFunc("/signup", app.signUp).Methods("POST")
	router.HandleFunc("/login", app.logIn).Methods("POST")

	ownerRouter := router.PathPrefix("/owner").Subrouter()
	ownerRouter.Use(app.protectedRouteMiddleware)
	ownerRouter.HandleFunc("/profile", app.findProfile).Methods("GET")
	ownerRouter.HandleFunc("/profile", app.upsertProfile).Methods("POST")
	ownerRouter.HandleFunc("/profile/status", app.updateProfileStatus).Methods("PUT")
	ownerRouter.HandleFunc("/incidents", app.listIncidents).Methods("GET")

	publicRouter := router.PathPrefix("/public").Subrouter()
	publicRouter.HandleFunc("/qr/{public_id}", app.resolvePublicProfile).Methods("GET")
	publicRouter.HandleFunc("/incidents", app.reportIncident).Methods("POST")

	return router
}

func parseServerConfig(config *viper.Viper) (*shared.ServerConfig, error) {
	serverConfig := &shared.ServerConfig{}

	if err := config.Unmarshal(serverConfig); err != nil {
		return nil, fmt.Errorf("unable to parse server config: %v", err)
	}

	if err := validator.New().Struct(serverConfig); err != nil {
		return nil, fmt.Errorf("invalid server config: %v", err)
	}

	return serverConfig, nil
}
