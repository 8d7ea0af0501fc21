package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/carsafe/carsafe/server/auth"
	"github.com/carsafe/carsafe/server/gstorage"
	"github.com/carsafe/carsafe/server/models"
	"github.com/carsafe/carsafe/shared"
	"github.com/carsafe/carsafe/utils"
	"github.com/go-playground/validator"
)

// ---------------------------------------------------------------------------------//
// Handler Helper functions
// --------------------------------------------------------------------------------//

func writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		logg.Error(payLoad.Errors)
	} else if statusCode >= http.StatusBadRequest {
		logg.Info(payLoad.Errors)
	}

	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

func removeUnknownFields(args map[string]interface{}, validFields map[string]bool) {
	for key := range args {
		if !validFields[key] {
			delete(args, key)
		}
	}
}

func RegisterValidators(validate *validator.Validate) error {
	return validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		// if whitespace in password return false
		err := validate.Var(fl.Field().String(), "contains= ")
		if err == nil {
			return false
		}
		return len(fl.Field().String()) > 0
	})
}

// requestUser returns the account the verified session token belongs to.
func (app *app) requestUser(r *http.Request) (*models.User, error) {
	decodedJWT := r.Context().Value(RequestContextKey("decodedJWT")).(DecodedJWT)
	return app.ds.FindUserBy("id", decodedJWT.Claims.Subject)
}

// ---------------------------------------------------------------------------------//
// Middleware Helper functions
// --------------------------------------------------------------------------------//

func (app *app) decodeAndVerifyAuthHeader(authHeaderValue string) DecodedJWT {
	authHeaderList := strings.Split(authHeaderValue, "Bearer ")
	if len(authHeaderList) < 2 {
		return DecodedJWT{ErrorMsg: "no token provided"}
	}

	tokenClaims, err := auth.DecodeJWT(authHeaderList[1], app.authKeyPair)
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	// validate that the user account still exists
	_, err = app.ds.FindUserBy("id", tokenClaims.Subject)
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	return DecodedJWT{Claims: tokenClaims}
}

// ---------------------------------------------------------------------------------//
// Server Helper functions
// --------------------------------------------------------------------------------//

func serve(server *http.Server) {
	logg.Infof("Carsafe server is listening on port%v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func (app *app) cleanup(server *http.Server) {
	// Stop background jobs before the db goes away
	app.workerPool.Stop()

	if app.sqliteBackupEnabled() {
		if err := app.backupDb(nil); err != nil {
			logg.Errorf("final db backup failed: %v", err)
		}
	}

	// Shutdown server gracefully
	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("Carsafe server shutdown failed:%+s", err)
	}

	if err := app.ds.Close(); err != nil {
		logg.Errorf("error closing datastore: %v", err)
	}

	logg.Infof("Carsafe server stopped properly")
}

// configDirectory retrieves the directory holding the server's db & config
// Or logs an error message and then calls os.Exit if it's unable to.
func configDirectory(devMode bool) string {
	// Use 'carsafe' folder in home directory for prod
	configFolderName := "carsafe"
	rootDir, err := os.UserHomeDir()
	fatalOnError(err)

	// Use 'dev' folder in current directory for dev mode
	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		fatalOnError(err)
	}

	configDir := filepath.Join(rootDir, configFolderName)

	err = utils.CreateDirIfNotExist(configDir)
	fatalOnError(err)

	return configDir
}

// restoreDbBackupIfNeeded pulls the last db backup from cloud storage when
// a host starts without a local db file.
func restoreDbBackupIfNeeded(config *shared.ServerConfig, rootDir string) {
	enabled, ok := config.Google.Storage.EnableSqliteBackupAndSync.(bool)
	if !ok || !enabled {
		return
	}

	dbDir, err := models.DbDirectory(rootDir)
	fatalOnError(err)

	dbFilePath := filepath.Join(dbDir, models.DB_NAME)
	if utils.FileExist(dbFilePath) {
		return
	}

	gs, err := gstorage.NewGStorage(config.Google.ApplicationCredentials, config.Google.Storage.Prefix)
	fatalOnError(err)

	err = gs.DownloadFile(config.Google.Storage.Bucket, models.DB_NAME, dbFilePath)
	if err == gstorage.ErrObjectNotExist {
		logg.Info("No db backup found in cloud storage, starting fresh")
		return
	}
	fatalOnError(err)

	logg.Infof("Restored db backup to %v", dbFilePath)
}

func fatalOnError(err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
