package server

import (
	"github.com/carsafe/carsafe/server/gstorage"
	"github.com/carsafe/carsafe/server/work"
)

const (
	backupDbHandlerName       = "backupDb"
	notifyContactsHandlerName = "notifyEmergencyContacts"
)

func (app *app) registerJobHandlers() error {
	if err := app.workerPool.Register(backupDbHandlerName, app.backupDb); err != nil {
		return err
	}

	return app.workerPool.Register(notifyContactsHandlerName, app.notifyEmergencyContacts)
}

func (app *app) enqueuePeriodicJobs() error {
	if !app.sqliteBackupEnabled() {
		return nil
	}

	return app.workerPool.PeriodicallyPerform(app.config.Google.Storage.SqliteBackupSchedule, work.JobParams{
		Name:    backupDbHandlerName,
		Handler: backupDbHandlerName,
		Unique:  true,
		Args:    map[string]interface{}{},
	})
}

// backupDb uploads the encrypted sqlite file to the configured bucket.
func (app *app) backupDb(map[string]interface{}) error {
	gs, err := gstorage.NewGStorage(app.config.Google.ApplicationCredentials, app.config.Google.Storage.Prefix)
	if err != nil {
		return err
	}

	return gs.UploadFile(app.config.Google.Storage.Bucket, app.ds.DbFilePath())
}

// notifyEmergencyContacts is the notification stub: the incident is logged
// for the record, actual delivery(SMS/email) is intentionally not wired up.
func (app *app) notifyEmergencyContacts(args map[string]interface{}) error {
	logg.Infof("[INCIDENT REPORTED] QR: %v, Loc: %v", args["public_id"], args["location"])
	return nil
}

func (app *app) sqliteBackupEnabled() bool {
	enabled, ok := app.config.Google.Storage.EnableSqliteBackupAndSync.(bool)
	return ok && enabled
}
