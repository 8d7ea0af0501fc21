package models

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	sqliteEncrypt "github.com/Daskott/gorm-sqlite-cipher"
	"github.com/carsafe/carsafe/server/logger"
	"github.com/carsafe/carsafe/utils"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const DB_NAME = "carsafe.db"

var logg = logger.NewLogger()

type BaseModel struct {
	ID        uint      `json:"id,omitempty" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Datastore owns the gorm handle for the life of the process. It is opened
// once at startup, handed to every component that needs storage, and closed
// on shutdown - never reached for as ambient package state.
type Datastore struct {
	db         *gorm.DB
	dbFilePath string
}

// NewDatastore opens(or creates) the encrypted sqlite db under
// 'dbRootDir/db', migrates the schema & inserts seed data.
func NewDatastore(passPhrase string, dbRootDir string) (*Datastore, error) {
	ds, err := openDatastore(passPhrase, dbRootDir)
	if err != nil {
		return nil, err
	}

	err = ds.db.AutoMigrate(
		&JobStatus{}, &Job{},
		&User{}, &Profile{}, &Incident{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %v", err)
	}

	ds.populateWithSeedData()

	return ds, nil
}

// InitializeTestDb creates a throw-away datastore for tests.
func InitializeTestDb() (*Datastore, error) {
	rootDir, err := os.MkdirTemp("", "carsafe-test")
	if err != nil {
		return nil, err
	}

	return NewDatastore("test-passphrase", rootDir)
}

func (ds *Datastore) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// DbFilePath returns the location of the sqlite file, used by the backup job.
func (ds *Datastore) DbFilePath() string {
	return ds.dbFilePath
}

func DbDirectory(dbRootDir string) (string, error) {
	dbDir := filepath.Join(dbRootDir, "db")

	err := utils.CreateDirIfNotExist(dbDir)
	if err != nil {
		return "", err
	}

	return dbDir, nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func openDatastore(passPhrase string, dbRootDir string) (*Datastore, error) {
	dbDir, err := DbDirectory(dbRootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create db directory: %v", err)
	}

	dbFilePath := filepath.Join(dbDir, DB_NAME)
	db, err := gorm.Open(sqliteEncrypt.Open(dbDSN(dbFilePath, passPhrase)), &gorm.Config{
		Logger: gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				LogLevel:                  gormLogger.Silent,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %v", err)
	}

	return &Datastore{db: db, dbFilePath: dbFilePath}, nil
}

func (ds *Datastore) populateWithSeedData() {
	if err := ds.db.First(&JobStatus{}).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		logg.Info("Inserting seed data into 'JobStatus'")
		ds.db.Create(&[]JobStatus{{Name: ENQUEUED_JOB}, {Name: IN_PROGRESS_JOB}, {Name: SUCCESSFUL_JOB}, {Name: DEAD_JOB}})
	}
}

func dbDSN(dbFilePath string, passPhrase string) string {
	return fmt.Sprintf(
		"file:%v?_pragma_key=%s&_pragma_cipher_page_size=4096&_journal_mode=WAL",
		dbFilePath,
		passPhrase,
	)
}
