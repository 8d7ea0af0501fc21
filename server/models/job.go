package models

import (
	"errors"

	"gorm.io/gorm"
)

var ErrDuplicateJob = errors.New("job with the given name already exists in queue")

type Job struct {
	BaseModel
	Fails       int
	Name        string
	Handler     string
	Args        string
	LastError   string
	Claimed     bool `gorm:"default:false"`
	JobStatusID uint
}

func (ds *Datastore) UpdateJob(jobID uint, data map[string]interface{}) error {
	return ds.db.Table("jobs").Where("id = ?", jobID).Updates(data).Error
}

// ClaimJob marks a job as in-progress iff no other worker got there first.
func (ds *Datastore) ClaimJob(jobID uint) (bool, error) {
	inProgressStatus, err := ds.FindJobStatus(IN_PROGRESS_JOB)
	if err != nil {
		return false, err
	}

	res := ds.db.Model(&Job{}).Where("id = ? AND claimed = ?", jobID, false).Updates(map[string]interface{}{
		"claimed":       true,
		"job_status_id": inProgressStatus.ID,
	})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// CreateJob enqueues a job. When 'unique' is set & a job with the same name
// is already enqueued or in-progress, ErrDuplicateJob is returned instead.
func (ds *Datastore) CreateJob(name string, handler string, args string, unique bool) error {
	enqueuedStatus, err := ds.FindJobStatus(ENQUEUED_JOB)
	if err != nil {
		return err
	}

	if unique {
		inProgressStatus, err := ds.FindJobStatus(IN_PROGRESS_JOB)
		if err != nil {
			return err
		}

		statusIDs := []uint{enqueuedStatus.ID, inProgressStatus.ID}
		res := ds.db.Where("name = ? AND job_status_id IN ?", name, statusIDs).First(&Job{})
		if res.Error != nil && !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return res.Error
		}

		if res.RowsAffected > 0 {
			return ErrDuplicateJob
		}
	}

	return ds.db.Create(&Job{
		Name:        name,
		Handler:     handler,
		Args:        args,
		JobStatusID: enqueuedStatus.ID,
	}).Error
}

// LastJob returns the most recent job with the given status & claim state.
func (ds *Datastore) LastJob(status string, claimed bool) (*Job, error) {
	jobStatus, err := ds.FindJobStatus(status)
	if err != nil {
		return nil, err
	}

	job := Job{}
	err = ds.db.Where("job_status_id = ? AND claimed = ?", jobStatus.ID, claimed).Last(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}
