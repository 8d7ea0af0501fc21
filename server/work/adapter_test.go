package work

import (
	"bytes"
	"testing"
	"time"

	"github.com/carsafe/carsafe/server/models"
	"github.com/stretchr/testify/assert"
)

func TestPerform(t *testing.T) {
	ds, err := models.InitializeTestDb()
	assert.Nil(t, err)

	workerPool := NewWorkerAdapter(ds, "UTC")
	outputBuffer := new(bytes.Buffer)

	// Register job function
	writeToBuffer := func(m map[string]interface{}) error {
		_, err := outputBuffer.WriteString("Hello")
		return err
	}
	err = workerPool.Register("write_to_buffer", writeToBuffer)
	assert.Nil(t, err)

	err = workerPool.Perform(JobParams{
		Name:    "write_to_buffer",
		Handler: "write_to_buffer",
		Args:    map[string]interface{}{},
	})
	assert.Nil(t, err)
	assert.Empty(t, outputBuffer.String(), "Expected outputBuffer to be empty before workers start")

	workerPool.Start()

	// Wait for job to be processed
	time.Sleep(2 * time.Second)

	workerPool.Stop()

	assert.Equal(t, "Hello", outputBuffer.String(), "Expected job to write to outputBuffer")

	job, err := ds.LastJob(models.SUCCESSFUL_JOB, false)
	assert.Nil(t, err)
	assert.Equal(t, "write_to_buffer", job.Name)
}

func TestPerformDropsDuplicateUniqueJobs(t *testing.T) {
	ds, err := models.InitializeTestDb()
	assert.Nil(t, err)

	workerPool := NewWorkerAdapter(ds, "UTC")
	err = workerPool.Register("noop", func(m map[string]interface{}) error { return nil })
	assert.Nil(t, err)

	job := JobParams{Name: "noop", Handler: "noop", Unique: true, Args: map[string]interface{}{}}

	assert.Nil(t, workerPool.Perform(job))
	// Second enqueue of the same unique job is silently dropped
	assert.Nil(t, workerPool.Perform(job))

	_, err = ds.LastJob(models.ENQUEUED_JOB, false)
	assert.Nil(t, err)
}

func TestRegisterRejectsDuplicateHandlers(t *testing.T) {
	ds, err := models.InitializeTestDb()
	assert.Nil(t, err)

	workerPool := NewWorkerAdapter(ds, "UTC")
	handler := func(m map[string]interface{}) error { return nil }

	assert.Nil(t, workerPool.Register("noop", handler))
	assert.ErrorIs(t, workerPool.Register("noop", handler), ErrDuplicateHandler)
}
