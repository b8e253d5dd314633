package models

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/greenops/fieldops_backend/config"
	"github.com/sirupsen/logrus"
)

// Sink persists a batch of pending edits.
type Sink interface {
	SaveEdits(ctx context.Context, edits PendingEdits) error
}

type SinkFunc func(ctx context.Context, edits PendingEdits) error

func (f SinkFunc) SaveEdits(ctx context.Context, edits PendingEdits) error {
	return f(ctx, edits)
}

// SaveError reports a sink failure. The edits listed in Cells are still staged.
type SaveError struct {
	Err   error
	Cells []CellKey
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("saving %d edited cells failed: %v", len(e.Cells), e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

func newSaveError(err error, edits PendingEdits) error {
	var saveErr *SaveError
	if errors.As(err, &saveErr) {
		return err
	}
	return &SaveError{Err: err, Cells: edits.Keys()}
}

// LogSink only logs the edits it receives.
type LogSink struct {
	Logger *logrus.Logger
}

func (s LogSink) SaveEdits(ctx context.Context, edits PendingEdits) error {
	logger := s.Logger
	if logger == nil {
		logger = config.GetLogger()
	}
	for _, k := range edits.Keys() {
		logger.WithFields(logrus.Fields{
			"record_id": k.RecordID,
			"field_id":  k.FieldID,
			"value":     edits[k].String(),
		}).Info("edit saved")
	}
	return nil
}
