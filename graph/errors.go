package graph

import (
	"context"
	"errors"
	"net/http"

	"bitbucket.org/greenops/fieldops_backend/config"
	"bitbucket.org/greenops/fieldops_backend/models"
	"bitbucket.org/greenops/fieldops_backend/utils"
	"bitbucket.org/greenops/fieldops_backend/workflow"
	"github.com/99designs/gqlgen/graphql"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

const (
	codeNotFound         = "NOT_FOUND"
	codeBadUserInput     = "BAD_USER_INPUT"
	codeValidationFailed = "VALIDATION_FAILED"
	codeRecordLocked     = "RECORD_LOCKED"
	codeConflict         = "CONFLICT"
	codeSaveFailed       = "SAVE_FAILED"
	codeInternal         = "INTERNAL"
)

// ErrorStatus classifies a domain error with the HTTP status the REST
// endpoints answer and the code GraphQL errors carry.
func ErrorStatus(err error) (int, string) {
	var (
		invalid      models.ValidationErrors
		locked       *models.LockedRecordsError
		saveErr      *models.SaveError
		parseErr     *models.DateParseError
		fieldErrs    validator.ValidationErrors
		invalidInput *validator.InvalidValidationError
	)
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound), errors.Is(err, workflow.ErrSessionNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.As(err, &locked):
		return http.StatusConflict, codeRecordLocked
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, codeValidationFailed
	case errors.As(err, &fieldErrs),
		errors.As(err, &parseErr),
		errors.As(err, &invalidInput),
		errors.Is(err, models.ErrInvalidDateRange),
		errors.Is(err, models.ErrUnknownSortKey),
		errors.Is(err, models.ErrUnknownField),
		errors.Is(err, models.ErrNothingToUpdate),
		errors.Is(err, utils.ErrorSiteRequired):
		return http.StatusBadRequest, codeBadUserInput
	case errors.Is(err, models.ErrRecordLocked):
		return http.StatusConflict, codeRecordLocked
	case errors.Is(err, models.ErrNotEditing),
		errors.Is(err, models.ErrAlreadyEditing),
		errors.Is(err, workflow.ErrSiteBusy),
		errors.Is(err, config.ErrForeignClient):
		return http.StatusConflict, codeConflict
	case errors.As(err, &saveErr):
		return http.StatusInternalServerError, codeSaveFailed
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// ErrorDetails returns the per-cell or per-field payload of err, if any.
func ErrorDetails(err error) (string, interface{}) {
	var (
		invalid   models.ValidationErrors
		locked    *models.LockedRecordsError
		saveErr   *models.SaveError
		fieldErrs validator.ValidationErrors
	)
	switch {
	case errors.As(err, &locked):
		return "recordIds", locked.RecordIDs
	case errors.As(err, &invalid):
		return "cells", invalid
	case errors.As(err, &fieldErrs):
		return "fields", utils.ProcessValidationErrors(fieldErrs)
	case errors.As(err, &saveErr):
		return "cells", saveErr.Cells
	}
	return "", nil
}

// ErrorPresenter adds the error code, the HTTP-equivalent status and any
// cell details to resolver errors. Internal errors are logged and masked.
func ErrorPresenter(ctx context.Context, err error) *gqlerror.Error {
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		return graphql.DefaultErrorPresenter(ctx, err)
	}
	presented := graphql.DefaultErrorPresenter(ctx, err)
	status, code := ErrorStatus(err)
	presented.Extensions = map[string]interface{}{"code": code, "status": status}
	if key, details := ErrorDetails(err); key != "" {
		presented.Extensions[key] = details
	}
	if status >= http.StatusInternalServerError {
		config.GetLogger().WithFields(logrus.Fields{
			"field": "graphql",
			"path":  presented.Path.String(),
		}).Error(err.Error())
		if code == codeInternal {
			presented.Message = "internal error"
		}
	}
	return presented
}
