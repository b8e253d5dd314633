package utils

import "errors"

var (
	ErrorRecordNotFound = errors.New("record not found")
	ErrorClientRequired = errors.New("client id is required")
	ErrorSiteRequired   = errors.New("site id is required")
)
