package handler

const (
	errInvalidEvents  = "Request body must be an array of Event Grid events"
	errIngestFailed   = "One or more events could not be applied"
	errPassAborted    = "Pass aborted"
)
