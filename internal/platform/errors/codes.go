package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Payload errors
	CodePayloadInvalidJSON   Code = "PAYLOAD_INVALID_JSON"
	CodePayloadNotApplicable Code = "PAYLOAD_NOT_APPLICABLE"

	// Purchase errors
	CodePurchaseMissingRecipient Code = "PURCHASE_MISSING_RECIPIENT"
	CodePurchaseUnknownProduct   Code = "PURCHASE_UNKNOWN_PRODUCT"

	// Trigger errors
	CodeTriggerGrantInvalid Code = "TRIGGER_GRANT_INVALID"
	CodeTriggerGrantExpired Code = "TRIGGER_GRANT_EXPIRED"

	// Storage errors
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"

	// Internal errors
	CodeInternal Code = "INTERNAL"
)
