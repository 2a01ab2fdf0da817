package constants

import "errors"

// Errors
var (
	ErrInvalidScope        = errors.New("scope does not satisfy the scope contract")
	ErrModelAlreadyDefined = errors.New("model type already defined")
	ErrModelNotDefined     = errors.New("model type not defined")
	ErrIdentityImmutable   = errors.New("identity of a persisted document cannot be changed")
	ErrDocumentDeleted     = errors.New("document has been deleted")
	ErrNoIdentity          = errors.New("document has no identity")
	ErrNotFound            = errors.New("document not found")
	ErrDuplicateIdentity   = errors.New("a document with this identity already exists")
)

var (
	ErrNoConnection  = errors.New("model type has no storage connection")
	ErrUnknownCast   = errors.New("unknown cast")
	ErrUnknownDriver = errors.New("unknown storage driver")
)
