package internal

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	recordIDPrefix   = "evt_"
	requestIDPrefix  = "req_"
	recordIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	recordIDLength   = 16
)

// NewRecordID returns a short, URL-safe identity for a stored record.
func NewRecordID() (string, error) {
	id, err := nanoid.Generate(recordIDAlphabet, recordIDLength)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return recordIDPrefix + id, nil
}

// NewRequestID returns an id for requests that arrive without a delivery id.
// It never fails; an empty string is returned if the generator errors.
func NewRequestID() string {
	id, err := nanoid.Generate(recordIDAlphabet, recordIDLength)
	if err != nil {
		return ""
	}
	return requestIDPrefix + id
}
