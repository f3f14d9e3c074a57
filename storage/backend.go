package storage

import (
	"errors"
	"fmt"
)

// Record names. Each is one JSON document in the backend.
const (
	RecordChats    = "chats"
	RecordSettings = "settings"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var ErrRecordNotFound = errors.New("record not found")

// Backend stores named JSON records durably.
type Backend interface {
	// Read returns ErrRecordNotFound when the record was never written.
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
	Close() error
}

// NewBackend opens the backend of the given kind inside dataDir.
func NewBackend(kind, dataDir string) (Backend, error) {
	switch kind {
	case BackendFile, "":
		return NewFileBackend(dataDir)
	case BackendSQLite:
		return NewSQLiteBackend(dataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", kind)
	}
}
