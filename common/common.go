package common

// Service is a listener started from one config entry.
type Service interface {
	Start() error
	Addr() string
	Close() error
}
