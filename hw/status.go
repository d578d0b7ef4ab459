package hw

import (
	"fmt"
)

// Status is the result code reported by every driver call.
type Status uint32

const (
	StatusSuccess Status = iota
	StatusENOMEM
	StatusENOSPC
	StatusEINVAL
	StatusENOSYS
	StatusENOENT
	StatusENXIO
	StatusEIO
	StatusESPIPE
	StatusECORRUPT
	StatusENOTREADY
	StatusECONFIG
	StatusEISCONN
	StatusENOTCONN
	StatusEAGAIN
	StatusEFAULT
)

var statusText = map[Status]string{
	StatusSuccess:   "Success",
	StatusENOMEM:    "Out of memory",
	StatusENOSPC:    "Out of resources",
	StatusEINVAL:    "Argument is invalid",
	StatusENOSYS:    "Function not implemented",
	StatusENOENT:    "No such file or directory",
	StatusENXIO:     "No such device or address",
	StatusEIO:       "I/O error",
	StatusESPIPE:    "Illegal seek",
	StatusECORRUPT:  "Data is corrupt",
	StatusENOTREADY: "Component is not ready",
	StatusECONFIG:   "Component is not configured",
	StatusEISCONN:   "Port is already connected",
	StatusENOTCONN:  "Port is disconnected",
	StatusEAGAIN:    "Resource temporarily unavailable. Try again later",
	StatusEFAULT:    "Bad address",
}

// OK reports whether the call succeeded.
func (s Status) OK() bool {
	return s == StatusSuccess
}

func (s Status) String() string {
	if t, ok := statusText[s]; ok {
		return t
	}
	return "UNKNOWN"
}

// Error makes a non-success Status usable as an error value.
func (s Status) Error() string {
	return fmt.Sprintf("%s (status %d)", s.String(), uint32(s))
}

// Err returns nil for StatusSuccess and the status itself otherwise.
func (s Status) Err() error {
	if s.OK() {
		return nil
	}
	return s
}
