package midi

import "errors"

var (
	ErrInvalidStatus      = errors.New("midi: undefined status byte")
	ErrDuplicateStatus    = errors.New("midi: status byte while message pending")
	ErrUnexpectedDataByte = errors.New("midi: data byte outside any message")
	ErrUnknownStatus      = errors.New("midi: unclassifiable status byte")
)
