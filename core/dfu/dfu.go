// Package dfu implements the USB Device Firmware Upgrade class protocol:
// the device-reported state machine, the request set, and a client that
// sequences downloads and uploads over control transfers.
package dfu

import (
	"encoding/binary"

	"github.com/pixfid/bootforge/usb"
)

// DFU class requests.
const (
	reqDetach    uint8 = 0
	reqDnload    uint8 = 1
	reqUpload    uint8 = 2
	reqGetStatus uint8 = 3
	reqClrStatus uint8 = 4
	reqGetState  uint8 = 5
	reqAbort     uint8 = 6
)

// DFU interface identification codes.
const (
	InterfaceClass    uint8 = 0xfe
	InterfaceSubClass uint8 = 0x01
	ProtocolRuntime   uint8 = 0x01
	ProtocolDFU       uint8 = 0x02
)

// State is the device-reported DFU state byte.
type State uint8

const (
	AppIdle State = iota
	AppDetach
	Idle
	DnloadSync
	DnBusy
	DnloadIdle
	ManifestSync
	Manifest
	ManifestWaitReset
	UploadIdle
	Error
)

// StateFromByte decodes a state byte; anything unrecognized is Error.
func StateFromByte(b byte) State {
	if b > byte(UploadIdle) {
		return Error
	}
	return State(b)
}

func (s State) String() string {
	switch s {
	case AppIdle:
		return "appIDLE"
	case AppDetach:
		return "appDETACH"
	case Idle:
		return "dfuIDLE"
	case DnloadSync:
		return "dfuDNLOAD-SYNC"
	case DnBusy:
		return "dfuDNBUSY"
	case DnloadIdle:
		return "dfuDNLOAD-IDLE"
	case ManifestSync:
		return "dfuMANIFEST-SYNC"
	case Manifest:
		return "dfuMANIFEST"
	case ManifestWaitReset:
		return "dfuMANIFEST-WAIT-RESET"
	case UploadIdle:
		return "dfuUPLOAD-IDLE"
	}
	return "dfuERROR"
}

// IsDFUMode reports whether the device is running its DFU mode rather than
// the normal application.
func (s State) IsDFUMode() bool {
	return s != AppIdle && s != AppDetach
}

// Status is the device-reported status code; StatusOK is the only non-error
// value.
type Status uint8

const (
	StatusOK Status = iota
	ErrTarget
	ErrFile
	ErrWrite
	ErrErase
	ErrCheckErased
	ErrProg
	ErrVerify
	ErrAddress
	ErrNotDone
	ErrFirmware
	ErrVendor
	ErrUSBR
	ErrPOR
	ErrUnknown
	ErrStalledPkt
)

// StatusFromByte decodes a status byte; anything past the defined range is
// ErrStalledPkt, matching the decode of the final table entry.
func StatusFromByte(b byte) Status {
	if b > byte(ErrStalledPkt) {
		return ErrStalledPkt
	}
	return Status(b)
}

var statusNames = [...]string{
	"OK", "errTARGET", "errFILE", "errWRITE", "errERASE", "errCHECK_ERASED",
	"errPROG", "errVERIFY", "errADDRESS", "errNOTDONE", "errFIRMWARE",
	"errVENDOR", "errUSBR", "errPOR", "errUNKNOWN", "errSTALLEDPKT",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "errSTALLEDPKT"
}

func (s Status) IsOK() bool { return s == StatusOK }

// StatusResponse is the 6-byte GETSTATUS payload.
type StatusResponse struct {
	Status        Status
	PollTimeoutMs uint32
	State         State
	StringIndex   uint8
}

// ParseStatusResponse decodes a GETSTATUS payload: status byte, 24-bit
// little-endian poll timeout, state byte, string index.
func ParseStatusResponse(data []byte) (StatusResponse, error) {
	if len(data) < 6 {
		return StatusResponse{}, usb.New(usb.KindParse, "status response too short")
	}
	return StatusResponse{
		Status:        StatusFromByte(data[0]),
		PollTimeoutMs: uint32(data[1]) | uint32(data[2])<<8 | uint32(data[3])<<16,
		State:         StateFromByte(data[4]),
		StringIndex:   data[5],
	}, nil
}

// FunctionalDescriptor is the 9-byte DFU functional descriptor. Bytes 0-1
// are the generic length/type header and are ignored.
type FunctionalDescriptor struct {
	WillDetach            bool
	ManifestationTolerant bool
	CanUpload             bool
	CanDownload           bool
	DetachTimeout         uint16
	TransferSize          uint16
	DFUVersion            uint16
}

func ParseFunctionalDescriptor(data []byte) (FunctionalDescriptor, error) {
	if len(data) < 9 {
		return FunctionalDescriptor{}, usb.New(usb.KindParse, "functional descriptor too short")
	}

	attributes := data[2]
	return FunctionalDescriptor{
		WillDetach:            attributes&0x08 != 0,
		ManifestationTolerant: attributes&0x04 != 0,
		CanUpload:             attributes&0x02 != 0,
		CanDownload:           attributes&0x01 != 0,
		DetachTimeout:         binary.LittleEndian.Uint16(data[3:5]),
		TransferSize:          binary.LittleEndian.Uint16(data[5:7]),
		DFUVersion:            binary.LittleEndian.Uint16(data[7:9]),
	}, nil
}

// stepKind is the decision of a wait-loop transition. The transition
// functions are pure so the loop logic is testable without a device.
type stepKind int8

const (
	stepPoll stepKind = iota
	stepDone
	stepFail
)

// downloadStep drives the per-block wait-for-ready loop: keep polling while
// the device is synchronizing or busy, done once writable again, fail on the
// error state or anything unexpected.
func downloadStep(s State) stepKind {
	switch s {
	case DnloadSync, DnBusy, ManifestSync:
		return stepPoll
	case DnloadIdle, Idle, Manifest:
		return stepDone
	default:
		return stepFail
	}
}

// manifestStep drives the post-download manifestation wait. There is no fail
// outcome here; states outside the graph get a fixed short settle sleep
// before re-polling.
func manifestStep(s State) (kind stepKind, settle bool) {
	switch s {
	case Manifest, ManifestSync:
		return stepPoll, false
	case ManifestWaitReset, Idle:
		return stepDone, false
	default:
		return stepPoll, true
	}
}
