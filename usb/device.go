package usb

import (
	"github.com/virtualusb/virtual-ums/util"
)

var usbLogger = util.NewLogger("[USB] ", util.LogLevelTrace)

// Result is the only outcome a control request can have. Unsupported is
// surfaced to the USB engine, which stalls the control endpoint; there is
// no retry or error category beyond that.
type Result uint8

const (
	Success Result = iota
	Unsupported
)

func (result Result) String() string {
	if result == Success {
		return "Success"
	}
	return "Unsupported"
}

// Engine is the physical-layer USB engine the device core drives: it
// transmits response data for the in-flight control transfer, programs the
// bulk endpoint and stalls individual endpoint directions.
type Engine interface {
	SetDataToSend(data []byte)
	SetupEndpoint(endpoint uint8, attributes uint8, txAddr uint16, rxAddr uint16, maxPacketSize uint16)
	StallTransmit(endpoint uint8)
	StallReceive(endpoint uint8)
}

// EndpointState is the two-state machine for the bulk endpoint pair. The
// two directions are never configured independently, so a single enum
// rules out any half-stalled combination.
type EndpointState uint8

const (
	EndpointStalled EndpointState = iota
	EndpointActive
)

// Bulk endpoint layout: one logical endpoint number with an IN and an OUT
// address, 64-byte packets, with the transmit and receive packet buffers at
// fixed offsets in the engine's FIFO memory.
const (
	BulkEndpoint   = 6
	BulkInAddress  = 0x86
	BulkOutAddress = 0x06
	BulkPacketSize = 64

	bulkTxBufferAddress = 0x180
	bulkRxBufferAddress = 0x1c0
)

// lunTable reports one ready flag per logical unit on Get Max LUN.
var lunTable = []byte{0, 0, 0, 0}

// MassStorageDevice answers the standard and class-specific control
// requests of a single-function Bulk-Only Mass Storage device. Each control
// transfer is decided independently; the only state retained across
// transfers is the bulk endpoint configuration.
type MassStorageDevice struct {
	catalog       *Catalog
	engine        Engine
	endpointState EndpointState
}

func NewMassStorageDevice(engine Engine, options DeviceOptions) (*MassStorageDevice, error) {
	catalog, err := NewCatalog(options)
	if err != nil {
		return nil, err
	}
	return &MassStorageDevice{
		catalog:       catalog,
		engine:        engine,
		endpointState: EndpointStalled,
	}, nil
}

func (device *MassStorageDevice) Catalog() *Catalog {
	return device.catalog
}

// OnGetDescriptor serves a standard GET_DESCRIPTOR request. Only the
// device recipient with a zero language index can match the catalog; the
// response is truncated to the lesser of the requested length and the
// blob's own size, per the control-transfer truncation rule.
func (device *MassStorageDevice) OnGetDescriptor(recipient RequestRecipient, descriptorType DescriptorType, descriptorIndex uint8, langIndex uint16, length uint16) Result {
	if recipient != RequestRecipientDevice || langIndex != 0 {
		return Unsupported
	}
	blob, ok := device.catalog.Lookup(descriptorType, descriptorIndex)
	if !ok {
		usbLogger.Printf("GET DESCRIPTOR: no entry for Type: %s Index: %d\n\n", descriptorType, descriptorIndex)
		return Unsupported
	}
	usbLogger.Printf("GET DESCRIPTOR: Type: %s Index: %d Length: %d\n\n", descriptorType, descriptorIndex, length)
	device.engine.SetDataToSend(trim(blob, length))
	return Success
}

// OnSetupRequest serves the Mass Storage class requests. The recipient
// field is logged but not matched; class requests are decided on direction
// and request code alone.
func (device *MassStorageDevice) OnSetupRequest(setup SetupPacket) Result {
	usbLogger.Printf("CLASS REQUEST: %s\n\n", setup)
	if setup.Direction() == DirectionDeviceToHost {
		if setup.BRequest == RequestGetMaxLUN {
			device.engine.SetDataToSend(lunTable)
			return Success
		}
	} else if setup.BRequest == RequestMassStorageReset {
		// No data stage; the bulk transport is told to abandon any
		// in-flight transaction by the caller.
		return Success
	}
	return Unsupported
}

// OnEndpointInterfaceChange programs the bulk endpoint pair when the
// interface comes up and stalls both directions when it is torn down.
// Stalling both directions quiesces the endpoint instead of leaving it
// partially configured.
func (device *MassStorageDevice) OnEndpointInterfaceChange(stop bool) {
	if !stop {
		device.engine.SetupEndpoint(BulkEndpoint, endpointAttributeBulk, bulkTxBufferAddress, bulkRxBufferAddress, BulkPacketSize)
		device.endpointState = EndpointActive
	} else {
		device.engine.StallTransmit(BulkEndpoint)
		device.engine.StallReceive(BulkEndpoint)
		device.endpointState = EndpointStalled
	}
}

func (device *MassStorageDevice) EndpointState() EndpointState {
	return device.endpointState
}

func trim(buf []byte, wLength uint16) []byte {
	if int(wLength) < len(buf) {
		buf = buf[:wLength]
	}
	return buf
}
