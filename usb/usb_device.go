package usb

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/virtualusb/virtual-ums/usbip"
	"github.com/virtualusb/virtual-ums/util"
)

// USBDevice adapts the mass storage core to the USBIP transport. It plays
// the role of the USB engine: it decodes setup packets, routes them into
// the core dispatcher, collects the data the core selects for transmission
// and reports stalls back to the transport.
type USBDevice struct {
	core      *MassStorageDevice
	transport BulkTransport
	options   DeviceOptions

	// engine state, mutated only from the control dispatch path
	dataToSend         []byte
	configurationValue uint8
	txStalled          bool
	rxStalled          bool

	outputLock sync.Locker
}

func NewUSBDevice(transport BulkTransport, options DeviceOptions) (*USBDevice, error) {
	device := &USBDevice{
		transport:  transport,
		options:    options,
		txStalled:  true,
		rxStalled:  true,
		outputLock: &sync.Mutex{},
	}
	core, err := NewMassStorageDevice(device, options)
	if err != nil {
		return nil, err
	}
	device.core = core
	return device, nil
}

func (device *USBDevice) Core() *MassStorageDevice {
	return device.core
}

func (device *USBDevice) BusID() string {
	return "2-2"
}

func (device *USBDevice) DeviceSummary() usbip.DeviceSummary {
	summary := usbip.DeviceSummary{
		Header: usbip.DeviceSummaryHeader{
			Busnum:              2,
			Devnum:              2,
			Speed:               2,
			IDVendor:            device.options.VendorID,
			IDProduct:           device.options.ProductID,
			BcdDevice:           device.options.DeviceVersion,
			BDeviceClass:        0,
			BDeviceSubclass:     0,
			BDeviceProtocol:     0,
			BConfigurationValue: device.configurationValue,
			BNumConfigurations:  1,
			BNumInterfaces:      1,
		},
		DeviceInterface: usbip.DeviceInterface{
			BInterfaceClass:    interfaceClassMassStorage,
			BInterfaceSubclass: interfaceSubclassSCSITransparent,
			BInterfaceProtocol: interfaceProtocolBulkOnly,
		},
	}
	copy(summary.Header.Path[:], []byte("/device/0"))
	copy(summary.Header.BusID[:], []byte("2-2"))
	return summary
}

func (device *USBDevice) RemoveWaitingRequest(id uint32) bool {
	return device.transport.RemoveWaitingRequest(id)
}

// Engine interface. SetDataToSend only records the reference; the data
// stage is written out by the transport when the dispatch returns.

func (device *USBDevice) SetDataToSend(data []byte) {
	device.dataToSend = data
}

func (device *USBDevice) SetupEndpoint(endpoint uint8, attributes uint8, txAddr uint16, rxAddr uint16, maxPacketSize uint16) {
	usbLogger.Printf("SETUP ENDPOINT %d: attributes %d tx 0x%x rx 0x%x packet size %d\n\n", endpoint, attributes, txAddr, rxAddr, maxPacketSize)
	device.txStalled = false
	device.rxStalled = false
}

func (device *USBDevice) StallTransmit(endpoint uint8) {
	device.txStalled = true
}

func (device *USBDevice) StallReceive(endpoint uint8) {
	device.rxStalled = true
}

func (device *USBDevice) takeDataToSend() []byte {
	data := device.dataToSend
	device.dataToSend = nil
	return data
}

// HandleMessage dispatches one USBIP transfer. Control transfers resolve
// synchronously; bulk IN transfers wait on the transport for response data.
func (device *USBDevice) HandleMessage(id uint32, onFinish func(status int32, response []byte), endpoint uint32, in bool, setupBytes [8]byte, transferBuffer []byte) {
	usbLogger.Printf("USB MESSAGE - ENDPOINT %d\n\n", endpoint)
	if endpoint == 0 {
		setup := util.ReadLE[SetupPacket](bytes.NewBuffer(setupBytes[:]))
		status, response := device.handleControlMessage(setup, transferBuffer)
		onFinish(status, response)
	} else if endpoint == BulkEndpoint {
		device.handleBulkMessage(id, onFinish, in, transferBuffer)
	} else {
		util.Panic(fmt.Sprintf("Invalid USB endpoint: %d", endpoint))
	}
}

func (device *USBDevice) handleControlMessage(setup SetupPacket, transferBuffer []byte) (int32, []byte) {
	usbLogger.Printf("CONTROL MESSAGE: %s\n\n", setup)
	switch setup.RequestClass() {
	case RequestClassStandard:
		return device.handleStandardRequest(setup, transferBuffer)
	case RequestClassClass:
		result := device.core.OnSetupRequest(setup)
		if result != Success {
			return usbip.StatusStalled, nil
		}
		if setup.BRequest == RequestMassStorageReset {
			device.transport.Reset()
		}
		return 0, device.takeDataToSend()
	default:
		usbLogger.Printf("UNSUPPORTED REQUEST CLASS: %s\n\n", setup)
		return usbip.StatusStalled, nil
	}
}

func (device *USBDevice) handleStandardRequest(setup SetupPacket, transferBuffer []byte) (int32, []byte) {
	switch setup.BRequest {
	case RequestGetDescriptor:
		descriptorType, descriptorIndex := GetDescriptorTypeAndIndex(setup.WValue)
		result := device.core.OnGetDescriptor(setup.Recipient(), descriptorType, descriptorIndex, setup.WIndex, setup.WLength)
		if result != Success {
			return usbip.StatusStalled, nil
		}
		return 0, device.takeDataToSend()
	case RequestSetConfiguration:
		value := uint8(setup.WValue)
		if value != 0 && value != configurationValue {
			return usbip.StatusStalled, nil
		}
		device.configurationValue = value
		device.core.OnEndpointInterfaceChange(value == 0)
		return 0, nil
	case RequestSetInterface:
		// A single interface with a single alternate setting; anything
		// else tears the endpoint down.
		stop := setup.WValue != 0 || setup.WIndex != 0
		device.core.OnEndpointInterfaceChange(stop)
		if stop {
			return usbip.StatusStalled, nil
		}
		return 0, nil
	case RequestGetConfiguration:
		return 0, []byte{device.configurationValue}
	case RequestGetInterface:
		return 0, []byte{0}
	case RequestGetStatus:
		// Bus powered, no remote wakeup.
		return 0, []byte{0, 0}
	default:
		usbLogger.Printf("UNSUPPORTED STANDARD REQUEST: %s\n\n", setup)
		return usbip.StatusStalled, nil
	}
}

func (device *USBDevice) handleBulkMessage(id uint32, onFinish func(status int32, response []byte), in bool, transferBuffer []byte) {
	if in {
		if device.txStalled {
			onFinish(usbip.StatusStalled, nil)
			return
		}
		go device.handleBulkIn(id, onFinish)
	} else {
		if device.rxStalled {
			onFinish(usbip.StatusStalled, nil)
			return
		}
		device.transport.HandleCommand(transferBuffer)
		onFinish(0, nil)
	}
}

func (device *USBDevice) handleBulkIn(id uint32, onFinish func(status int32, response []byte)) {
	// Responses must come back in command order, one at a time.
	device.outputLock.Lock()
	response := device.transport.GetResponse(id, 1000)
	if response != nil {
		onFinish(0, response)
	}
	device.outputLock.Unlock()
}
