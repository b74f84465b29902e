package usb

import (
	"testing"

	"github.com/virtualusb/virtual-ums/test"
)

// recordingEngine captures every call the device core makes into the USB
// engine.
type recordingEngine struct {
	sent          [][]byte
	setupEndpoint uint8
	setupPacket   uint16
	configured    int
	txStalls      int
	rxStalls      int
}

func (engine *recordingEngine) SetDataToSend(data []byte) {
	engine.sent = append(engine.sent, data)
}

func (engine *recordingEngine) SetupEndpoint(endpoint uint8, attributes uint8, txAddr uint16, rxAddr uint16, maxPacketSize uint16) {
	engine.setupEndpoint = endpoint
	engine.setupPacket = maxPacketSize
	engine.configured++
}

func (engine *recordingEngine) StallTransmit(endpoint uint8) {
	engine.txStalls++
}

func (engine *recordingEngine) StallReceive(endpoint uint8) {
	engine.rxStalls++
}

func (engine *recordingEngine) lastSent() []byte {
	if len(engine.sent) == 0 {
		return nil
	}
	return engine.sent[len(engine.sent)-1]
}

func newTestDevice(t *testing.T) (*MassStorageDevice, *recordingEngine) {
	engine := &recordingEngine{}
	device, err := NewMassStorageDevice(engine, DefaultDeviceOptions())
	if err != nil {
		t.Fatalf("NewMassStorageDevice: %v", err)
	}
	return device, engine
}

func classSetup(direction Direction, request RequestType) SetupPacket {
	var setup SetupPacket
	setup.SetDirection(direction)
	setup.SetRequestClass(RequestClassClass)
	setup.SetRecipient(RequestRecipientInterface)
	setup.BRequest = request
	return setup
}

func TestGetDeviceDescriptor(t *testing.T) {
	device, engine := newTestDevice(t)
	result := device.OnGetDescriptor(RequestRecipientDevice, DescriptorTypeDevice, 0, 0, 18)
	test.AssertEqual(t, result, Success, "device descriptor request")
	blob := engine.lastSent()
	test.AssertNotNil(t, blob, "no data selected")
	test.AssertEqual(t, len(blob), 18, "full device descriptor")
	test.AssertEqual(t, int(blob[0]), len(blob), "bLength equals blob size")
	test.AssertEqual(t, blob[1], uint8(DescriptorTypeDevice), "descriptor type byte")
}

func TestGetDescriptorTruncation(t *testing.T) {
	device, engine := newTestDevice(t)
	result := device.OnGetDescriptor(RequestRecipientDevice, DescriptorTypeDevice, 0, 0, 8)
	test.AssertEqual(t, result, Success, "truncated device descriptor request")
	short := engine.lastSent()
	test.AssertEqual(t, len(short), 8, "truncated to wLength")

	result = device.OnGetDescriptor(RequestRecipientDevice, DescriptorTypeDevice, 0, 0, 0xFFFF)
	test.AssertEqual(t, result, Success, "oversized wLength request")
	full := engine.lastSent()
	test.AssertEqual(t, len(full), 18, "never more than the blob itself")
	test.AssertBytesEqual(t, short, full[:8], "truncation is a prefix")
}

func TestGetConfigurationDescriptor(t *testing.T) {
	device, engine := newTestDevice(t)
	// Only one configuration exists; any index returns it.
	result := device.OnGetDescriptor(RequestRecipientDevice, DescriptorTypeConfiguration, 0, 0, 0xFF)
	test.AssertEqual(t, result, Success, "configuration request")
	blob := engine.lastSent()
	test.AssertEqual(t, len(blob), 32, "9+9+7+7 bundle")
	totalLength := int(blob[2]) | int(blob[3])<<8
	test.AssertEqual(t, totalLength, 32, "declared wTotalLength")
}

func TestGetStringDescriptors(t *testing.T) {
	device, engine := newTestDevice(t)
	for index := uint8(0); index < 4; index++ {
		result := device.OnGetDescriptor(RequestRecipientDevice, DescriptorTypeString, index, 0, 0xFF)
		test.AssertEqual(t, result, Success, "string descriptor request")
		blob := engine.lastSent()
		test.AssertEqual(t, int(blob[0]), len(blob), "string bLength")
		test.AssertEqual(t, blob[1], uint8(DescriptorTypeString), "string type byte")
	}
	sends := len(engine.sent)
	result := device.OnGetDescriptor(RequestRecipientDevice, DescriptorTypeString, 4, 0, 0xFF)
	test.AssertEqual(t, result, Unsupported, "out of range string index")
	test.AssertEqual(t, len(engine.sent), sends, "no data selected on miss")
}

func TestGetDescriptorMisses(t *testing.T) {
	device, engine := newTestDevice(t)
	result := device.OnGetDescriptor(RequestRecipientDevice, DescriptorTypeDeviceQualifier, 0, 0, 10)
	test.AssertEqual(t, result, Unsupported, "unknown descriptor type")

	result = device.OnGetDescriptor(RequestRecipientInterface, DescriptorTypeDevice, 0, 0, 18)
	test.AssertEqual(t, result, Unsupported, "interface recipient has no descriptors")

	result = device.OnGetDescriptor(RequestRecipientDevice, DescriptorTypeDevice, 0, 1, 18)
	test.AssertEqual(t, result, Unsupported, "nonzero language index")

	test.AssertEqual(t, len(engine.sent), 0, "no data selected on any miss")
}

func TestGetMaxLUN(t *testing.T) {
	device, engine := newTestDevice(t)
	result := device.OnSetupRequest(classSetup(DirectionDeviceToHost, RequestGetMaxLUN))
	test.AssertEqual(t, result, Success, "Get Max LUN")
	test.AssertBytesEqual(t, engine.lastSent(), []byte{0, 0, 0, 0}, "one ready byte per logical unit")
}

func TestMassStorageReset(t *testing.T) {
	device, engine := newTestDevice(t)
	result := device.OnSetupRequest(classSetup(DirectionHostToDevice, RequestMassStorageReset))
	test.AssertEqual(t, result, Success, "Mass Storage Reset")
	test.AssertEqual(t, len(engine.sent), 0, "reset has no data stage")
}

func TestUnknownClassRequests(t *testing.T) {
	device, engine := newTestDevice(t)
	result := device.OnSetupRequest(classSetup(DirectionDeviceToHost, 0xFD))
	test.AssertEqual(t, result, Unsupported, "unknown device-to-host class request")
	result = device.OnSetupRequest(classSetup(DirectionHostToDevice, 0xFD))
	test.AssertEqual(t, result, Unsupported, "unknown host-to-device class request")
	// Direction matters: each code is only valid one way.
	result = device.OnSetupRequest(classSetup(DirectionHostToDevice, RequestGetMaxLUN))
	test.AssertEqual(t, result, Unsupported, "Get Max LUN is device-to-host only")
	result = device.OnSetupRequest(classSetup(DirectionDeviceToHost, RequestMassStorageReset))
	test.AssertEqual(t, result, Unsupported, "reset is host-to-device only")
	test.AssertEqual(t, len(engine.sent), 0, "no data selected")
}

func TestEndpointInterfaceChange(t *testing.T) {
	device, engine := newTestDevice(t)
	test.AssertEqual(t, device.EndpointState(), EndpointStalled, "endpoint starts stalled")

	device.OnEndpointInterfaceChange(false)
	test.AssertEqual(t, device.EndpointState(), EndpointActive, "endpoint active after interface up")
	test.AssertEqual(t, engine.configured, 1, "endpoint programmed once")
	test.AssertEqual(t, engine.setupEndpoint, uint8(BulkEndpoint), "bulk endpoint number")
	test.AssertEqual(t, engine.setupPacket, uint16(BulkPacketSize), "bulk packet size")

	device.OnEndpointInterfaceChange(true)
	test.AssertEqual(t, device.EndpointState(), EndpointStalled, "endpoint stalled after teardown")
	test.AssertEqual(t, engine.txStalls, 1, "transmit direction stalled")
	test.AssertEqual(t, engine.rxStalls, 1, "receive direction stalled")
}

func TestGetDescriptorIdempotent(t *testing.T) {
	device, engine := newTestDevice(t)
	device.OnGetDescriptor(RequestRecipientDevice, DescriptorTypeConfiguration, 0, 0, 32)
	device.OnGetDescriptor(RequestRecipientDevice, DescriptorTypeConfiguration, 0, 0, 32)
	test.AssertEqual(t, len(engine.sent), 2, "two responses")
	test.AssertBytesEqual(t, engine.sent[0], engine.sent[1], "identical requests yield identical bytes")
}
