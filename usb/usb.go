package usb

import "fmt"

type RequestType uint8

const (
	RequestGetStatus        RequestType = 0
	RequestClearFeature     RequestType = 1
	RequestSetFeature       RequestType = 3
	RequestSetAddress       RequestType = 5
	RequestGetDescriptor    RequestType = 6
	RequestSetDescriptor    RequestType = 7
	RequestGetConfiguration RequestType = 8
	RequestSetConfiguration RequestType = 9
	RequestGetInterface     RequestType = 10
	RequestSetInterface     RequestType = 11
	RequestSynchFrame       RequestType = 12
)

var standardRequestDescriptions = map[RequestType]string{
	RequestGetStatus:        "RequestGetStatus",
	RequestClearFeature:     "RequestClearFeature",
	RequestSetFeature:       "RequestSetFeature",
	RequestSetAddress:       "RequestSetAddress",
	RequestGetDescriptor:    "RequestGetDescriptor",
	RequestSetDescriptor:    "RequestSetDescriptor",
	RequestGetConfiguration: "RequestGetConfiguration",
	RequestSetConfiguration: "RequestSetConfiguration",
	RequestGetInterface:     "RequestGetInterface",
	RequestSetInterface:     "RequestSetInterface",
	RequestSynchFrame:       "RequestSynchFrame",
}

// Class-specific request codes for Bulk-Only Mass Storage devices
// (USB MSC 1.0, sections 3.1 and 3.2).
const (
	RequestGetMaxLUN        RequestType = 0xFE
	RequestMassStorageReset RequestType = 0xFF
)

var classRequestDescriptions = map[RequestType]string{
	RequestGetMaxLUN:        "RequestGetMaxLUN",
	RequestMassStorageReset: "RequestMassStorageReset",
}

type DescriptorType uint8

const (
	DescriptorTypeDevice                  DescriptorType = 1
	DescriptorTypeConfiguration           DescriptorType = 2
	DescriptorTypeString                  DescriptorType = 3
	DescriptorTypeInterface               DescriptorType = 4
	DescriptorTypeEndpoint                DescriptorType = 5
	DescriptorTypeDeviceQualifier         DescriptorType = 6
	DescriptorTypeOtherSpeedConfiguration DescriptorType = 7
	DescriptorTypeInterfacePower          DescriptorType = 8
)

var descriptorTypeDescriptions = map[DescriptorType]string{
	DescriptorTypeDevice:                  "DescriptorTypeDevice",
	DescriptorTypeConfiguration:           "DescriptorTypeConfiguration",
	DescriptorTypeString:                  "DescriptorTypeString",
	DescriptorTypeInterface:               "DescriptorTypeInterface",
	DescriptorTypeEndpoint:                "DescriptorTypeEndpoint",
	DescriptorTypeDeviceQualifier:         "DescriptorTypeDeviceQualifier",
	DescriptorTypeOtherSpeedConfiguration: "DescriptorTypeOtherSpeedConfiguration",
	DescriptorTypeInterfacePower:          "DescriptorTypeInterfacePower",
}

func (descriptor DescriptorType) String() string {
	if s, ok := descriptorTypeDescriptions[descriptor]; ok {
		return s
	}
	return "Invalid"
}

type Direction uint8

const (
	DirectionHostToDevice Direction = 0
	DirectionDeviceToHost Direction = 1
)

var directionDescriptions = map[Direction]string{
	DirectionHostToDevice: "DirectionHostToDevice",
	DirectionDeviceToHost: "DirectionDeviceToHost",
}

type RequestClass uint8

const (
	RequestClassStandard RequestClass = 0
	RequestClassClass    RequestClass = 1
	RequestClassVendor   RequestClass = 2
	RequestClassReserved RequestClass = 3
)

var requestClassDescriptions = map[RequestClass]string{
	RequestClassStandard: "RequestClassStandard",
	RequestClassClass:    "RequestClassClass",
	RequestClassVendor:   "RequestClassVendor",
	RequestClassReserved: "RequestClassReserved",
}

type RequestRecipient uint8

const (
	RequestRecipientDevice    RequestRecipient = 0
	RequestRecipientInterface RequestRecipient = 1
	RequestRecipientEndpoint  RequestRecipient = 2
	RequestRecipientOther     RequestRecipient = 3
)

var requestRecipientDescriptions = map[RequestRecipient]string{
	RequestRecipientDevice:    "RequestRecipientDevice",
	RequestRecipientInterface: "RequestRecipientInterface",
	RequestRecipientEndpoint:  "RequestRecipientEndpoint",
	RequestRecipientOther:     "RequestRecipientOther",
}

const (
	configAttributeBusPowered = 0b10000000

	interfaceClassMassStorage        = 0x08
	interfaceSubclassSCSITransparent = 0x06
	interfaceProtocolBulkOnly        = 0x50

	endpointAttributeBulk = 0x02

	langIDEngUSA = 0x0409
)

type SetupPacket struct {
	BmRequestType uint8
	BRequest      RequestType
	WValue        uint16
	WIndex        uint16
	WLength       uint16
}

func (setup SetupPacket) String() string {
	var requestDescription string
	var ok bool
	if setup.RequestClass() == RequestClassClass {
		requestDescription, ok = classRequestDescriptions[setup.BRequest]
	} else {
		requestDescription, ok = standardRequestDescriptions[setup.BRequest]
	}
	if !ok {
		requestDescription = fmt.Sprintf("0x%x", uint8(setup.BRequest))
	}
	return fmt.Sprintf("SetupPacket{ Direction: %s, RequestClass: %s, Recipient: %s, BRequest: %s, WValue: 0x%x, WIndex: %d, WLength: %d }",
		directionDescriptions[setup.Direction()],
		requestClassDescriptions[setup.RequestClass()],
		requestRecipientDescriptions[setup.Recipient()],
		requestDescription,
		setup.WValue,
		setup.WIndex,
		setup.WLength)
}

func (setup *SetupPacket) Direction() Direction {
	return Direction((setup.BmRequestType >> 7) & 1)
}

func (setup *SetupPacket) SetDirection(direction Direction) {
	setup.BmRequestType &= ^(uint8(1) << 7)
	setup.BmRequestType |= (uint8(direction) << 7)
}

func (setup *SetupPacket) RequestClass() RequestClass {
	return RequestClass((setup.BmRequestType >> 5) & 0b11)
}

func (setup *SetupPacket) SetRequestClass(class RequestClass) {
	setup.BmRequestType &= ^(uint8(0b11) << 5)
	setup.BmRequestType |= uint8(class) << 5
}

func (setup *SetupPacket) Recipient() RequestRecipient {
	return RequestRecipient(setup.BmRequestType & 0b11111)
}

func (setup *SetupPacket) SetRecipient(recipient RequestRecipient) {
	setup.BmRequestType &= ^uint8(0b11111)
	setup.BmRequestType |= uint8(recipient)
}

type deviceDescriptor struct {
	BLength            uint8
	BDescriptorType    DescriptorType
	BcdUSB             uint16
	BDeviceClass       uint8
	BDeviceSubclass    uint8
	BDeviceProtocol    uint8
	BMaxPacketSize     uint8
	IDVendor           uint16
	IDProduct          uint16
	BcdDevice          uint16
	IManufacturer      uint8
	IProduct           uint8
	ISerialNumber      uint8
	BNumConfigurations uint8
}

type configurationDescriptor struct {
	BLength             uint8
	BDescriptorType     DescriptorType
	WTotalLength        uint16
	BNumInterfaces      uint8
	BConfigurationValue uint8
	IConfiguration      uint8
	BmAttributes        uint8
	BMaxPower           uint8
}

type interfaceDescriptor struct {
	BLength            uint8
	BDescriptorType    DescriptorType
	BInterfaceNumber   uint8
	BAlternateSetting  uint8
	BNumEndpoints      uint8
	BInterfaceClass    uint8
	BInterfaceSubclass uint8
	BInterfaceProtocol uint8
	IInterface         uint8
}

type endpointDescriptor struct {
	BLength          uint8
	BDescriptorType  DescriptorType
	BEndpointAddress uint8
	BmAttributes     uint8
	WMaxPacketSize   uint16
	BInterval        uint8
}

type stringDescriptorHeader struct {
	BLength         uint8
	BDescriptorType DescriptorType
}

// GetDescriptorTypeAndIndex splits the wValue of a GET_DESCRIPTOR request
// into the descriptor type (high byte) and descriptor index (low byte).
func GetDescriptorTypeAndIndex(wValue uint16) (DescriptorType, uint8) {
	descriptorType := DescriptorType(wValue >> 8)
	descriptorIndex := uint8(wValue & 0xFF)
	return descriptorType, descriptorIndex
}
