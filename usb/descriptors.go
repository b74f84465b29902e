package usb

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/virtualusb/virtual-ums/util"
)

const (
	// Total length of the configuration bundle: configuration (9) +
	// interface (9) + two bulk endpoints (7 each).
	configTotalLength = 9 + 9 + 7 + 7

	configurationValue = 1

	serialNumberLength = 8
)

// DeviceOptions carries the identity fields that the original firmware
// injects at build time: the vendor/product IDs, the device release number
// and the descriptor strings.
type DeviceOptions struct {
	VendorID      uint16
	ProductID     uint16
	DeviceVersion uint16
	Manufacturer  string
	Product       string
	SerialNumber  string
}

// DefaultDeviceOptions uses the pid.codes test allocation, suitable for
// local development only.
func DefaultDeviceOptions() DeviceOptions {
	return DeviceOptions{
		VendorID:      0x1209,
		ProductID:     0x0001,
		DeviceVersion: 0x0100,
		Manufacturer:  "Virtual UMS Project",
		Product:       "Virtual Mass Storage",
		SerialNumber:  "VUMS-0.1",
	}
}

// Catalog holds the complete set of descriptor blobs the device can return.
// All blobs are built once at construction and never mutated; lookups hand
// out references into this static data.
type Catalog struct {
	device  []byte
	config  []byte
	strings [][]byte
}

func NewCatalog(options DeviceOptions) (*Catalog, error) {
	catalog := &Catalog{
		device:  buildDeviceDescriptor(options),
		config:  buildConfigurationDescriptor(),
		strings: buildStringDescriptors(options),
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}

// Lookup returns the blob for a (descriptor type, descriptor index) pair,
// or false when the pair matches nothing. There are no defaults: a miss is
// a miss.
func (catalog *Catalog) Lookup(descriptorType DescriptorType, index uint8) ([]byte, bool) {
	switch descriptorType {
	case DescriptorTypeDevice:
		return catalog.device, true
	case DescriptorTypeConfiguration:
		// Only one configuration exists, so the index is ignored.
		return catalog.config, true
	case DescriptorTypeString:
		if int(index) < len(catalog.strings) {
			return catalog.strings[index], true
		}
		return nil, false
	default:
		return nil, false
	}
}

// StringCount returns the number of string table slots, language-ID blob
// included.
func (catalog *Catalog) StringCount() int {
	return len(catalog.strings)
}

// Validate checks the structural invariants of every blob: byte 0 must be
// the blob's own length, byte 1 its descriptor type, and the configuration
// bundle's wTotalLength must match both the fixed layout and the actual
// byte count. A failure here is a construction defect, not a runtime
// condition.
func (catalog *Catalog) Validate() error {
	var errs *multierror.Error
	checkHeader := func(name string, blob []byte, length int, descriptorType DescriptorType) {
		if len(blob) < 2 {
			errs = multierror.Append(errs, fmt.Errorf("%s: blob too short (%d bytes)", name, len(blob)))
			return
		}
		if int(blob[0]) != length {
			errs = multierror.Append(errs, fmt.Errorf("%s: bLength %d, want %d", name, blob[0], length))
		}
		if DescriptorType(blob[1]) != descriptorType {
			errs = multierror.Append(errs, fmt.Errorf("%s: bDescriptorType %d, want %d", name, blob[1], descriptorType))
		}
	}
	checkHeader("device", catalog.device, len(catalog.device), DescriptorTypeDevice)
	if len(catalog.device) != 18 {
		errs = multierror.Append(errs, fmt.Errorf("device: descriptor is %d bytes, want 18", len(catalog.device)))
	}
	// The configuration blob is a bundle: its bLength covers only the
	// configuration descriptor itself, while wTotalLength covers the
	// nested interface and endpoint descriptors too.
	checkHeader("configuration", catalog.config, 9, DescriptorTypeConfiguration)
	if len(catalog.config) >= 4 {
		totalLength := uint16(catalog.config[2]) | uint16(catalog.config[3])<<8
		if int(totalLength) != len(catalog.config) {
			errs = multierror.Append(errs, fmt.Errorf("configuration: wTotalLength %d != bundle size %d", totalLength, len(catalog.config)))
		}
		if totalLength != configTotalLength {
			errs = multierror.Append(errs, fmt.Errorf("configuration: wTotalLength %d, want %d", totalLength, configTotalLength))
		}
	}
	for i, blob := range catalog.strings {
		checkHeader(fmt.Sprintf("string %d", i), blob, len(blob), DescriptorTypeString)
	}
	if len(catalog.strings) < 4 {
		errs = multierror.Append(errs, fmt.Errorf("string table has %d slots, want at least 4", len(catalog.strings)))
	}
	return errs.ErrorOrNil()
}

func buildDeviceDescriptor(options DeviceOptions) []byte {
	descriptor := deviceDescriptor{
		BLength:            util.SizeOf[deviceDescriptor](),
		BDescriptorType:    DescriptorTypeDevice,
		BcdUSB:             0x0110,
		BDeviceClass:       0, // deferred to the interface descriptor
		BDeviceSubclass:    0,
		BDeviceProtocol:    0,
		BMaxPacketSize:     64,
		IDVendor:           options.VendorID,
		IDProduct:          options.ProductID,
		BcdDevice:          options.DeviceVersion,
		IManufacturer:      1,
		IProduct:           2,
		ISerialNumber:      3,
		BNumConfigurations: 1,
	}
	return util.ToLE(descriptor)
}

func buildConfigurationDescriptor() []byte {
	config := configurationDescriptor{
		BLength:             util.SizeOf[configurationDescriptor](),
		BDescriptorType:     DescriptorTypeConfiguration,
		WTotalLength:        configTotalLength,
		BNumInterfaces:      1,
		BConfigurationValue: configurationValue,
		IConfiguration:      0,
		BmAttributes:        configAttributeBusPowered,
		BMaxPower:           50, // 100 mA
	}
	massStorage := interfaceDescriptor{
		BLength:            util.SizeOf[interfaceDescriptor](),
		BDescriptorType:    DescriptorTypeInterface,
		BInterfaceNumber:   0,
		BAlternateSetting:  0,
		BNumEndpoints:      2,
		BInterfaceClass:    interfaceClassMassStorage,
		BInterfaceSubclass: interfaceSubclassSCSITransparent,
		BInterfaceProtocol: interfaceProtocolBulkOnly,
		IInterface:         0,
	}
	endpoints := []endpointDescriptor{
		{
			BLength:          util.SizeOf[endpointDescriptor](),
			BDescriptorType:  DescriptorTypeEndpoint,
			BEndpointAddress: BulkInAddress,
			BmAttributes:     endpointAttributeBulk,
			WMaxPacketSize:   BulkPacketSize,
			BInterval:        0, // ignored for bulk
		},
		{
			BLength:          util.SizeOf[endpointDescriptor](),
			BDescriptorType:  DescriptorTypeEndpoint,
			BEndpointAddress: BulkOutAddress,
			BmAttributes:     endpointAttributeBulk,
			WMaxPacketSize:   BulkPacketSize,
			BInterval:        0,
		},
	}
	return util.Concat(
		util.ToLE(config),
		util.ToLE(massStorage),
		util.ToLE(endpoints[0]),
		util.ToLE(endpoints[1]),
	)
}

func buildStringDescriptors(options DeviceOptions) [][]byte {
	serial := options.SerialNumber
	if len(serial) != serialNumberLength {
		// The serial string is fixed-width on the wire; pad or cut
		// rather than ship a malformed descriptor.
		serial = fmt.Sprintf("%-*s", serialNumberLength, serial)[:serialNumberLength]
	}
	return [][]byte{
		stringBlob(util.ToLE[uint16](langIDEngUSA)),
		stringBlob(util.Utf16encode(options.Manufacturer)),
		stringBlob(util.Utf16encode(options.Product)),
		stringBlob(util.Utf16encode(serial)),
	}
}

func stringBlob(payload []byte) []byte {
	header := stringDescriptorHeader{
		BLength:         uint8(2 + len(payload)),
		BDescriptorType: DescriptorTypeString,
	}
	return util.Concat(util.ToLE(header), payload)
}
