package main

import (
	"fmt"
	"os"

	"github.com/google/gousb"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/virtualusb/virtual-ums/usb"
)

// Get Max LUN request: device-to-host, class, interface recipient.
const getMaxLUNRequestType = 0xA1
const getMaxLUNRequest = 0xFE

// probe opens the device from the host side the way an operating system
// driver would and cross-checks what enumeration produced against the
// descriptor catalog this device is supposed to carry.
func probe(cmd *cobra.Command, args []string) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vendorID), gousb.ID(productID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open device: %v\n", err)
		os.Exit(1)
	}
	if dev == nil {
		fmt.Fprintf(os.Stderr, "no device found with ID %04x:%04x\n", vendorID, productID)
		os.Exit(1)
	}
	defer dev.Close()
	dev.SetAutoDetach(true)

	var errs *multierror.Error

	config, err := dev.Config(1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "get config 1: %v\n", err)
		os.Exit(1)
	}
	defer config.Close()

	var setting gousb.InterfaceSetting
	found := false
	for _, iface := range config.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == gousb.ClassMassStorage {
				setting = alt
				found = true
			}
		}
	}
	if !found {
		errs = multierror.Append(errs, fmt.Errorf("no mass storage interface in configuration 1"))
	} else {
		if setting.SubClass != 0x06 {
			errs = multierror.Append(errs, fmt.Errorf("interface subclass 0x%02x, want 0x06 (SCSI transparent)", uint8(setting.SubClass)))
		}
		if setting.Protocol != 0x50 {
			errs = multierror.Append(errs, fmt.Errorf("interface protocol 0x%02x, want 0x50 (bulk-only)", uint8(setting.Protocol)))
		}
		var sawIn, sawOut bool
		for _, endpoint := range setting.Endpoints {
			address := uint8(endpoint.Address)
			switch address {
			case usb.BulkInAddress:
				sawIn = true
			case usb.BulkOutAddress:
				sawOut = true
			default:
				errs = multierror.Append(errs, fmt.Errorf("unexpected endpoint address 0x%02x", address))
				continue
			}
			if endpoint.TransferType != gousb.TransferTypeBulk {
				errs = multierror.Append(errs, fmt.Errorf("endpoint 0x%02x is not bulk", address))
			}
			if endpoint.MaxPacketSize != usb.BulkPacketSize {
				errs = multierror.Append(errs, fmt.Errorf("endpoint 0x%02x packet size %d, want %d", address, endpoint.MaxPacketSize, usb.BulkPacketSize))
			}
		}
		if !sawIn {
			errs = multierror.Append(errs, fmt.Errorf("bulk IN endpoint 0x%02x missing", usb.BulkInAddress))
		}
		if !sawOut {
			errs = multierror.Append(errs, fmt.Errorf("bulk OUT endpoint 0x%02x missing", usb.BulkOutAddress))
		}
	}

	lun := make([]byte, 1)
	n, err := dev.Control(getMaxLUNRequestType, getMaxLUNRequest, 0, 0, lun)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("Get Max LUN: %w", err))
	} else if n < 1 {
		errs = multierror.Append(errs, fmt.Errorf("Get Max LUN returned no data"))
	} else {
		fmt.Printf("Get Max LUN: %d\n", lun[0])
	}

	manufacturerString, _ := dev.Manufacturer()
	productString, _ := dev.Product()
	serialString, _ := dev.SerialNumber()
	fmt.Printf("Device %s: %q %q serial %q\n", dev.Desc.String(), manufacturerString, productString, serialString)

	if err := errs.ErrorOrNil(); err != nil {
		fmt.Fprintf(os.Stderr, "probe found problems:\n%v\n", err)
		os.Exit(1)
	}
	fmt.Println("probe OK")
}
