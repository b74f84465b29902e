package virtualums

import (
	"io"

	"github.com/virtualusb/virtual-ums/usb"
	"github.com/virtualusb/virtual-ums/usbip"
	"github.com/virtualusb/virtual-ums/util"
)

// Start attaches a virtual mass storage device to a USBIP server on addr
// and serves attachments until the process exits. The transport receives
// everything that crosses the bulk endpoint pair after enumeration.
func Start(addr string, transport usb.BulkTransport, options usb.DeviceOptions) error {
	device, err := usb.NewUSBDevice(transport, options)
	if err != nil {
		return err
	}
	server := usbip.NewServer(addr, device)
	server.Start()
	return nil
}

func SetLogLevel(level util.LogLevel) {
	util.SetLogLevel(level)
}

func SetLogOutput(out io.Writer) {
	util.SetLogOutput(out)
}
