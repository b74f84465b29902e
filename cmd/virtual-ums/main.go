package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	virtualums "github.com/virtualusb/virtual-ums"
	"github.com/virtualusb/virtual-ums/usb"
	"github.com/virtualusb/virtual-ums/util"
)

var (
	addr          string
	vendorID      uint16
	productID     uint16
	deviceVersion uint16
	manufacturer  string
	product       string
	serialNumber  string
	verbose       bool
)

func deviceOptions() usb.DeviceOptions {
	options := usb.DefaultDeviceOptions()
	options.VendorID = vendorID
	options.ProductID = productID
	options.DeviceVersion = deviceVersion
	options.Manufacturer = manufacturer
	options.Product = product
	options.SerialNumber = serialNumber
	return options
}

func start(cmd *cobra.Command, args []string) {
	virtualums.SetLogOutput(os.Stdout)
	if verbose {
		virtualums.SetLogLevel(util.LogLevelTrace)
	} else {
		virtualums.SetLogLevel(util.LogLevelDebug)
	}
	err := virtualums.Start(addr, &usb.DiscardTransport{}, deviceOptions())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dumpDescriptors(cmd *cobra.Command, args []string) {
	catalog, err := usb.NewCatalog(deviceOptions())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	device, _ := catalog.Lookup(usb.DescriptorTypeDevice, 0)
	fmt.Printf("Device descriptor (%d bytes):\n%s\n", len(device), hex.Dump(device))
	config, _ := catalog.Lookup(usb.DescriptorTypeConfiguration, 0)
	fmt.Printf("Configuration bundle (%d bytes):\n%s\n", len(config), hex.Dump(config))
	for i := 0; i < catalog.StringCount(); i++ {
		blob, _ := catalog.Lookup(usb.DescriptorTypeString, uint8(i))
		fmt.Printf("String descriptor %d (%d bytes):\n%s\n", i, len(blob), hex.Dump(blob))
	}
}

var rootCmd = &cobra.Command{
	Use:   "virtual-ums",
	Short: "Run a virtual USB mass storage device",
	Long:  `virtual-ums exports a software USB Mass-Storage-Class device over USBIP`,
}

func init() {
	defaults := usb.DefaultDeviceOptions()
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:3240", "USBIP listen address")
	rootCmd.PersistentFlags().Uint16Var(&vendorID, "vid", defaults.VendorID, "USB vendor ID")
	rootCmd.PersistentFlags().Uint16Var(&productID, "pid", defaults.ProductID, "USB product ID")
	rootCmd.PersistentFlags().Uint16Var(&deviceVersion, "device-version", defaults.DeviceVersion, "bcdDevice release number")
	rootCmd.PersistentFlags().StringVar(&manufacturer, "manufacturer", defaults.Manufacturer, "Manufacturer string")
	rootCmd.PersistentFlags().StringVar(&product, "product", defaults.Product, "Product string")
	rootCmd.PersistentFlags().StringVar(&serialNumber, "serial", defaults.SerialNumber, "Serial number string (8 characters)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Attach the virtual mass storage device",
		Run:   start,
	}
	rootCmd.AddCommand(startCmd)

	descriptorsCmd := &cobra.Command{
		Use:   "descriptors",
		Short: "Dump the descriptor catalog",
		Run:   dumpDescriptors,
	}
	rootCmd.AddCommand(descriptorsCmd)

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Verify an attached device from the host side",
		Long:  `probe opens the device by VID:PID through libusb and checks its mass storage interface, endpoints and LUN count`,
		Run:   probe,
	}
	rootCmd.AddCommand(probeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
