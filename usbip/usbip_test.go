package usbip

import (
	"testing"

	"github.com/virtualusb/virtual-ums/test"
	"github.com/virtualusb/virtual-ums/util"
)

type stubDevice struct {
	busID string
}

func (device *stubDevice) HandleMessage(id uint32, onFinish func(status int32, response []byte), endpoint uint32, in bool, setupBytes [8]byte, transferBuffer []byte) {
	onFinish(0, nil)
}

func (device *stubDevice) RemoveWaitingRequest(id uint32) bool {
	return false
}

func (device *stubDevice) BusID() string {
	return device.busID
}

func (device *stubDevice) DeviceSummary() DeviceSummary {
	summary := DeviceSummary{}
	copy(summary.Header.BusID[:], []byte(device.busID))
	return summary
}

func TestReplyHeaderMapping(t *testing.T) {
	submit := usbipMessageHeader{
		Command:        usbipCmdSubmit,
		SequenceNumber: 7,
		DeviceID:       2<<16 | 2,
		Direction:      usbipDirIn,
		Endpoint:       6,
	}
	reply := submit.replyHeader()
	test.AssertEqual(t, reply.Command, usbipRetSubmit, "submit replies with RET_SUBMIT")
	test.AssertEqual(t, reply.SequenceNumber, submit.SequenceNumber, "sequence number preserved")
	test.AssertEqual(t, reply.Endpoint, 0, "reply header endpoint zeroed")

	unlink := usbipMessageHeader{Command: usbipCmdUnlink, SequenceNumber: 8}
	test.AssertEqual(t, unlink.replyHeader().Command, usbipRetUnlink, "unlink replies with RET_UNLINK")
}

func TestOpRepDevlist(t *testing.T) {
	devices := []Device{&stubDevice{busID: "2-2"}, &stubDevice{busID: "2-3"}}
	reply := newOpRepDevlist(devices)
	test.AssertEqual(t, reply.Header.Command, usbipCommandOpRepDevlist, "devlist reply command")
	test.AssertEqual(t, reply.Header.Version, uint16(usbipVersion), "protocol version")
	test.AssertEqual(t, reply.NumDevices, uint32(2), "device count")
	test.AssertEqual(t, util.CStringToString(reply.Devices[1].Header.BusID[:]), "2-3", "summary order")
}

func TestOpRepImportError(t *testing.T) {
	reply := opRepImportError(1)
	test.AssertEqual(t, reply.Command, usbipCommandOpRepImport, "import error command")
	test.AssertEqual(t, reply.Status, uint32(1), "nonzero status")
}

func TestServerGetDevice(t *testing.T) {
	device := &stubDevice{busID: "2-2"}
	server := NewServer("127.0.0.1:3240", device)
	if server.getDevice("2-2") != device {
		t.Fatalf("device not found by bus ID")
	}
	if server.getDevice("9-9") != nil {
		t.Fatalf("unknown bus ID should yield nil")
	}
}

func TestStatusStalledIsNegative(t *testing.T) {
	if StatusStalled >= 0 {
		t.Fatalf("URB error status must be negative, got %d", StatusStalled)
	}
}
