package usb

import (
	"github.com/virtualusb/virtual-ums/util"
)

var transportLogger = util.NewLogger("[BULK] ", util.LogLevelDebug)

// BulkTransport is the command processor behind the bulk endpoint pair,
// typically a SCSI Bulk-Only Transport implementation. The device core
// never interprets bulk payloads itself; it only moves them across this
// boundary and signals Reset on a Mass Storage Reset request.
type BulkTransport interface {
	// HandleCommand receives the payload of a bulk OUT transfer.
	HandleCommand(transferBuffer []byte)
	// GetResponse blocks up to timeout milliseconds for data to answer a
	// bulk IN transfer with. A nil return means the request was cancelled.
	GetResponse(id uint32, timeout int64) []byte
	// RemoveWaitingRequest cancels a pending GetResponse by id.
	RemoveWaitingRequest(id uint32) bool
	// Reset abandons any in-flight command/data/status transaction.
	Reset()
}

// DiscardTransport is a stand-in transport that drops every command and
// never produces data. It lets the device enumerate without a SCSI
// processor attached; the host will see a disk that fails all commands.
type DiscardTransport struct{}

func (transport *DiscardTransport) HandleCommand(transferBuffer []byte) {
	transportLogger.Printf("DISCARDING %d BYTE COMMAND\n\n", len(transferBuffer))
}

func (transport *DiscardTransport) GetResponse(id uint32, timeout int64) []byte {
	return []byte{}
}

func (transport *DiscardTransport) RemoveWaitingRequest(id uint32) bool {
	return false
}

func (transport *DiscardTransport) Reset() {
	transportLogger.Printf("RESET\n\n")
}
