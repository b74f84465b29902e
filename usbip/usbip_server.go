package usbip

import (
	"net"
	"strings"
	"sync"
	"syscall"

	"github.com/virtualusb/virtual-ums/util"
)

var usbipLogger = util.NewLogger("[USBIP] ", util.LogLevelTrace)
var errLogger = util.NewLogger("[ERR] ", util.LogLevelEnabled)

type Server struct {
	addr    string
	devices []Device
}

func NewServer(addr string, devices ...Device) *Server {
	return &Server{
		addr:    addr,
		devices: devices,
	}
}

// Start listens for USBIP attachments and serves them until the process
// exits. Only loopback peers are accepted; the protocol has no
// authentication of its own.
func (server *Server) Start() {
	usbipLogger.Printf("Starting USBIP server on %s...", server.addr)
	listener, err := net.Listen("tcp", server.addr)
	util.CheckErr(err, "Could not create listener")
	for {
		connection, err := listener.Accept()
		if err != nil {
			usbipLogger.Printf("Connection accept error: %v", err)
			continue
		}
		if !strings.HasPrefix(connection.RemoteAddr().String(), "127.0.0.1") {
			usbipLogger.Printf("Connection attempted from non-local address: %s", connection.RemoteAddr().String())
			connection.Close()
			continue
		}
		usbipConn := newUSBIPConnection(server, connection)
		util.Try(func() {
			usbipConn.handle()
		}, func(err interface{}) {
			errLogger.Printf("%v", err)
		})
	}
}

func (server *Server) getDevice(busID string) Device {
	for _, device := range server.devices {
		if device.BusID() == busID {
			return device
		}
	}
	return nil
}

type usbipConnection struct {
	responseMutex *sync.Mutex
	conn          net.Conn
	server        *Server
}

func newUSBIPConnection(server *Server, conn net.Conn) *usbipConnection {
	return &usbipConnection{
		responseMutex: &sync.Mutex{},
		conn:          conn,
		server:        server,
	}
}

func (conn *usbipConnection) handle() {
	for {
		header := util.ReadBE[usbipControlHeader](conn.conn)
		usbipLogger.Printf("[CONTROL MESSAGE] %s\n\n", &header)
		if header.Command == usbipCommandOpReqDevlist {
			reply := newOpRepDevlist(conn.server.devices)
			usbipLogger.Printf("[OP_REP_DEVLIST] %#v\n\n", reply)
			// The device list is variable length, so it cannot go
			// through binary.Write in one piece.
			response := util.Concat(util.ToBE(reply.Header), util.ToBE(reply.NumDevices))
			for _, summary := range reply.Devices {
				response = append(response, util.ToBE(summary)...)
			}
			conn.writeResponse(response)
		} else if header.Command == usbipCommandOpReqImport {
			busIDData := util.Read(conn.conn, 32)
			busID := util.CStringToString(busIDData)
			device := conn.server.getDevice(busID)
			if device == nil {
				reply := opRepImportError(1)
				conn.writeResponse(util.ToBE(reply))
				continue
			}
			reply := newOpRepImport(device)
			usbipLogger.Printf("[OP_REP_IMPORT] %#v\n\n", reply)
			conn.writeResponse(util.ToBE(reply))
			conn.handleCommands(device)
		} else {
			usbipLogger.Printf("Unknown Command Code: %d", header.Command)
		}
	}
}

func (conn *usbipConnection) handleCommands(device Device) {
	for {
		util.Try(func() {
			header := util.ReadBE[usbipMessageHeader](conn.conn)
			usbipLogger.Printf("[MESSAGE HEADER] %s\n\n", header)
			if header.Command == usbipCmdSubmit {
				conn.handleCommandSubmit(device, header)
			} else if header.Command == usbipCmdUnlink {
				conn.handleCommandUnlink(device, header)
			} else {
				usbipLogger.Printf("Unsupported Command: %#v\n\n", header)
			}
		}, func(err interface{}) {
			errLogger.Printf("%v", err)
		})
	}
}

func (conn *usbipConnection) handleCommandSubmit(device Device, header usbipMessageHeader) {
	command := util.ReadBE[usbipCommandSubmitBody](conn.conn)
	usbipLogger.Printf("[COMMAND SUBMIT] %s\n\n", command)
	transferBuffer := make([]byte, command.TransferBufferLength)
	if header.Direction == usbipDirOut && command.TransferBufferLength > 0 {
		_, err := conn.conn.Read(transferBuffer)
		util.CheckErr(err, "Could not read transfer buffer")
	}
	// The response may not be immediate, so completion goes through a
	// callback.
	onReturnSubmit := func(status int32, response []byte) {
		if response != nil {
			copy(transferBuffer, response)
			if len(response) < len(transferBuffer) {
				transferBuffer = transferBuffer[:len(response)]
			}
		}
		actualLength := uint32(len(transferBuffer))
		if status != 0 {
			actualLength = 0
		}
		replyHeader := header.replyHeader()
		replyBody := usbipReturnSubmitBody{
			Status:          status,
			ActualLength:    actualLength,
			StartFrame:      0,
			NumberOfPackets: 0,
			ErrorCount:      0,
			Padding:         0,
		}
		usbipLogger.Printf("[RETURN SUBMIT] %v %#v\n\n", replyHeader, replyBody)
		reply := util.Concat(util.ToBE(replyHeader), util.ToBE(replyBody))
		if header.Direction == usbipDirIn && status == 0 {
			usbipLogger.Printf("[RETURN SUBMIT] DATA: %#v\n\n", transferBuffer)
			reply = append(reply, transferBuffer...)
		}
		conn.writeResponse(reply)
	}
	in := header.Direction == usbipDirIn
	device.HandleMessage(header.SequenceNumber, onReturnSubmit, header.Endpoint, in, command.SetupBytes, transferBuffer)
}

func (conn *usbipConnection) handleCommandUnlink(device Device, header usbipMessageHeader) {
	unlink := util.ReadBE[usbipCommandUnlinkBody](conn.conn)
	usbipLogger.Printf("[COMMAND UNLINK] %#v\n\n", unlink)
	var status int32
	if device.RemoveWaitingRequest(unlink.UnlinkSequenceNumber) {
		status = -int32(syscall.ECONNRESET)
	} else {
		status = -int32(syscall.ENOENT)
	}
	replyHeader := header.replyHeader()
	replyBody := usbipReturnUnlinkBody{
		Status:  status,
		Padding: [24]byte{},
	}
	reply := util.Concat(
		util.ToBE(replyHeader),
		util.ToBE(replyBody),
	)
	conn.writeResponse(reply)
}

func (conn *usbipConnection) writeResponse(data []byte) {
	conn.responseMutex.Lock()
	util.Write(conn.conn, data)
	conn.responseMutex.Unlock()
}
