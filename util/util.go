package util

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"unicode/utf16"
)

func Panic(message string) {
	panic(fmt.Sprintf("%s\n%s", message, string(debug.Stack())))
}

func CheckErr(err error, message string) {
	if err != nil {
		Panic(fmt.Sprintf("ERROR: %v - %v", message, err))
	}
}

func Try(try func(), catch func(val interface{})) {
	defer func() {
		if r := recover(); r != nil {
			catch(r)
		}
	}()
	try()
}

func ReadBE[T any](reader io.Reader) T {
	var value T
	err := binary.Read(reader, binary.BigEndian, &value)
	CheckErr(err, "Could not read data")
	return value
}

func ReadLE[T any](reader io.Reader) T {
	var value T
	err := binary.Read(reader, binary.LittleEndian, &value)
	CheckErr(err, "Could not read data")
	return value
}

func ToLE[T any](val T) []byte {
	buffer := new(bytes.Buffer)
	binary.Write(buffer, binary.LittleEndian, val)
	return buffer.Bytes()
}

func ToBE[T any](val T) []byte {
	buffer := new(bytes.Buffer)
	binary.Write(buffer, binary.BigEndian, val)
	return buffer.Bytes()
}

func Write(writer io.Writer, data []byte) {
	_, err := writer.Write(data)
	CheckErr(err, "Could not write data")
}

func Read(reader io.Reader, length uint) []byte {
	output := make([]byte, length)
	_, err := io.ReadFull(reader, output)
	CheckErr(err, "Could not read data")
	return output
}

// Utf16encode returns the UTF-16LE encoding of message, without a byte
// order mark, as used by USB string descriptors.
func Utf16encode(message string) []byte {
	buffer := new(bytes.Buffer)
	for _, val := range utf16.Encode([]rune(message)) {
		binary.Write(buffer, binary.LittleEndian, val)
	}
	return buffer.Bytes()
}

func SizeOf[T any]() uint8 {
	var val T
	buffer := new(bytes.Buffer)
	binary.Write(buffer, binary.BigEndian, &val)
	return uint8(buffer.Len())
}

func Concat[T any](arrays ...[]T) []T {
	output := make([]T, 0)
	for _, arr := range arrays {
		output = append(output, arr...)
	}
	return output
}

// CStringToString converts a null-terminated series of bytes into a Go string.
func CStringToString(data []byte) string {
	i := strings.Index(string(data), "\x00")
	if i < 0 {
		panic("No null termination in CString")
	}
	return string(data[:i])
}
