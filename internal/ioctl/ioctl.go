//go:build linux

// Package ioctl encodes and issues ioctl requests.
package ioctl

import (
	"fmt"
	"reflect"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mode is the IOCTL mode.
type Mode uint8

// Modes
const (
	None Mode = iota
	Write
	Read
)

// Command to be sent over ioctl.
type Command uintptr

func (c Command) String() string {
	var (
		mode = Mode(c >> 30 & 0x03)
		size = c >> 16 & 0x3fff
		cmd  = c & 0xffff
		str  string
	)
	if mode&Write > 0 {
		str += " write"
	}
	if mode&Read > 0 {
		str += " read"
	}
	return fmt.Sprintf("ioctl%s (%d bytes) 0x%04x", str, size, uintptr(cmd))
}

// Do executes the ioctl call with a pointer argument. The returned error
// wraps the errno.
func Do(fd uintptr, command Command, arg unsafe.Pointer) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(command), uintptr(arg)); errno != 0 {
		return fmt.Errorf("%s failed: %w", command, errno)
	}
	return nil
}

// Call does a plain ioctl system call.
func Call(fd, command, arg uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, command, arg); errno != 0 {
		return fmt.Errorf("%s failed: %w", Command(command), errno)
	}
	return nil
}

// Encode an ioctl command.
func Encode(mode Mode, size uint16, cmd uintptr) Command {
	return Command(mode)<<30 | Command(size)<<16 | Command(cmd)
}

// Pointer encodes a command that passes a pointer to ref's type.
func Pointer(mode Mode, ref any, cmd uintptr) Command {
	size := uint16(reflect.TypeOf(ref).Elem().Size())
	return Encode(mode, size, cmd)
}
