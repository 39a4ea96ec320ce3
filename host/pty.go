// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// openPTY allocates a PTY master/slave pair using the Linux devpts
// interface. Returns the master and the filesystem path of the slave.
func openPTY() (master *os.File, slavePath string, err error) {
	master, err = os.OpenFile("/dev/ptmx", os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, "", fmt.Errorf("open /dev/ptmx: %w", err)
	}

	fd := int(master.Fd())

	ptyNumber, err := unix.IoctlGetInt(fd, unix.TIOCGPTN)
	if err != nil {
		master.Close()
		return nil, "", fmt.Errorf("get PTY number (TIOCGPTN): %w", err)
	}

	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0); err != nil {
		master.Close()
		return nil, "", fmt.Errorf("unlock PTY slave (TIOCSPTLCK): %w", err)
	}

	slavePath = fmt.Sprintf("/dev/pts/%d", ptyNumber)
	return master, slavePath, nil
}

// ptyMaster is the controlling side of an allocated PTY.
type ptyMaster struct {
	file *os.File
}

func (p *ptyMaster) Write(data []byte) (int, error) {
	return p.file.Write(data)
}

// Resize sets the window size with TIOCSWINSZ, which raises SIGWINCH
// in the foreground process group on the slave side.
func (p *ptyMaster) Resize(rows, cols, width, height int) error {
	winsize := &unix.Winsize{
		Row:    clampUint16(rows),
		Col:    clampUint16(cols),
		Xpixel: clampUint16(width),
		Ypixel: clampUint16(height),
	}
	return unix.IoctlSetWinsize(int(p.file.Fd()), unix.TIOCSWINSZ, winsize)
}

func clampUint16(value int) uint16 {
	switch {
	case value < 0:
		return 0
	case value > 0xffff:
		return 0xffff
	default:
		return uint16(value)
	}
}
