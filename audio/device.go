package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

var ErrSelectionAborted = errors.New("device selection aborted")

// SelectDevice shows an arrow-key picker on the terminal. With a single
// device it returns that device without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, errors.New("no capture devices found")
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	idx, err := pickIndex(os.Stdin, os.Stdout, devices)
	if err != nil {
		return nil, err
	}
	return &devices[idx], nil
}

func renderPicker(w io.Writer, devices []DeviceInfo, cursor int) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select microphone (↑/↓ or j/k, Enter to confirm):\r\n\r\n")
	for i, d := range devices {
		if i == cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %s\x1b[0m\r\n", d.Name)
		} else {
			fmt.Fprintf(w, "    %s\r\n", d.Name)
		}
	}
}

// pickIndex reads raw key presses from r until Enter or Ctrl+C.
func pickIndex(r io.Reader, w io.Writer, devices []DeviceInfo) (int, error) {
	cursor := 0
	renderPicker(w, devices, cursor)

	buf := make([]byte, 3)
	for {
		n, err := r.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("reading input: %w", err)
		}

		switch {
		case n == 1 && (buf[0] == '\r' || buf[0] == '\n'):
			fmt.Fprint(w, "\r\n")
			return cursor, nil
		case n == 1 && (buf[0] == 3 || buf[0] == 'q'):
			fmt.Fprint(w, "\r\n")
			return 0, ErrSelectionAborted
		case (n == 1 && buf[0] == 'j') || (n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'B'):
			cursor = min(cursor+1, len(devices)-1)
		case (n == 1 && buf[0] == 'k') || (n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'A'):
			cursor = max(cursor-1, 0)
		}

		fmt.Fprintf(w, "\x1b[%dA", len(devices)+2)
		renderPicker(w, devices, cursor)
	}
}
