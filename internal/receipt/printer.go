package receipt

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

// Printer sends raw ESC/POS bytes to a receipt printer.
type Printer interface {
	Print(ctx context.Context, data []byte) error
}

type NetworkPrinter struct {
	address string
	timeout time.Duration
}

func NewNetworkPrinter(address string) *NetworkPrinter {
	return &NetworkPrinter{address: address, timeout: 5 * time.Second}
}

func (p *NetworkPrinter) Print(ctx context.Context, data []byte) error {
	dialer := net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return fmt.Errorf("printer: connect %s: %w", p.address, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("printer: write %s: %w", p.address, err)
	}
	return nil
}

// USBPrinter writes to a device file such as /dev/usb/lp0.
type USBPrinter struct {
	path string
}

func NewUSBPrinter(path string) *USBPrinter {
	return &USBPrinter{path: path}
}

func (p *USBPrinter) Print(_ context.Context, data []byte) error {
	f, err := os.OpenFile(p.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("printer: open %s: %w", p.path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("printer: write %s: %w", p.path, err)
	}
	return nil
}

type NullPrinter struct{}

func (NullPrinter) Print(context.Context, []byte) error {
	return nil
}

func NewPrinter(kind string, address string, usbPath string) (Printer, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "none":
		return NullPrinter{}, nil
	case "network":
		if address == "" {
			return nil, fmt.Errorf("PRINTER_ADDRESS is required for a network printer")
		}
		return NewNetworkPrinter(address), nil
	case "usb":
		if usbPath == "" {
			return nil, fmt.Errorf("PRINTER_USB_PATH is required for a usb printer")
		}
		return NewUSBPrinter(usbPath), nil
	default:
		return nil, fmt.Errorf("unknown printer type %q", kind)
	}
}
