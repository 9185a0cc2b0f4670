// Command noelsim assembles the reference board and drives it the way a
// guest program would: register pokes over the system bus, with every
// access and pin transition visible in the trace log.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tarm/serial"

	"noelsim/devices/apbuart"
	"noelsim/devices/gptimer"
	"noelsim/devices/grgpio"
	"noelsim/irq"
	"noelsim/soc"
	"noelsim/x/logx"
)

func main() {
	boardFile := flag.String("board", "", "YAML board file (defaults to the reference board)")
	trace := flag.Bool("trace", false, "log every register access and pin transition")
	flag.Parse()

	if err := run(*boardFile, *trace); err != nil {
		fmt.Fprintln(os.Stderr, "noelsim:", err)
		os.Exit(1)
	}
}

func run(boardFile string, trace bool) error {
	cfg := soc.DefaultConfig()
	if boardFile != "" {
		var err error
		if cfg, err = soc.LoadConfig(boardFile); err != nil {
			return err
		}
	}
	if trace {
		cfg.Log.Level = "debug"
	}

	log, closeLog, err := logx.New(logx.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	tx, rx, closeUART, err := openUARTBackend(cfg.UART)
	if err != nil {
		return err
	}
	defer closeUART()

	// Interrupt controller stand-in: log every assertion.
	sink := irq.SinkFunc(func(source int, level bool) {
		log.Info("plic: source level", "source", source, "level", level)
	})

	board, err := soc.New(soc.Options{Config: cfg, Log: log, IRQ: sink, UARTTx: tx})
	if err != nil {
		return err
	}

	runScript(board, rx)
	return nil
}

// openUARTBackend returns the TX writer and an RX byte channel for the
// configured backend. rx is nil when the backend cannot receive.
func openUARTBackend(cfg soc.UARTConfig) (io.Writer, <-chan byte, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case "", "none":
		return nil, nil, noop, nil
	case "stdio":
		return os.Stdout, nil, noop, nil
	case "serial":
		port, err := serial.OpenPort(&serial.Config{Name: cfg.Device, Baud: cfg.Baud})
		if err != nil {
			return nil, nil, nil, err
		}
		rx := make(chan byte, 64)
		go func() {
			buf := make([]byte, 1)
			for {
				n, err := port.Read(buf)
				if err != nil {
					close(rx)
					return
				}
				if n > 0 {
					rx <- buf[0]
				}
			}
		}()
		return port, rx, func() { _ = port.Close() }, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown uart backend %q", cfg.Backend)
}

// runScript plays a guest-like session: banner over the UART, a few GPIO
// edges including the board jumper, then a periodic timer.
func runScript(board *soc.SoC, rx <-chan byte) {
	b := board.Bus()

	// Bring up the UART and send a banner, byte by byte like guest code.
	b.Write32(soc.AddrUART0+apbuart.RegCtrl, apbuart.CtrlTE|apbuart.CtrlRE|apbuart.CtrlRI)
	for _, c := range []byte("noelsim up\r\n") {
		b.Write32(soc.AddrUART0+apbuart.RegData, uint32(c))
	}

	// Configure pin 22 as output and toggle it through the jumper.
	b.Write32(soc.AddrGPIO0+grgpio.RegDir, 1<<22)
	for i := 0; i < 3; i++ {
		b.Write32(soc.AddrGPIO0+grgpio.RegOut, 1<<22)
		b.Write32(soc.AddrGPIO0+grgpio.RegOut, 0)
	}

	// Periodic subtimer 0: underflow every 4 prescaler ticks.
	b.Write32(soc.AddrTimer0+0x10+0x4, 3) // reload
	b.Write32(soc.AddrTimer0+0x10+0x8, gptimer.CtrlEN|gptimer.CtrlRS|gptimer.CtrlIE|gptimer.CtrlLD)
	board.Timer().Tick(16)

	// Feed any pending host bytes to the guest and echo them back.
	for {
		select {
		case c, ok := <-rx:
			if !ok {
				return
			}
			board.UART().PushRX(c)
			echo := byte(b.Read32(soc.AddrUART0 + apbuart.RegData))
			b.Write32(soc.AddrUART0+apbuart.RegData, uint32(echo))
		default:
			return
		}
	}
}
