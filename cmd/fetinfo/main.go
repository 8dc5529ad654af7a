package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/ks888/fetctl/events"
	"github.com/ks888/fetctl/log"
	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/probe/serial"
	"github.com/ks888/fetctl/probe/sim"
	"github.com/ks888/fetctl/service"
	"github.com/ks888/fetctl/session"
)

// flushTimeout bounds the wait for the events printed at exit.
const flushTimeout = time.Second

type options struct {
	port     string
	vcc      int
	device   session.DeviceOptions
	baud     int
	serve    string
	noColor  bool
	password string
	list     bool
}

func newTransport(opts options) probe.Transport {
	if opts.port == sim.PortName {
		return sim.NewTransport(sim.NewDefaultConfig())
	}
	serialOpts := serial.NewDefaultOptions()
	serialOpts.Baud = opts.baud
	return serial.NewTransport(serialOpts)
}

// run opens the device, prints its information and closes it. The events from the probe are printed as they arrive.
func run(ctx context.Context, opts options, transport probe.Transport, out *printer) error {
	dispatcher := events.NewDispatcher()
	defer dispatcher.Close()
	dispatcher.Subscribe(out.event)

	registry := session.NewRegistry(dispatcher)
	s, err := registry.Open(opts.port, transport)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_ = dispatcher.Run(ctx)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		if err := dump(s, opts, out); err != nil {
			_ = registry.Release(opts.port)
			return err
		}
		return registry.Release(opts.port)
	})
	err = g.Wait()

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), flushTimeout)
	defer cancelFlush()
	if flushErr := dispatcher.Flush(flushCtx); flushErr != nil {
		log.WithLayer("fetinfo").Warnf("some events are not printed: %v", flushErr)
	}
	return err
}

// list prints the probes the transport can open.
func list(transport probe.Transport, out *printer) error {
	interfaces, err := session.Interfaces(transport)
	if err != nil {
		return err
	}

	out.section("Interfaces")
	for _, iface := range interfaces {
		state := "available"
		if !iface.Enabled {
			state = "in use"
		}
		out.field(iface.Name, "%s", state)
	}
	return nil
}

func dump(s *session.Session, opts options, out *printer) error {
	version, err := s.Initialize()
	if err != nil {
		return err
	}
	if err := s.SetSupplyVoltage(opts.vcc); err != nil {
		return err
	}
	if err := s.OpenDevice(opts.device); err != nil {
		return err
	}
	desc, err := s.Device()
	if err != nil {
		return err
	}

	out.section("Probe")
	out.field("port", "%s", s.Path())
	out.field("firmware", "%s", version)

	out.section("Device")
	out.field("name", "%s", desc.Name)
	out.field("id", "%#04x", desc.ID)
	out.field("jtag id", "%#02x", desc.JtagID)
	out.field("arch", "%s", desc.Arch)
	out.field("core ip id", "%#04x", desc.CoreIPID)
	out.field("fram", "%v", desc.HasFRAM)

	out.section("Memory map")
	for _, region := range desc.Regions() {
		out.field(region.Name, "%#06x-%#06x (%d bytes)", region.Start, region.End, region.Size())
	}

	out.section("Voltage")
	mv, err := s.SupplyVoltage()
	if err != nil {
		return err
	}
	out.field("supply", "%d mV", mv)
	if s.IsSupported(probe.OpGetExtVoltage) {
		ext, state, err := s.ExternalVoltage()
		if err != nil {
			return err
		}
		out.field("external", "%d mV (%s)", ext, state.Message())
	}
	out.field("operating", "%d-%d mV", desc.VccMin, desc.VccMax)
	out.field("test vpp", "%v", desc.HasTestVpp)

	out.section("Debug resources")
	out.field("emulation", "%s (eem version %d)", desc.Emulation, desc.EEMVersion)
	out.field("breakpoints", "%d", desc.Breakpoints)
	out.field("reg triggers", "%d", desc.RegTriggers)
	out.field("combinations", "%d", desc.Combinations)
	out.field("clock control", "%s", desc.ClockControl)
	out.field("state storage", "%v", desc.StateStorage)
	out.field("cycle counters", "%d", desc.CycleCounters)
	out.field("sequencer", "%v", desc.Sequencer)

	values, err := s.ReadRegisters(0xffff)
	if err != nil {
		return err
	}
	out.section("Registers")
	for _, v := range values {
		out.field(v.Register.String(), "%#06x", uint32(v.Value))
	}
	return nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `fetinfo prints the information of the device attached to the MSP430 debug probe.

Usage:

	%s [flags]

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}

	var opts options
	flag.StringVar(&opts.port, "port", sim.PortName, "The serial `device` of the probe. 'sim' uses the simulated target.")
	flag.IntVar(&opts.vcc, "vcc", 3300, "The supply voltage in `mV`.")
	device := flag.String("device", session.NewDefaultDeviceOptions().Device, "The `name` of the expected device.")
	flag.StringVar(&opts.password, "password", "", "The JTAG `password` in hex.")
	flag.IntVar(&opts.baud, "baud", serial.NewDefaultOptions().Baud, "The `baud` rate of the serial device.")
	flag.StringVar(&opts.serve, "serve", "", "Serve the probe over rpc at this `address` instead of printing the information.")
	verbose := flag.Bool("verbose", false, "Show the debug-level message")
	flag.BoolVar(&opts.noColor, "nocolor", false, "Disable the colored output")
	flag.BoolVar(&opts.list, "list", false, "List the attached probes instead of printing the information.")
	flag.Parse()

	log.EnableDebugLog = *verbose
	opts.device = session.NewDefaultDeviceOptions()
	opts.device.Device = *device

	color := !opts.noColor && term.IsTerminal(int(os.Stdout.Fd()))
	out := newPrinter(os.Stdout, color)

	password, err := hex.DecodeString(opts.password)
	if err != nil {
		out.fail(fmt.Errorf("invalid password: %v", err))
		os.Exit(1)
	}
	opts.device.Password = password

	transport := newTransport(opts)
	switch {
	case opts.list:
		err = list(transport, out)
	case opts.serve != "":
		err = service.Serve(opts.serve, transport)
	default:
		err = run(context.Background(), opts, transport, out)
	}
	if err != nil {
		out.fail(err)
		os.Exit(1)
	}
}
