package service

import (
	"fmt"
	"net/rpc"
	"time"

	"github.com/ks888/fetctl/probe"
)

// Client is the rpc client of the probe service.
type Client struct {
	client *rpc.Client
}

// Dial connects to the service. It retries several times because the service may be starting.
func Dial(addr string) (*Client, error) {
	const numRetries = 5
	interval := 100 * time.Millisecond
	var err error
	for i := 0; i < numRetries; i++ {
		var client *rpc.Client
		client, err = rpc.Dial("tcp", addr)
		if err == nil {
			return &Client{client: client}, nil
		}

		time.Sleep(interval)
		interval *= 2
	}
	return nil, fmt.Errorf("can't connect to the server (addr: %s): %v", addr, err)
}

// Close closes the connection. The probe remains open.
func (c *Client) Close() error {
	return c.client.Close()
}

// CheckVersion returns the error if the service version is not the expected one.
func (c *Client) CheckVersion() error {
	var version int
	if err := c.client.Call("Probe.Version", struct{}{}, &version); err != nil {
		return err
	}
	if version != serviceVersion {
		return fmt.Errorf("unsupported service version: %d (expected %d)", version, serviceVersion)
	}
	return nil
}

// Open opens the probe and the device.
func (c *Client) Open(args OpenArgs) (OpenReply, error) {
	var reply OpenReply
	err := c.client.Call("Probe.Open", args, &reply)
	return reply, err
}

// CloseProbe closes the probe.
func (c *Client) CloseProbe() error {
	return c.client.Call("Probe.Close", struct{}{}, &struct{}{})
}

// State polls the run state.
func (c *Client) State(requestStop bool) (StateReply, error) {
	var reply StateReply
	err := c.client.Call("Probe.State", StateArgs{RequestStop: requestStop}, &reply)
	return reply, err
}

// Run starts the device.
func (c *Client) Run(mode probe.RunMode, release bool) error {
	return c.client.Call("Probe.Run", RunArgs{Mode: mode, Release: release}, &struct{}{})
}

// ReadMemory reads the memory.
func (c *Client) ReadMemory(addr uint32, length int) ([]byte, error) {
	var data []byte
	err := c.client.Call("Probe.ReadMemory", MemoryArgs{Addr: addr, Length: length}, &data)
	return data, err
}

// SetBreakpoint sets the breakpoint.
func (c *Client) SetBreakpoint(bp probe.Breakpoint) (probe.Handle, error) {
	var h probe.Handle
	err := c.client.Call("Probe.SetBreakpoint", bp, &h)
	return h, err
}

// ClearBreakpoint clears the breakpoint.
func (c *Client) ClearBreakpoint(h probe.Handle) error {
	return c.client.Call("Probe.ClearBreakpoint", h, &struct{}{})
}

// Events fetches the events dispatched since the last call.
func (c *Client) Events() (EventsReply, error) {
	var reply EventsReply
	err := c.client.Call("Probe.Events", struct{}{}, &reply)
	return reply, err
}
