package provider

import (
	"sync/atomic"
	"time"

	"boardcode-go/errcode"
	"boardcode-go/services/hal/internal/core"

	"tinygo.org/x/drivers"
)

// request posted to the per-bus worker; w and r are owned by the request
type spiReq struct {
	w, r      []byte
	done      chan error // buffered(1); worker replies best-effort
	abandoned *atomic.Bool
}

// spiOwner hosts the single goroutine allowed to touch one SPI controller.
type spiOwner struct {
	id   core.ResourceID
	hw   drivers.SPI
	reqs chan spiReq
	quit chan struct{}
}

func newSPIOwner(id core.ResourceID, hw drivers.SPI) *spiOwner {
	o := &spiOwner{
		id:   id,
		hw:   hw,
		reqs: make(chan spiReq, 16),
		quit: make(chan struct{}),
	}
	go o.loop()
	return o
}

func (o *spiOwner) loop() {
	for {
		select {
		case req := <-o.reqs:
			if req.abandoned.Load() {
				continue
			}
			err := o.hw.Tx(req.w, req.r)
			select {
			case req.done <- err:
			default:
			}
		case <-o.quit:
			return
		}
	}
}

func (o *spiOwner) stop() { close(o.quit) }

// driversSPI adapts the owner to tinygo.org/x/drivers.SPI and carries the bus
// configuration for device info.
type driversSPI struct {
	o       *spiOwner
	cfg     core.SPIConfig
	timeout time.Duration // 0 => no deadline
}

var _ core.SPIBus = (*driversSPI)(nil)

func (d *driversSPI) Config() core.SPIConfig { return d.cfg }

// Tx copies w before queuing, so callers may reuse it as soon as Tx returns.
// A request that times out before the worker picks it up is dropped; one
// already on the wire completes and its result is discarded.
func (d *driversSPI) Tx(w, r []byte) error {
	req := spiReq{
		w:         append([]byte(nil), w...),
		done:      make(chan error, 1),
		abandoned: new(atomic.Bool),
	}
	if r != nil {
		req.r = make([]byte, len(r))
	}

	if d.timeout <= 0 {
		d.o.reqs <- req
		return finish(<-req.done, req, r)
	}

	t := time.NewTimer(d.timeout)
	select {
	case d.o.reqs <- req:
		if !t.Stop() {
			<-t.C
		}
	case <-t.C:
		return errcode.Busy
	}

	t = time.NewTimer(d.timeout)
	defer t.Stop()
	select {
	case err := <-req.done:
		return finish(err, req, r)
	case <-t.C:
		req.abandoned.Store(true)
		return errcode.Timeout
	}
}

func finish(err error, req spiReq, r []byte) error {
	if err == nil {
		copy(r, req.r)
	}
	return err
}

func (d *driversSPI) Transfer(b byte) (byte, error) {
	var r [1]byte
	if err := d.Tx([]byte{b}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}
