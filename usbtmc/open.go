package usbtmc

import (
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// ErrNoDevice no attached device matched.
var ErrNoDevice = errors.New("usbtmc: no matching device")

// Open opens the USBTMC device with the given vendor and product id,
// serialNumber selects one device when several share the ids.
func Open(vid, pid uint16, serialNumber string) (*Device, error) {
	ctx := gousb.NewContext()
	dev, err := openDevice(ctx, vid, pid, serialNumber)
	if err != nil {
		ctx.Close()
		return nil, err
	}
	in, out, done, err := claimBulk(dev)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return New(in, out, func() error {
		done()
		err := dev.Close()
		if e := ctx.Close(); err == nil {
			err = e
		}
		return err
	}), nil
}

func openDevice(ctx *gousb.Context, vid, pid uint16, serialNumber string) (*gousb.Device, error) {
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vid) && desc.Product == gousb.ID(pid)
	})
	if len(devs) == 0 {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %04x:%04x", ErrNoDevice, vid, pid)
	}

	var found *gousb.Device
	for _, d := range devs {
		if found == nil && serialNumber == "" {
			found = d
			continue
		}
		if found == nil {
			if sn, err := d.SerialNumber(); err == nil && sn == serialNumber {
				found = d
				continue
			}
		}
		d.Close()
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %04x:%04x serial %s", ErrNoDevice, vid, pid, serialNumber)
	}
	return found, nil
}

// claimBulk claims the default interface of dev and returns its first bulk
// in and out endpoints, done releases the interface.
func claimBulk(dev *gousb.Device) (*gousb.InEndpoint, *gousb.OutEndpoint, func(), error) {
	if err := dev.SetAutoDetach(true); err != nil {
		return nil, nil, nil, err
	}
	intf, done, err := dev.DefaultInterface()
	if err != nil {
		return nil, nil, nil, err
	}

	inNum, outNum := -1, -1
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn {
			if inNum < 0 {
				inNum = ep.Number
			}
		} else if outNum < 0 {
			outNum = ep.Number
		}
	}
	if inNum < 0 || outNum < 0 {
		done()
		return nil, nil, nil, fmt.Errorf("usbtmc: %s has no bulk endpoint pair", intf)
	}
	in, err := intf.InEndpoint(inNum)
	if err != nil {
		done()
		return nil, nil, nil, err
	}
	out, err := intf.OutEndpoint(outNum)
	if err != nil {
		done()
		return nil, nil, nil, err
	}
	return in, out, done, nil
}
