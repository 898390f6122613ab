package geolocate

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/intelligrit/durian-map/internal/geo"
)

const (
	geoService    = "org.freedesktop.GeoClue2"
	managerPath   = dbus.ObjectPath("/org/freedesktop/GeoClue2/Manager")
	managerIface  = "org.freedesktop.GeoClue2.Manager"
	clientIface   = "org.freedesktop.GeoClue2.Client"
	locationIface = "org.freedesktop.GeoClue2.Location"
	propsIface    = "org.freedesktop.DBus.Properties"

	accessDenied = "org.freedesktop.DBus.Error.AccessDenied"
)

// GeoClue accuracy levels.
const (
	accuracyCity  = uint32(4)
	accuracyExact = uint32(8)
)

// GeoClue obtains a one-shot fix from the GeoClue2 service on the system bus.
// DesktopID must name an installed .desktop file with X-Geoclue-2-Client=true.
type GeoClue struct {
	DesktopID string
}

func (g GeoClue) Locate(ctx context.Context, opts Options) (geo.LatLng, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return geo.LatLng{}, &Error{Reason: ReasonUnavailable, Err: err}
	}
	defer bus.Close()

	fix, err := g.locate(ctx, bus, opts)
	if err != nil {
		return geo.LatLng{}, classifyDBus(ctx, err)
	}
	return fix, nil
}

func (g GeoClue) locate(ctx context.Context, bus *dbus.Conn, opts Options) (geo.LatLng, error) {
	manager := bus.Object(geoService, managerPath)

	var clientPath dbus.ObjectPath
	if err := manager.CallWithContext(ctx, managerIface+".CreateClient", 0).Store(&clientPath); err != nil {
		return geo.LatLng{}, fmt.Errorf("create client: %w", err)
	}
	defer manager.Call(managerIface+".DeleteClient", 0, clientPath)

	client := bus.Object(geoService, clientPath)
	setProp := func(name string, val any) error {
		return client.CallWithContext(ctx, propsIface+".Set", 0, clientIface, name, dbus.MakeVariant(val)).Err
	}

	accuracy := accuracyCity
	if opts.HighAccuracy {
		accuracy = accuracyExact
	}
	if err := setProp("DesktopId", g.DesktopID); err != nil {
		return geo.LatLng{}, fmt.Errorf("set DesktopId: %w", err)
	}
	if err := setProp("RequestedAccuracyLevel", accuracy); err != nil {
		return geo.LatLng{}, fmt.Errorf("set accuracy: %w", err)
	}

	if err := bus.AddMatchSignal(
		dbus.WithMatchObjectPath(clientPath),
		dbus.WithMatchInterface(clientIface),
		dbus.WithMatchMember("LocationUpdated"),
	); err != nil {
		return geo.LatLng{}, fmt.Errorf("subscribe: %w", err)
	}
	sigCh := make(chan *dbus.Signal, 4)
	bus.Signal(sigCh)
	defer bus.RemoveSignal(sigCh)

	if err := client.CallWithContext(ctx, clientIface+".Start", 0).Err; err != nil {
		return geo.LatLng{}, fmt.Errorf("start: %w", err)
	}
	defer client.Call(clientIface+".Stop", 0)

	// A cached fix may already be available.
	var current dbus.Variant
	if err := client.CallWithContext(ctx, propsIface+".Get", 0, clientIface, "Location").Store(&current); err == nil {
		if lp, ok := current.Value().(dbus.ObjectPath); ok && lp != "/" && lp != "" {
			if fix, err := readLocation(ctx, bus, lp); err == nil {
				return fix, nil
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return geo.LatLng{}, ctx.Err()
		case sig, ok := <-sigCh:
			if !ok {
				return geo.LatLng{}, errors.New("dbus signal channel closed")
			}
			if sig.Name != clientIface+".LocationUpdated" || len(sig.Body) < 2 {
				continue
			}
			lp, ok := sig.Body[1].(dbus.ObjectPath)
			if !ok {
				continue
			}
			fix, err := readLocation(ctx, bus, lp)
			if err != nil {
				continue
			}
			return fix, nil
		}
	}
}

func readLocation(ctx context.Context, bus *dbus.Conn, path dbus.ObjectPath) (geo.LatLng, error) {
	var props map[string]dbus.Variant
	if err := bus.Object(geoService, path).CallWithContext(ctx, propsIface+".GetAll", 0, locationIface).Store(&props); err != nil {
		return geo.LatLng{}, err
	}
	lat, okLat := props["Latitude"].Value().(float64)
	lng, okLng := props["Longitude"].Value().(float64)
	if !okLat || !okLng || (lat == 0 && lng == 0) {
		return geo.LatLng{}, errors.New("location object has no usable coordinates")
	}
	return geo.Pt(lat, lng), nil
}

func classifyDBus(ctx context.Context, err error) *Error {
	if ctx.Err() != nil {
		return &Error{Reason: ReasonTimeout, Err: err}
	}
	var dErr dbus.Error
	if errors.As(err, &dErr) && dErr.Name == accessDenied {
		return &Error{Reason: ReasonDenied, Err: err}
	}
	var dErrPtr *dbus.Error
	if errors.As(err, &dErrPtr) && dErrPtr.Name == accessDenied {
		return &Error{Reason: ReasonDenied, Err: err}
	}
	return classify(err)
}
