package geolocate

import (
	"context"
	"errors"
	"testing"

	"github.com/intelligrit/durian-map/internal/geo"
	"github.com/intelligrit/durian-map/internal/logging"
)

type fakeTarget struct {
	location  *geo.LatLng
	routeMode bool
	orchards  bool
	centered  []geo.LatLng
}

func (f *fakeTarget) SetUserLocation(p geo.LatLng) { f.location = &p }
func (f *fakeTarget) InRouteMode() bool           { return f.routeMode }
func (f *fakeTarget) CenterOnNearest(from geo.LatLng) bool {
	if !f.orchards {
		return false
	}
	f.centered = append(f.centered, from)
	return true
}

type scriptedLocator struct {
	fixes []geo.LatLng
	errs  []error
	opts  []Options
}

func (s *scriptedLocator) Locate(_ context.Context, opts Options) (geo.LatLng, error) {
	s.opts = append(s.opts, opts)
	i := len(s.opts) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return geo.LatLng{}, s.errs[i]
	}
	return s.fixes[i], nil
}

func TestAutoCenterLatchesOnFirstFix(t *testing.T) {
	target := &fakeTarget{orchards: true}
	loc := &scriptedLocator{fixes: []geo.LatLng{geo.Pt(13, 100), geo.Pt(14, 101)}}
	c := NewCoordinator(loc, target, nil, logging.Discard())

	ctx := context.Background()
	for _, kind := range []Kind{KindPassive, KindExplicit} {
		fix, err := c.Locate(ctx, kind)
		if err != nil {
			t.Fatalf("%s locate: %v", kind, err)
		}
		c.Accept(fix)
	}

	if len(target.centered) != 1 {
		t.Fatalf("expected exactly one auto-centre, got %d", len(target.centered))
	}
	if target.centered[0] != geo.Pt(13, 100) {
		t.Errorf("expected centring from first fix, got %+v", target.centered[0])
	}
	if *target.location != geo.Pt(14, 101) {
		t.Errorf("expected latest fix as user location, got %+v", *target.location)
	}
	if loc.opts[0].HighAccuracy {
		t.Errorf("expected passive options first, got %+v", loc.opts[0])
	}
	if !loc.opts[1].HighAccuracy {
		t.Errorf("expected high accuracy for explicit request, got %+v", loc.opts[1])
	}
}

func TestAutoCenterWaitsOutRouteMode(t *testing.T) {
	target := &fakeTarget{orchards: true, routeMode: true}
	c := NewCoordinator(nil, target, nil, logging.Discard())

	c.Accept(geo.Pt(13, 100))
	if c.AutoCentered() || len(target.centered) != 0 {
		t.Fatal("must not auto-centre in route mode")
	}

	target.routeMode = false
	c.Recheck()
	if !c.AutoCentered() || len(target.centered) != 1 {
		t.Fatal("expected auto-centre once route mode ends")
	}

	c.Accept(geo.Pt(14, 101))
	if len(target.centered) != 1 {
		t.Errorf("latch must hold, got %d centrings", len(target.centered))
	}
}

func TestAutoCenterWaitsForOrchards(t *testing.T) {
	target := &fakeTarget{}
	c := NewCoordinator(nil, target, nil, logging.Discard())

	c.Accept(geo.Pt(13, 100))
	if c.AutoCentered() {
		t.Fatal("must not latch without orchards")
	}
	target.orchards = true
	c.Recheck()
	if !c.AutoCentered() {
		t.Error("expected latch after orchards arrive")
	}
}

func TestLocateReportsReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"denied", ErrDenied, ErrDenied},
		{"timeout", context.DeadlineExceeded, ErrTimeout},
		{"other", errors.New("no bus"), ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &fakeTarget{orchards: true}
			c := NewCoordinator(&scriptedLocator{errs: []error{tt.err}}, target, nil, logging.Discard())
			_, err := c.Locate(context.Background(), KindExplicit)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			var gerr *Error
			if !errors.As(err, &gerr) {
				t.Errorf("expected *Error, got %T", err)
			}
			if target.location != nil || c.AutoCentered() {
				t.Error("Locate must not touch state")
			}
		})
	}
}

func TestNilLocatorIsUnavailable(t *testing.T) {
	c := NewCoordinator(nil, &fakeTarget{}, nil, logging.Discard())
	if _, err := c.Locate(context.Background(), KindExplicit); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestChainFallsThrough(t *testing.T) {
	fallback := geo.Pt(13.75, 100.5)
	chain := Chain{Static{}, Static{Position: &fallback}}
	fix, err := chain.Locate(context.Background(), ExplicitOptions)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if fix != fallback {
		t.Errorf("expected fallback fix, got %+v", fix)
	}

	if _, err := (Chain{Static{}}).Locate(context.Background(), ExplicitOptions); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestParseReason(t *testing.T) {
	if ParseReason("denied") != ReasonDenied {
		t.Error("expected denied")
	}
	if ParseReason("PERMISSION_DENIED") != ReasonUnavailable {
		t.Error("expected unknown names to map to unavailable")
	}
}
