package model

import "fmt"

// OrchardType is a service an orchard offers to visitors.
type OrchardType uint8

const (
	TypeSell OrchardType = iota
	TypeTour
	TypeCafe
	TypeStay

	orchardTypeCount
)

// OrchardTypeInfo is the presentation row for an OrchardType.
type OrchardTypeInfo struct {
	ID    string
	Label string
	Icon  string
}

var orchardTypeTable = [...]OrchardTypeInfo{
	TypeSell: {ID: "sell", Label: "ซื้อผลผลิต", Icon: "ShoppingBag"},
	TypeTour: {ID: "tour", Label: "เที่ยวชมสวน", Icon: "Map"},
	TypeCafe: {ID: "cafe", Label: "คาเฟ่", Icon: "Coffee"},
	TypeStay: {ID: "stay", Label: "ที่พักโฮมสเตย์", Icon: "Home"},
}

// Fails to compile unless orchardTypeTable has exactly one row per OrchardType.
var _ = [1]struct{}{}[len(orchardTypeTable)-int(orchardTypeCount)]

// OrchardTypes lists every OrchardType in declaration order.
func OrchardTypes() []OrchardType {
	out := make([]OrchardType, 0, orchardTypeCount)
	for t := OrchardType(0); t < orchardTypeCount; t++ {
		out = append(out, t)
	}
	return out
}

// Info returns the presentation row for t.
func (t OrchardType) Info() OrchardTypeInfo {
	return orchardTypeTable[t]
}

func (t OrchardType) String() string {
	if t >= orchardTypeCount {
		return fmt.Sprintf("OrchardType(%d)", uint8(t))
	}
	return orchardTypeTable[t].ID
}

// ParseOrchardType maps a backend identifier such as "cafe" to its OrchardType.
func ParseOrchardType(s string) (OrchardType, error) {
	for t := OrchardType(0); t < orchardTypeCount; t++ {
		if orchardTypeTable[t].ID == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown orchard type %q", s)
}

func (t OrchardType) MarshalText() ([]byte, error) {
	if t >= orchardTypeCount {
		return nil, fmt.Errorf("invalid orchard type %d", uint8(t))
	}
	return []byte(orchardTypeTable[t].ID), nil
}

func (t *OrchardType) UnmarshalText(b []byte) error {
	v, err := ParseOrchardType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// DurianStatus is the current harvest availability of an orchard.
type DurianStatus uint8

const (
	StatusAvailable DurianStatus = iota
	StatusLow
	StatusReserved
	StatusOut

	durianStatusCount
)

// StatusInfo is the presentation row for a DurianStatus: the badge label,
// the map marker colour and the marker glyph.
type StatusInfo struct {
	ID       string
	Label    string
	MapColor string
	Icon     string
}

var statusTable = [...]StatusInfo{
	StatusAvailable: {ID: "available", Label: "มีผลผลิตพร้อมขาย", MapColor: "#2F5233", Icon: "check"},
	StatusLow:       {ID: "low", Label: "ผลผลิตใกล้หมด", MapColor: "#F9C846", Icon: "alert"},
	StatusReserved:  {ID: "reserved", Label: "เปิดจองล่วงหน้า", MapColor: "#3b82f6", Icon: "clock"},
	StatusOut:       {ID: "out", Label: "ปิดฤดูกาลชั่วคราว", MapColor: "#64748b", Icon: "x"},
}

// Fails to compile unless statusTable has exactly one row per DurianStatus.
var _ = [1]struct{}{}[len(statusTable)-int(durianStatusCount)]

// RouteMarkerColor replaces the status colour for markers that are route stops.
const RouteMarkerColor = "#2563eb"

// DurianStatuses lists every DurianStatus in declaration order.
func DurianStatuses() []DurianStatus {
	out := make([]DurianStatus, 0, durianStatusCount)
	for s := DurianStatus(0); s < durianStatusCount; s++ {
		out = append(out, s)
	}
	return out
}

// Info returns the presentation row for s.
func (s DurianStatus) Info() StatusInfo {
	return statusTable[s]
}

func (s DurianStatus) String() string {
	if s >= durianStatusCount {
		return fmt.Sprintf("DurianStatus(%d)", uint8(s))
	}
	return statusTable[s].ID
}

// ParseDurianStatus maps a backend identifier such as "low" to its DurianStatus.
func ParseDurianStatus(s string) (DurianStatus, error) {
	for st := DurianStatus(0); st < durianStatusCount; st++ {
		if statusTable[st].ID == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown durian status %q", s)
}

func (s DurianStatus) MarshalText() ([]byte, error) {
	if s >= durianStatusCount {
		return nil, fmt.Errorf("invalid durian status %d", uint8(s))
	}
	return []byte(statusTable[s].ID), nil
}

func (s *DurianStatus) UnmarshalText(b []byte) error {
	v, err := ParseDurianStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
