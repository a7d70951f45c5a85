package kdp

import (
	"fmt"
	"math"
	"strconv"

	"github.com/obsidianstack/kdp-exporter/exporter/internal/soap"
)

// APIVersion is the get_api_version result.
type APIVersion struct {
	Version string
	Mode    string // client | admin
}

// Resource is one client_resource_list record.
type Resource struct {
	ID                uint32
	Name              string
	GroupID           uint32
	Group             string
	InternalIP        string
	ExternalIP        string
	RedirectionMethod string // bgp | dns
}

// ProtocolPoint is the protocol split of clean traffic for one minute.
type ProtocolPoint struct {
	Timestamp string
	Shares    []ProtocolShare
}

// ProtocolShare is one protocol's share of a ProtocolPoint.
type ProtocolShare struct {
	Protocol string
	Value    float64
}

// GeoRatio is the share of source IPs from one country over the last five minutes.
type GeoRatio struct {
	Country string
	Value   float64
}

// IPBlockCount is the number of new IP blocks in one minute.
type IPBlockCount struct {
	Timestamp   string
	NewIPBlocks float64
}

// ParameterDefinition describes one measured parameter instance.
// ShortName is the key the classifier dispatches on.
type ParameterDefinition struct {
	ID          uint32
	ShortName   string
	Description string
	Units       string
	Direction   int // 1 up, -1 down
	ParentID    uint32
	CheckID     uint32
	IsFavourite string
}

// DataPoint is one value of a measured parameter. UnitCheckID references
// ParameterDefinition.ID. Value is nil when the service has no reading;
// Threshold, Mult1 and Mult2 are NaN when absent.
type DataPoint struct {
	UnitCheckID uint32
	Timestamp   string
	Type        int // 0 dirty, 2 clean, TypeUnknown when absent
	Value       *float64
	Threshold   float64
	Mult1       float64
	Mult2       float64
}

// TypeUnknown is the DataPoint.Type of a point reported without a type.
const TypeUnknown = -1

// Anomaly is one get_resource_anomaly_list record.
type Anomaly struct {
	ID                 uint32
	Color              int // 0 green, 1 yellow, 2 red
	Start              string
	Last               string
	State              string // active | recent
	ParameterID        uint32
	ParameterTypeID    uint32
	ParameterShortName string
	ParameterUnits     string
	ParameterDirection int
	MaxPointTimestamp  string
	MaxPointValue      float64
	MaxPointThreshold  float64
	MaxPointPercentage float64
}

// Attack is one attack_active_list record. The peak values are NaN when absent.
type Attack struct {
	ID           uint32
	Type         string
	Start        string
	ResourceID   uint32
	ResourceName string
	GroupID      uint32
	GroupName    string
	MaxBPS       float64
	MaxPPS       float64
	MaxRPS       float64
}

// reader maps the fields of one record node. The first failure sticks and
// later reads return zero values.
type reader struct {
	n   *soap.Node
	err error
}

func (r *reader) field(name string, required bool) (string, bool) {
	if r.err != nil {
		return "", false
	}
	c := r.n.Child(name)
	if c == nil || c.Nil() {
		if required {
			r.err = &ShapeError{Field: name}
		}
		return "", false
	}
	return c.Value(), true
}

func (r *reader) str(name string) string {
	v, _ := r.field(name, true)
	return v
}

func (r *reader) optStr(name string) string {
	v, _ := r.field(name, false)
	return v
}

func (r *reader) unsigned(name string, required bool) uint32 {
	v, ok := r.field(name, required)
	if !ok || (v == "" && !required) {
		return 0
	}
	n, err := parseUint(v)
	if err != nil {
		r.err = &ShapeError{Field: name, Err: err}
	}
	return n
}

func (r *reader) integer(name string, required bool) int {
	v, ok := r.field(name, required)
	if !ok || (v == "" && !required) {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) {
		r.err = &ShapeError{Field: name, Err: fmt.Errorf("not an integer: %q", v)}
		return 0
	}
	return int(f)
}

// integerOr returns def for an absent, nil or empty field.
func (r *reader) integerOr(name string, def int) int {
	if v, ok := r.field(name, false); !ok || v == "" {
		return def
	}
	return r.integer(name, false)
}

func (r *reader) float(name string) float64 {
	v, ok := r.field(name, true)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.err = &ShapeError{Field: name, Err: err}
	}
	return f
}

// optFloat returns nil for an absent, nil or empty field.
func (r *reader) optFloat(name string) *float64 {
	v, ok := r.field(name, false)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.err = &ShapeError{Field: name, Err: err}
		return nil
	}
	return &f
}

func (r *reader) floatOrNaN(name string) float64 {
	if f := r.optFloat(name); f != nil {
		return *f
	}
	return math.NaN()
}

func parseUint(v string) (uint32, error) {
	if n, err := strconv.ParseUint(v, 10, 32); err == nil {
		return uint32(n), nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an unsigned integer: %q", v)
	}
	return uint32(f), nil
}

// decodeList maps every child of a list return value with fn.
func decodeList[T any](ret *soap.Node, fn func(*reader) T) ([]T, error) {
	out := make([]T, 0, len(ret.Children))
	for _, item := range ret.Children {
		r := &reader{n: item}
		v := fn(r)
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodePing(ret *soap.Node) (bool, error) {
	if v := ret.Value(); v != "1" {
		return false, fmt.Errorf("%w: ping returned %q", ErrUnavailable, v)
	}
	return true, nil
}

func decodeAPIVersion(ret *soap.Node) (APIVersion, error) {
	r := &reader{n: ret}
	v := APIVersion{Version: r.str("version"), Mode: r.str("mode")}
	return v, r.err
}

func decodeResources(ret *soap.Node) ([]Resource, error) {
	return decodeList(ret, func(r *reader) Resource {
		return Resource{
			ID:                r.unsigned("id", true),
			Name:              r.str("name"),
			GroupID:           r.unsigned("group_id", false),
			Group:             r.optStr("group"),
			InternalIP:        r.optStr("internal_ip"),
			ExternalIP:        r.optStr("external_ip"),
			RedirectionMethod: r.optStr("redirection_method_name"),
		}
	})
}

func decodeProtocolRatio(ret *soap.Node) ([]ProtocolPoint, error) {
	return decodeList(ret, func(r *reader) ProtocolPoint {
		p := ProtocolPoint{Timestamp: r.optStr("timestamp")}
		if r.err != nil {
			return p
		}
		if elems := r.n.Child("elements"); elems != nil {
			shares, err := decodeList(elems, func(er *reader) ProtocolShare {
				return ProtocolShare{Protocol: er.str("protocol"), Value: er.float("value")}
			})
			if err != nil {
				r.err = err
			}
			p.Shares = shares
		}
		return p
	})
}

func decodeGeoRatio(ret *soap.Node) ([]GeoRatio, error) {
	return decodeList(ret, func(r *reader) GeoRatio {
		return GeoRatio{Country: r.str("country"), Value: r.float("value")}
	})
}

func decodeIPBlocks(ret *soap.Node) ([]IPBlockCount, error) {
	return decodeList(ret, func(r *reader) IPBlockCount {
		return IPBlockCount{Timestamp: r.optStr("timestamp"), NewIPBlocks: r.float("new_ip_blocks")}
	})
}

func decodeParameterList(ret *soap.Node) ([]ParameterDefinition, error) {
	return decodeList(ret, func(r *reader) ParameterDefinition {
		return ParameterDefinition{
			ID:          r.unsigned("id", true),
			ShortName:   r.str("short_name"),
			Description: r.optStr("description"),
			Units:       r.optStr("unit_type_name"),
			Direction:   r.integer("direction", true),
			ParentID:    r.unsigned("parent_id", false),
			CheckID:     r.unsigned("check_id", false),
			IsFavourite: r.optStr("is_favourite"),
		}
	})
}

func decodeParameterData(ret *soap.Node) ([]DataPoint, error) {
	return decodeList(ret, func(r *reader) DataPoint {
		return DataPoint{
			UnitCheckID: r.unsigned("unit_check_id", true),
			Timestamp:   r.optStr("timestamp"),
			Type:        r.integerOr("type", TypeUnknown),
			Value:       r.optFloat("value"),
			Threshold:   r.floatOrNaN("threshold"),
			Mult1:       r.floatOrNaN("mult1"),
			Mult2:       r.floatOrNaN("mult2"),
		}
	})
}

func decodeAnomalies(ret *soap.Node) ([]Anomaly, error) {
	return decodeList(ret, func(r *reader) Anomaly {
		return Anomaly{
			ID:                 r.unsigned("id", false),
			Color:              r.integer("color", true),
			Start:              r.optStr("start"),
			Last:               r.optStr("last"),
			State:              r.str("state"),
			ParameterID:        r.unsigned("measured_parameter_id", false),
			ParameterTypeID:    r.unsigned("measured_parameter_type_id", false),
			ParameterShortName: r.str("measured_parameter_short_name"),
			ParameterUnits:     r.optStr("measured_parameter_units"),
			ParameterDirection: r.integer("measured_parameter_direction", false),
			MaxPointTimestamp:  r.optStr("max_point_timestamp"),
			MaxPointValue:      r.float("max_point_value"),
			MaxPointThreshold:  r.floatOrNaN("max_point_threshold"),
			MaxPointPercentage: r.float("max_point_percentage"),
		}
	})
}

func decodeAttacks(ret *soap.Node) ([]Attack, error) {
	return decodeList(ret, func(r *reader) Attack {
		return Attack{
			ID:           r.unsigned("attack_id", true),
			Type:         r.str("attack_type"),
			Start:        r.optStr("start"),
			ResourceID:   r.unsigned("resource_id", true),
			ResourceName: r.optStr("resource_name"),
			GroupID:      r.unsigned("group_id", false),
			GroupName:    r.optStr("group_name"),
			MaxBPS:       r.floatOrNaN("max_point_value_bps"),
			MaxPPS:       r.floatOrNaN("max_point_value_pps"),
			MaxRPS:       r.floatOrNaN("max_point_value_rps"),
		}
	})
}
