package catalog

// Metric identifies one entry of the catalog.
type Metric int

// Definition describes one output series.
type Definition struct {
	Name   string
	Help   string
	Labels []string
}

// definitions is filled in declaration order by the var block below; that
// order is also the rendering order.
var definitions []Definition

func define(name, help string, labels ...string) Metric {
	definitions = append(definitions, Definition{Name: name, Help: help, Labels: labels})
	return Metric(len(definitions) - 1)
}

// ParameterKind binds a measured-parameter short name to its five series.
type ParameterKind struct {
	ShortName string
	Direction Metric
	Threshold Metric
	Mult1     Metric
	Mult2     Metric
	Value     Metric
}

// parameter defines the five series of one measured-parameter kind. They are
// labeled by resource name and traffic type (dirty, clean or N/A).
func parameter(shortName, prefix, subject, unit string) ParameterKind {
	return ParameterKind{
		ShortName: shortName,
		Direction: define(prefix+"_direction", subject+". Direction.", "resource", "type"),
		Threshold: define(prefix+"_threshold", subject+". Threshold.", "resource", "type"),
		Mult1:     define(prefix+"_mult1", subject+". Mult1.", "resource", "type"),
		Mult2:     define(prefix+"_mult2", subject+". Mult2.", "resource", "type"),
		Value:     define(prefix, subject+". "+unit+".", "resource", "type"),
	}
}

var (
	APIVersion = define("kdp_api_version",
		"Version of KDP API",
		"name", "version", "mode")

	ClientResource = define("kdp_client_resource",
		"Client resources",
		"name", "group", "internal_ip", "external_ip", "redirection_method")

	// Parameters is the closed set of measured-parameter kinds the classifier
	// understands. Any other short name is dropped.
	Parameters = []ParameterKind{
		parameter("Number of IPs", "kdp_ip_rate", "Number of IP addresses", "IPs/min"),
		parameter("SYN packets", "kdp_syn_packets", "Number of incoming TCP packets with SYN flag", "pps"),
		parameter("SYN rating", "kdp_syn_rating", "SYN rating", "times"),
		parameter("Incoming traffic in bps", "kdp_incoming_traffic_bps", "Incoming traffic speed in bits per second", "bps"),
		parameter("Incoming traffic in pps", "kdp_incoming_traffic_pps", "Incoming traffic speed in packets per second", "pps"),
		parameter("Outgoing traffic in bps", "kdp_outgoing_traffic_bps", "Outgoing traffic speed in bits per second", "bps"),
		parameter("Outgoing traffic in pps", "kdp_outgoing_traffic_pps", "Outgoing traffic speed in packets per second", "pps"),
		parameter("Incoming ICMP traffic", "kdp_incoming_icmp_traffic_pps", "Incoming ICMP traffic speed in packets per second", "pps"),
		parameter("Incoming TCP traffic", "kdp_incoming_tcp_traffic_pps", "Incoming TCP traffic speed in packets per second", "pps"),
		parameter("HTTP. Requests", "kdp_http_hits_rate", "HTTP. Number of requests", "hits/sec"),
	}

	GeoRatio = define("kdp_resource_geo_ratio_prc",
		"Requests by Country. Ratio.",
		"name", "country")

	NewIPBlocks = define("kdp_resource_new_ip_blocks_count",
		"Count of new IP blocked. Count.",
		"name")

	AnomalyMaxValue = define("kdp_resource_anomaly_max_value",
		"Anomaly. Value of measured parameter in a max point.",
		"name", "parameter", "state", "color")

	AnomalyMaxPercent = define("kdp_resource_anomaly_max_percent",
		"Anomaly. Percent of deviation in measured parameter.",
		"name", "parameter", "state", "color")

	AttackIncomingBPS = define("kdp_resource_attack_incoming_traffic_bps",
		"Anomaly. Incoming traffic during anomaly. bps.",
		"name", "attack_id", "attack_type")

	AttackIncomingPPS = define("kdp_resource_attack_incoming_traffic_pps",
		"Anomaly. Incoming traffic during anomaly. pps.",
		"name", "attack_id", "attack_type")

	AttackHTTPRate = define("kdp_resource_attack_http_rate",
		"Anomaly. HTTP requests rate during anomaly. hits/s.",
		"name", "attack_id", "attack_type")
)

var parametersByShortName = indexParameters(Parameters)

func indexParameters(kinds []ParameterKind) map[string]ParameterKind {
	m := make(map[string]ParameterKind, len(kinds))
	for _, k := range kinds {
		m[k.ShortName] = k
	}
	return m
}

// ParameterByShortName returns the kind registered for a measured-parameter
// short name. The match is exact.
func ParameterByShortName(name string) (ParameterKind, bool) {
	k, ok := parametersByShortName[name]
	return k, ok
}

// Definition returns the catalog entry of m.
func (m Metric) Definition() Definition { return definitions[m] }

// String returns the series name.
func (m Metric) String() string { return definitions[m].Name }

// Definitions returns every catalog entry in rendering order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}
