package importer

import "fmt"

// tables lists DDL of every table the importer reads, in dependency order.
// Column types are the subset understood by both PostgreSQL and SQLite.
var tables = []struct{ name, columns string }{
	{"transport_type", "id BIGINT PRIMARY KEY, parent_id BIGINT, ttname TEXT, need_parking BOOLEAN, need_station BOOLEAN, need_return BOOLEAN, need_network BOOLEAN"},
	{"road_type", "id INTEGER PRIMARY KEY, rtname TEXT"},
	{"road_node", "id BIGINT PRIMARY KEY, junction BOOLEAN, bifurcation BOOLEAN, x DOUBLE PRECISION, y DOUBLE PRECISION, z DOUBLE PRECISION"},
	{"road_section", "id BIGINT PRIMARY KEY, road_type INTEGER, node_from BIGINT, node_to BIGINT, transport_type_ft BIGINT, transport_type_tf BIGINT, " +
		"length DOUBLE PRECISION, car_speed_limit DOUBLE PRECISION, car_average_speed DOUBLE PRECISION, bus_average_speed DOUBLE PRECISION, " +
		"road_name TEXT, address_left_side TEXT, address_right_side TEXT, lane INTEGER, " +
		"roundabout BOOLEAN, bridge BOOLEAN, tunnel BOOLEAN, ramp BOOLEAN, tollway BOOLEAN"},
	{"road_restriction", "id BIGINT PRIMARY KEY, sections TEXT"},
	{"road_restriction_time_penalty", "restriction_id BIGINT, period_id INTEGER, traffic_rules BIGINT, time_value DOUBLE PRECISION"},
	{"pt_network", "id BIGINT PRIMARY KEY, pnname TEXT, provided_transport_types BIGINT"},
	{"pt_stop", "id BIGINT PRIMARY KEY, psname TEXT, location_type INTEGER, parent_station BIGINT, road_section_id BIGINT, zone_id INTEGER, " +
		"abscissa_road_section DOUBLE PRECISION, x DOUBLE PRECISION, y DOUBLE PRECISION, z DOUBLE PRECISION"},
	{"pt_section", "network_id BIGINT, stop_from BIGINT, stop_to BIGINT, length DOUBLE PRECISION"},
	{"poi", "id BIGINT PRIMARY KEY, poi_type INTEGER, pname TEXT, parking_transport_type BIGINT, road_section_id BIGINT, " +
		"abscissa_road_section DOUBLE PRECISION, x DOUBLE PRECISION, y DOUBLE PRECISION, z DOUBLE PRECISION"},
	{"pt_calendar", "service_id BIGINT PRIMARY KEY, monday BOOLEAN, tuesday BOOLEAN, wednesday BOOLEAN, thursday BOOLEAN, friday BOOLEAN, " +
		"saturday BOOLEAN, sunday BOOLEAN, start_date TEXT, end_date TEXT"},
	{"pt_calendar_date", "service_id BIGINT, calendar_date TEXT, exception_type INTEGER"},
	{"pt_route", "id BIGINT PRIMARY KEY, network_id BIGINT, short_name TEXT, long_name TEXT, route_type INTEGER"},
	{"pt_trip", "id BIGINT PRIMARY KEY, route_id BIGINT, service_id BIGINT, short_name TEXT"},
	{"pt_stop_time", "trip_id BIGINT, stop_id BIGINT, stop_sequence INTEGER, arrival_time TEXT, departure_time TEXT, stop_headsign TEXT, " +
		"pickup_type INTEGER, drop_off_type INTEGER, shape_dist_traveled DOUBLE PRECISION"},
	{"pt_frequency", "trip_id BIGINT, start_time TEXT, end_time TEXT, headway_secs INTEGER"},
	{"pt_transfer", "from_stop_id BIGINT, to_stop_id BIGINT, transfer_type INTEGER, min_transfer_time INTEGER"},
}

// Schema returns statements creating every table in the given schema, or
// unqualified when schema is empty.
func Schema(schema string) []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		out = append(out, fmt.Sprintf("CREATE TABLE %s (%s)", qualify(schema, t.name), t.columns))
	}
	return out
}

// Table returns the qualified name of a table.
func Table(schema, name string) string {
	return qualify(schema, name)
}

func qualify(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}
