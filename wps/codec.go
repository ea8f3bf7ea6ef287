package wps

import (
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/beevik/etree"

	"tempus/common"
	"tempus/multimodal"
	"tempus/plugin"
	"tempus/road"
	"tempus/routing"
	"tempus/xmlutil"
)

const dateTimeLayout = "2006-01-02T15:04:05"

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatID(id common.DBID) string {
	return strconv.FormatInt(id, 10)
}

func formatBool(b bool) string {
	return strconv.FormatBool(b)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidParameter)...)
}

func intAttr(e *etree.Element, key string) (int64, bool, error) {
	a := e.SelectAttr(key)
	if a == nil {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(a.Value, 10, 64)
	if err != nil {
		return 0, true, invalid("%s: attribute %s=%q", xmlutil.Path(e), key, a.Value)
	}
	return v, true, nil
}

func textInt(e *etree.Element) (int64, error) {
	v, err := strconv.ParseInt(xmlutil.Text(e), 10, 64)
	if err != nil {
		return 0, invalid("%s: %q is not an integer", xmlutil.Path(e), xmlutil.Text(e))
	}
	return v, nil
}

// location resolves a point given either by road node identifier or by
// coordinates, the nearest road node is used for the latter.
func location(e *etree.Element, g *multimodal.Graph) (road.Vertex, error) {
	id, ok, err := intAttr(e, "vertex")
	if err != nil {
		return road.NullVertex, err
	}
	if ok {
		v, err := g.Road().VertexFromID(id)
		if err != nil {
			return road.NullVertex, invalid("%s: road node %d: %v", xmlutil.Path(e), id, err)
		}
		return v, nil
	}
	xs, ys := e.SelectAttrValue("x", ""), e.SelectAttrValue("y", "")
	if xs == "" || ys == "" {
		return road.NullVertex, invalid("%s: vertex or x and y expected", xmlutil.Path(e))
	}
	x, errx := strconv.ParseFloat(xs, 64)
	y, erry := strconv.ParseFloat(ys, 64)
	if errx != nil || erry != nil {
		return road.NullVertex, invalid("%s: bad coordinates (%q, %q)", xmlutil.Path(e), xs, ys)
	}
	return nearestVertex(g.Road(), common.Point2D{X: x, Y: y})
}

func nearestVertex(rg *road.Graph, p common.Point2D) (road.Vertex, error) {
	best, bestDist := road.NullVertex, math.Inf(1)
	for _, v := range rg.Vertices() {
		if d := common.Distance2(rg.Node(v).Coordinates.Point2D(), p); d < bestDist {
			best, bestDist = v, d
		}
	}
	if best == road.NullVertex {
		return best, invalid("no road node near (%g, %g)", p.X, p.Y)
	}
	return best, nil
}

func constraint(e *etree.Element) (routing.TimeConstraint, error) {
	if e == nil {
		return routing.TimeConstraint{}, nil
	}
	t, _, err := intAttr(e, "type")
	if err != nil {
		return routing.TimeConstraint{}, err
	}
	if t < int64(routing.NoConstraint) || t > int64(routing.ConstraintAfter) {
		return routing.TimeConstraint{}, invalid("%s: unknown constraint type %d", xmlutil.Path(e), t)
	}
	dt, err := xmlutil.ParseDateTime(e.SelectAttrValue("date_time", ""))
	if err != nil {
		return routing.TimeConstraint{}, invalid("%s: bad date_time: %v", xmlutil.Path(e), err)
	}
	return routing.TimeConstraint{Type: routing.TimeConstraintType(t), DateTime: dt}, nil
}

// RequestFromXML reads a request element, node identifiers are resolved on
// the road graph of g.
func RequestFromXML(e *etree.Element, g *multimodal.Graph) (*routing.Request, error) {
	origin := e.SelectElement("origin")
	if origin == nil {
		return nil, invalid("%s: no origin", xmlutil.Path(e))
	}
	loc, err := location(origin, g)
	if err != nil {
		return nil, err
	}
	dep, err := constraint(e.SelectElement("departure_constraint"))
	if err != nil {
		return nil, err
	}
	r := &routing.Request{
		Steps:           []routing.Step{{Location: loc, Constraint: dep}},
		ParkingLocation: road.NullVertex,
	}
	if pl := e.SelectElement("parking_location"); pl != nil {
		if r.ParkingLocation, err = location(pl, g); err != nil {
			return nil, err
		}
	}
	for _, c := range e.SelectElements("optimizing_criterion") {
		v, err := textInt(c)
		if err != nil {
			return nil, err
		}
		r.OptimizingCriteria = append(r.OptimizingCriteria, common.CostID(v))
	}
	for _, n := range e.SelectElements("allowed_network") {
		v, err := textInt(n)
		if err != nil {
			return nil, err
		}
		r.AllowedNetworks = append(r.AllowedNetworks, v)
	}
	for _, m := range e.SelectElements("allowed_mode") {
		v, err := textInt(m)
		if err != nil {
			return nil, err
		}
		r.AllowedTransportTypes |= v
	}
	for _, st := range e.SelectElements("step") {
		dest := st.SelectElement("destination")
		if dest == nil {
			return nil, invalid("%s: no destination", xmlutil.Path(st))
		}
		var s routing.Step
		if s.Location, err = location(dest, g); err != nil {
			return nil, err
		}
		if s.Constraint, err = constraint(st.SelectElement("constraint")); err != nil {
			return nil, err
		}
		s.PrivateVehicleAtDestination, _ = strconv.ParseBool(st.SelectAttrValue("private_vehicule_at_destination", "false"))
		r.Steps = append(r.Steps, s)
	}
	if err := r.CheckConsistency(); err != nil {
		return nil, invalid("%v", err)
	}
	return r, nil
}

func constraintElement(tag string, c routing.TimeConstraint) *etree.Element {
	e := etree.NewElement(tag)
	e.CreateAttr("type", strconv.Itoa(int(c.Type)))
	e.CreateAttr("date_time", c.DateTime.Format(dateTimeLayout))
	return e
}

func pointElement(tag string, v road.Vertex, g *multimodal.Graph) *etree.Element {
	e := etree.NewElement(tag)
	e.CreateAttr("vertex", formatID(g.Road().Node(v).DBID))
	return e
}

// RequestToXML writes what RequestFromXML reads.
func RequestToXML(r *routing.Request, g *multimodal.Graph) *etree.Element {
	e := etree.NewElement("request")
	e.AddChild(pointElement("origin", r.Steps[0].Location, g))
	if c := r.Steps[0].Constraint; c.Type != routing.NoConstraint {
		e.AddChild(constraintElement("departure_constraint", c))
	}
	if r.ParkingLocation != road.NullVertex {
		e.AddChild(pointElement("parking_location", r.ParkingLocation, g))
	}
	for _, c := range r.OptimizingCriteria {
		e.CreateElement("optimizing_criterion").SetText(strconv.Itoa(int(c)))
	}
	for _, n := range r.AllowedNetworks {
		e.CreateElement("allowed_network").SetText(formatID(n))
	}
	for _, s := range r.Steps[1:] {
		st := e.CreateElement("step")
		st.CreateAttr("private_vehicule_at_destination", formatBool(s.PrivateVehicleAtDestination))
		st.AddChild(pointElement("destination", s.Location, g))
		if s.Constraint.Type != routing.NoConstraint {
			st.AddChild(constraintElement("constraint", s.Constraint))
		}
	}
	if r.AllowedTransportTypes != 0 {
		for bit := common.DBID(1); bit > 0 && bit <= r.AllowedTransportTypes; bit <<= 1 {
			if r.AllowedTransportTypes&bit != 0 {
				e.CreateElement("allowed_mode").SetText(formatID(bit))
			}
		}
	}
	return e
}

func optionValue(e *etree.Element) (any, error) {
	v := e.SelectAttrValue("value", "")
	switch e.Tag {
	case "bool_value":
		switch v {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
	case "int_value":
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, nil
		}
	case "float_value":
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, nil
		}
	case "string_value":
		return v, nil
	}
	return nil, invalid("%s: bad value %q", xmlutil.Path(e), v)
}

// ApplyOptions resets options to their defaults and sets those listed in e.
func ApplyOptions(o *plugin.Options, e *etree.Element) error {
	o.Reset()
	if e == nil {
		return nil
	}
	for _, opt := range e.SelectElements("option") {
		name := opt.SelectAttrValue("name", "")
		kids := opt.ChildElements()
		if len(kids) != 1 {
			return invalid("option %q: one value expected", name)
		}
		v, err := optionValue(kids[0])
		if err != nil {
			return err
		}
		// integers are accepted for float options
		if d, ok := o.Description(name); ok && d.Type == plugin.OptionFloat {
			if n, ok := v.(int64); ok {
				v = float64(n)
			}
		}
		if err := o.Set(name, v); err != nil {
			return invalid("%v", err)
		}
	}
	return nil
}

func valueElement(v any) *etree.Element {
	var e *etree.Element
	switch x := v.(type) {
	case bool:
		e = etree.NewElement("bool_value")
		e.CreateAttr("value", formatBool(x))
	case int64:
		e = etree.NewElement("int_value")
		e.CreateAttr("value", strconv.FormatInt(x, 10))
	case float64:
		e = etree.NewElement("float_value")
		e.CreateAttr("value", formatFloat(x))
	default:
		e = etree.NewElement("string_value")
		e.CreateAttr("value", fmt.Sprint(x))
	}
	return e
}

// OptionsToXML writes option values the way ApplyOptions reads them.
func OptionsToXML(values map[string]any) *etree.Element {
	e := etree.NewElement("options")
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		opt := e.CreateElement("option")
		opt.CreateAttr("name", n)
		opt.AddChild(valueElement(values[n]))
	}
	return e
}

// PluginsToXML describes plugins with their options and capabilities.
func PluginsToXML(plugins []plugin.Plugin) *etree.Element {
	e := etree.NewElement("plugins")
	for _, p := range plugins {
		pe := e.CreateElement("plugin")
		pe.CreateAttr("name", p.Name())
		o := p.Options()
		for _, name := range o.Names() {
			d, _ := o.Description(name)
			oe := pe.CreateElement("option")
			oe.CreateAttr("name", name)
			oe.CreateAttr("type", d.Type.String())
			oe.CreateAttr("description", d.Description)
			oe.CreateElement("default_value").AddChild(valueElement(d.Default))
		}
		caps := p.Capabilities()
		for _, c := range caps.OptimizationCriteria {
			pe.CreateElement("supported_criterion").SetText(strconv.Itoa(int(c)))
		}
		pe.CreateElement("intermediate_steps").SetText(formatBool(caps.IntermediateSteps))
		pe.CreateElement("depart_after").SetText(formatBool(caps.DepartAfter))
		pe.CreateElement("arrive_before").SetText(formatBool(caps.ArriveBefore))
	}
	return e
}

func TransportModesToXML(tt common.TransportTypes) *etree.Element {
	e := etree.NewElement("transport_modes")
	for _, id := range tt.IDs() {
		t := tt[id]
		m := e.CreateElement("transport_mode")
		m.CreateAttr("id", formatID(t.ID))
		m.CreateAttr("parent_id", formatID(t.ParentID))
		m.CreateAttr("name", t.Name)
		m.CreateAttr("is_public_transport", formatBool(t.NeedNetwork))
		m.CreateAttr("need_parking", formatBool(t.NeedParking))
		m.CreateAttr("is_shared", formatBool(t.NeedStation))
		m.CreateAttr("must_be_returned", formatBool(t.NeedReturn))
	}
	return e
}

func TransportNetworksToXML(g *multimodal.Graph) *etree.Element {
	e := etree.NewElement("transport_networks")
	for _, id := range g.NetworkIDs() {
		n, _ := g.Network(id)
		ne := e.CreateElement("transport_network")
		ne.CreateAttr("id", formatID(n.DBID))
		ne.CreateAttr("name", n.Name)
		ne.CreateAttr("provided_transport_types", formatID(n.ProvidedTransportTypes))
	}
	return e
}

// MetricsToXML writes metrics in natural order of their names.
func MetricsToXML(m plugin.Metrics) *etree.Element {
	e := etree.NewElement("metrics")
	for _, name := range m.Names() {
		v, err := m.MetricToString(name)
		if err != nil {
			continue
		}
		me := e.CreateElement("metric")
		me.CreateAttr("name", name)
		me.CreateAttr("value", v)
	}
	return e
}

func costElements(parent *etree.Element, costs common.Costs) {
	ids := make([]common.CostID, 0, len(costs))
	for id := range costs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		c := parent.CreateElement("cost")
		c.CreateAttr("type", strconv.Itoa(int(id)))
		c.CreateAttr("value", formatFloat(costs[id]))
	}
}

// names resolves identifiers of a roadmap into what users read.
type names struct {
	g *multimodal.Graph
}

func (n names) network(id common.DBID) string {
	if net, ok := n.g.Network(id); ok {
		return net.Name
	}
	return ""
}

func (n names) stop(network, id common.DBID) string {
	pg, ok := n.g.PublicTransport(network)
	if !ok {
		return ""
	}
	v, err := pg.VertexFromID(id)
	if err != nil {
		return ""
	}
	return pg.Stop(v).Name
}

func (n names) route(network, trip common.DBID) string {
	pg, ok := n.g.PublicTransport(network)
	if !ok || pg.Timetable == nil {
		return ""
	}
	t, ok := pg.Timetable.Trips[trip]
	if !ok {
		return ""
	}
	if r, ok := pg.Timetable.Routes[t.Route]; ok {
		return r.ShortName
	}
	return ""
}

func (n names) vertex(v multimodal.Vertex) (network, stop, poi string) {
	switch v.Type {
	case multimodal.VertexPublicTransport:
		if s, ok := n.g.Stop(v); ok {
			stop = s.Name
		}
		network = n.network(v.Network)
	case multimodal.VertexPOI:
		if p, ok := n.g.POI(v.POI); ok {
			poi = p.Name
		}
	}
	return
}

// ResultToXML writes roadmaps. Public transport times are minutes since
// the start of the roadmap.
func ResultToXML(res routing.Result, r *routing.Request, g *multimodal.Graph) *etree.Element {
	n := names{g: g}
	e := etree.NewElement("results")
	for _, rm := range res {
		re := e.CreateElement("result")
		var elapsed float64
		for _, step := range rm.Steps {
			var se *etree.Element
			switch s := step.(type) {
			case *routing.RoadStep:
				se = re.CreateElement("road_step")
				se.CreateAttr("road", s.RoadName)
				se.CreateAttr("end_movement", strconv.Itoa(int(s.EndMovement)))
				se.CreateAttr("transport_mode", formatID(s.TransportType))
				se.CreateAttr("distance_km", formatFloat(s.DistanceKm))
			case *routing.PublicTransportStep:
				duration, _ := s.Cost(common.CostDuration)
				departure := elapsed + s.Wait
				se = re.CreateElement("public_transport_step")
				se.CreateAttr("network", n.network(s.Network))
				se.CreateAttr("departure_stop", n.stop(s.Network, s.DepartureStop))
				se.CreateAttr("arrival_stop", n.stop(s.Network, s.ArrivalStop))
				se.CreateAttr("route", n.route(s.Network, s.TripID))
				se.CreateAttr("trip_id", formatID(s.TripID))
				se.CreateAttr("transport_mode", formatID(s.TransportType))
				se.CreateAttr("departure_time", formatFloat(departure))
				se.CreateAttr("arrival_time", formatFloat(departure+duration))
				se.CreateAttr("wait_time", formatFloat(s.Wait))
				elapsed += s.Wait
			case *routing.GenericStep:
				ct := s.Edge.ConnectionType()
				switch ct {
				case multimodal.Road2Transport, multimodal.Transport2Road, multimodal.Transport2Transport:
					end := s.Edge.Target
					if end.Type != multimodal.VertexPublicTransport {
						end = s.Edge.Source
					}
					network, stop, _ := n.vertex(end)
					se = re.CreateElement("road_transport_step")
					se.CreateAttr("type", strconv.Itoa(int(ct)))
					se.CreateAttr("road", s.RoadName)
					se.CreateAttr("network", network)
					se.CreateAttr("stop", stop)
				default:
					end := s.Edge.Target
					if end.Type != multimodal.VertexPOI {
						end = s.Edge.Source
					}
					_, _, poi := n.vertex(end)
					se = re.CreateElement("transfer_step")
					se.CreateAttr("type", strconv.Itoa(int(ct)))
					se.CreateAttr("road", s.RoadName)
					se.CreateAttr("poi", poi)
				}
				se.CreateAttr("transport_mode", formatID(s.TransportType))
				se.CreateAttr("final_mode", formatID(s.FinalMode))
			default:
				continue
			}
			if wkb := stepWKB(step); len(wkb) > 0 {
				se.CreateAttr("wkb", hex.EncodeToString(wkb))
			}
			costElements(se, step.Costs())
			if d, ok := step.Cost(common.CostDuration); ok {
				elapsed += d
			}
		}
		costElements(re, rm.TotalCosts())
		if r != nil && !r.Steps[0].Constraint.DateTime.IsZero() {
			re.CreateElement("starting_date_time").SetText(r.Steps[0].Constraint.DateTime.Format(dateTimeLayout))
		}
	}
	return e
}

func stepWKB(s routing.RoadmapStep) []byte {
	switch x := s.(type) {
	case *routing.RoadStep:
		return x.GeometryWKB
	case *routing.PublicTransportStep:
		return x.GeometryWKB
	case *routing.GenericStep:
		return x.GeometryWKB
	}
	return nil
}
