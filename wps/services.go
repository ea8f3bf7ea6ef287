package wps

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tempus/app"
	"tempus/common"
	"tempus/multimodal"
	"tempus/plugin"
	"tempus/road"
	"tempus/routing"
	"tempus/xmlutil"
)

var (
	pluginParam            = Parameter{Name: "plugin", Title: "Plugin", Schema: pluginSchema}
	requestParam           = Parameter{Name: "request", Title: "Routing request", Schema: requestSchema}
	optionsParam           = Parameter{Name: "options", Title: "Plugin options", Schema: optionsSchema}
	resultsParam           = Parameter{Name: "results", Title: "Roadmaps", Schema: resultsSchema}
	metricsParam           = Parameter{Name: "metrics", Title: "Plugin metrics", Schema: metricsSchema}
	stateParam             = Parameter{Name: "state", Title: "Application state", Schema: stateSchema}
	dbOptionsParam         = Parameter{Name: "db_options", Title: "Database connection string", Schema: dbOptionsSchema}
	pluginsParam           = Parameter{Name: "plugins", Title: "Loaded plugins", Schema: pluginsSchema}
	transportModesParam    = Parameter{Name: "transport_modes", Title: "Transport modes", Schema: transportModesSchema}
	transportNetworksParam = Parameter{Name: "transport_networks", Title: "Transport networks", Schema: transportNetworksSchema}
)

// Services exposes the application through WPS. Processing services hold a
// per plugin lock, so a full selection is never interleaved with the
// phases run one by one by another client.
type Services struct {
	app    *app.App
	log    *zap.Logger
	driver string
	schema string

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	requests map[string]pending
}

// pending is the last request started on a plugin with the graph it was
// read against.
type pending struct {
	r *routing.Request
	g *multimodal.Graph
}

func NewServices(a *app.App, driver, schema string, log *zap.Logger) *Services {
	return &Services{
		app:      a,
		log:      log.Named("services"),
		driver:   driver,
		schema:   schema,
		locks:    make(map[string]*sync.Mutex),
		requests: make(map[string]pending),
	}
}

// Register adds every service to r.
func (s *Services) Register(r *Registry) error {
	list := []*Service{
		{Name: "connect", Title: "Connect to the database", Inputs: []Parameter{dbOptionsParam}, Execute: s.connect},
		{Name: "pre_build", Title: "Pre-build the graph", Execute: s.preBuild},
		{Name: "build", Title: "Build the graph", Execute: s.build},
		{Name: "state", Title: "Application state", Outputs: []Parameter{stateParam}, Execute: s.state},
		{Name: "plugin_list", Title: "Loaded plugins", Outputs: []Parameter{pluginsParam}, Execute: s.pluginList},
		{Name: "constant_list", Title: "Transport modes and networks", Outputs: []Parameter{transportModesParam, transportNetworksParam}, Execute: s.constantList},
		{Name: "select", Title: "Compute roadmaps", Inputs: []Parameter{pluginParam, requestParam, optionsParam}, Outputs: []Parameter{resultsParam, metricsParam}, Execute: s.selectPath},
		{Name: "pre_process", Title: "Plugin pre-processing", Inputs: []Parameter{pluginParam, requestParam, optionsParam}, Execute: s.preProcess},
		{Name: "process", Title: "Plugin processing", Inputs: []Parameter{pluginParam}, Execute: s.process},
		{Name: "post_process", Title: "Plugin post-processing", Inputs: []Parameter{pluginParam}, Execute: s.postProcess},
		{Name: "result", Title: "Plugin result", Inputs: []Parameter{pluginParam}, Outputs: []Parameter{resultsParam, metricsParam}, Execute: s.result},
		{Name: "cleanup", Title: "Plugin cleanup", Inputs: []Parameter{pluginParam}, Execute: s.cleanup},
	}
	var err error
	for _, svc := range list {
		svc.Execute = classified(svc.Execute)
		err = multierr.Append(err, r.Register(svc))
	}
	return err
}

// classified maps application errors to what the protocol reports.
func classified(f ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, in Values) (Values, error) {
		out, err := f(ctx, in)
		if err == nil {
			return out, nil
		}
		return nil, classify(err)
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrInvalidParameter), errors.Is(err, ErrNotApplicable):
		return err
	case errors.Is(err, app.ErrBadState), errors.Is(err, plugin.ErrBadState):
		return fmt.Errorf("%w: %w", ErrNotApplicable, err)
	case errors.Is(err, plugin.ErrInvalidArgument),
		errors.Is(err, plugin.ErrNotFound),
		errors.Is(err, plugin.ErrUnsupported),
		errors.Is(err, routing.ErrInvalidArgument),
		errors.Is(err, routing.ErrBadTiming),
		errors.Is(err, road.ErrNotFound),
		errors.Is(err, common.ErrInconsistent):
		return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	return err
}

func (s *Services) lock(name string) func() {
	s.mu.Lock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Services) connect(ctx context.Context, in Values) (Values, error) {
	dsn := xmlutil.Text(in["db_options"])
	if dsn == "" {
		return nil, fmt.Errorf("empty connection string: %w", ErrInvalidParameter)
	}
	return nil, s.app.Connect(ctx, s.driver, dsn, s.schema)
}

func (s *Services) preBuild(ctx context.Context, _ Values) (Values, error) {
	return nil, s.app.PreBuildGraph(ctx)
}

func (s *Services) build(ctx context.Context, _ Values) (Values, error) {
	return nil, s.app.BuildGraph(ctx)
}

func (s *Services) state(context.Context, Values) (Values, error) {
	return Values{"state": xmlutil.NewElement("state", strconv.Itoa(int(s.app.State())))}, nil
}

func (s *Services) pluginList(context.Context, Values) (Values, error) {
	var list []plugin.Plugin
	for _, name := range s.app.Plugins() {
		if p, ok := s.app.Registry().Get(name); ok {
			list = append(list, p)
		}
	}
	return Values{"plugins": PluginsToXML(list)}, nil
}

func (s *Services) constantList(context.Context, Values) (Values, error) {
	g, err := s.app.Graph()
	if err != nil {
		return nil, err
	}
	return Values{
		"transport_modes":    TransportModesToXML(g.TransportTypes()),
		"transport_networks": TransportNetworksToXML(g),
	}, nil
}

func pluginName(in Values) string {
	return in["plugin"].SelectAttrValue("name", "")
}

// prepare resolves the session and applies options. The request itself is
// read by the session against the graph its plugin holds.
func (s *Services) prepare(name string, in Values) (*plugin.Session, plugin.RequestReader, error) {
	session, err := s.app.Session(name)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.app.Graph(); err != nil {
		return nil, nil, err
	}
	if err := ApplyOptions(session.Plugin().Options(), in["options"]); err != nil {
		return nil, nil, err
	}
	read := func(g *multimodal.Graph) (*routing.Request, error) {
		return RequestFromXML(in["request"], g)
	}
	return session, read, nil
}

func (s *Services) outputs(name string, session *plugin.Session, res routing.Result) Values {
	s.mu.Lock()
	p := s.requests[name]
	s.mu.Unlock()
	return Values{
		"results": ResultToXML(res, p.r, p.g),
		"metrics": MetricsToXML(session.Plugin().Metrics()),
	}
}

func (s *Services) remember(name string, r *routing.Request, g *multimodal.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[name] = pending{r: r, g: g}
}

func (s *Services) selectPath(ctx context.Context, in Values) (Values, error) {
	name := pluginName(in)
	defer s.lock(name)()

	session, read, err := s.prepare(name, in)
	if err != nil {
		return nil, err
	}
	var g *multimodal.Graph
	r, res, err := session.RunFrom(ctx, func(sg *multimodal.Graph) (*routing.Request, error) {
		g = sg
		return read(sg)
	})
	if err != nil {
		return nil, err
	}
	s.remember(name, r, g)
	s.log.Debug("Selection done", zap.String("plugin", name), zap.Int("roadmaps", len(res)))
	return s.outputs(name, session, res), nil
}

func (s *Services) preProcess(ctx context.Context, in Values) (Values, error) {
	name := pluginName(in)
	defer s.lock(name)()

	session, read, err := s.prepare(name, in)
	if err != nil {
		return nil, err
	}
	var g *multimodal.Graph
	r, err := session.PreProcessFrom(ctx, func(sg *multimodal.Graph) (*routing.Request, error) {
		g = sg
		return read(sg)
	})
	if r != nil {
		s.remember(name, r, g)
	}
	return nil, err
}

// phase runs one processing step of the plugin named in the inputs.
func (s *Services) phase(in Values, f func(*plugin.Session) error) (Values, error) {
	name := pluginName(in)
	defer s.lock(name)()

	session, err := s.app.Session(name)
	if err != nil {
		return nil, err
	}
	return nil, f(session)
}

func (s *Services) process(ctx context.Context, in Values) (Values, error) {
	return s.phase(in, func(session *plugin.Session) error { return session.Process(ctx) })
}

func (s *Services) postProcess(ctx context.Context, in Values) (Values, error) {
	return s.phase(in, func(session *plugin.Session) error { return session.PostProcess(ctx) })
}

func (s *Services) cleanup(ctx context.Context, in Values) (Values, error) {
	return s.phase(in, func(session *plugin.Session) error { return session.Cleanup(ctx) })
}

func (s *Services) result(ctx context.Context, in Values) (Values, error) {
	name := pluginName(in)
	defer s.lock(name)()

	session, err := s.app.Session(name)
	if err != nil {
		return nil, err
	}
	res, err := session.Result(ctx)
	if err != nil {
		return nil, err
	}
	return s.outputs(name, session, res), nil
}
