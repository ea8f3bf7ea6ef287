package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"tempus/common"
	"tempus/multimodal"
	"tempus/routing"
	"tempus/state"
	"tempus/utils/debug"
	"tempus/wps"
	"tempus/xmlutil"
)

func routeCommand() *cli.Command {
	return &cli.Command{
		Name:         "route",
		Usage:        "Computes a single path and prints its roadmap",
		OnUsageError: usageErrorHandler,
		Action:       route,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "plugin", Aliases: []string{"p"}, Usage: "`NAME` of the plugin to use, first loaded plugin if absent"},
			&cli.StringFlag{Name: "request", Aliases: []string{"r"}, Usage: "read request from XML `FILE`, other request flags are ignored"},
			&cli.StringFlag{Name: "from", Usage: "origin road node `ID`"},
			&cli.StringFlag{Name: "to", Usage: "destination road node `ID`"},
			&cli.StringSliceFlag{Name: "via", Usage: "intermediate road node `ID`, may be repeated"},
			&cli.StringFlag{Name: "depart-after", Usage: "departure constraint as xs:dateTime `VALUE`"},
			&cli.StringSliceFlag{Name: "criterion", Usage: "optimizing criterion `NAME` or identifier, may be repeated"},
			&cli.StringSliceFlag{Name: "option", Aliases: []string{"o"}, Usage: "plugin option as `NAME=VALUE`, may be repeated"},
			&cli.BoolFlag{Name: "text", Aliases: []string{"t"}, Usage: "print roadmap as indented text instead of XML"},
		},
	}
}

func route(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	a, err := env.OpenApp(ctx, true, nil)
	if err != nil {
		return fmt.Errorf("unable to prepare application: %w", err)
	}
	g, err := a.Graph()
	if err != nil {
		return err
	}

	name := cmd.String("plugin")
	if name == "" {
		loaded := a.Plugins()
		if len(loaded) == 0 {
			return fmt.Errorf("no plugin loaded")
		}
		name = loaded[0]
	}
	session, err := a.Session(name)
	if err != nil {
		return err
	}
	for _, o := range cmd.StringSlice("option") {
		k, v, ok := strings.Cut(o, "=")
		if !ok {
			return fmt.Errorf("malformed option %q, NAME=VALUE expected", o)
		}
		if err := session.Plugin().Options().SetOptionFromString(k, v); err != nil {
			return err
		}
	}

	var r *routing.Request
	if path := cmd.String("request"); path != "" {
		r, err = requestFromFile(path, g)
	} else {
		r, err = requestFromFlags(cmd, g)
	}
	if err != nil {
		return fmt.Errorf("unable to prepare request: %w", err)
	}

	env.Log.Debug("Routing", zap.String("plugin", name), zap.Int("steps", len(r.Steps)))
	res, err := session.Run(ctx, r)
	if err != nil {
		return fmt.Errorf("unable to compute path: %w", err)
	}
	for k, v := range session.Metrics() {
		env.Log.Debug("Plugin metric", zap.String("name", k), zap.Any("value", v))
	}

	xml := xmlutil.ToString(wps.ResultToXML(res, r, g), true)
	text := debug.Roadmaps(res)
	title := fmt.Sprintf("%s %d %d", name, g.Road().Node(r.Origin()).DBID, g.Road().Node(r.Destination()).DBID)
	env.Rpt.StoreArtifact("roadmaps", title, ".xml", []byte(xml))
	env.Rpt.StoreArtifact("roadmaps", title, ".txt", []byte(text))

	out := xml
	if cmd.Bool("text") {
		out = text
	}
	_, err = os.Stdout.WriteString(out)
	return err
}

func requestFromFile(path string, g *multimodal.Graph) (*routing.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	root, err := xmlutil.Parse(string(data))
	if err != nil {
		return nil, err
	}
	return wps.RequestFromXML(root, g)
}

func requestFromFlags(cmd *cli.Command, g *multimodal.Graph) (*routing.Request, error) {
	step := func(s string) (routing.Step, error) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return routing.Step{}, fmt.Errorf("malformed node id %q: %w", s, err)
		}
		v, err := g.Road().VertexFromID(common.DBID(id))
		if err != nil {
			return routing.Step{}, err
		}
		return routing.Step{Location: v}, nil
	}

	if cmd.String("from") == "" || cmd.String("to") == "" {
		return nil, fmt.Errorf("both --from and --to are required")
	}
	origin, err := step(cmd.String("from"))
	if err != nil {
		return nil, err
	}
	if s := cmd.String("depart-after"); s != "" {
		t, err := xmlutil.ParseDateTime(s)
		if err != nil {
			return nil, err
		}
		origin.Constraint = routing.TimeConstraint{Type: routing.ConstraintAfter, DateTime: t}
	}
	destination, err := step(cmd.String("to"))
	if err != nil {
		return nil, err
	}
	r, err := routing.NewRequest(origin, destination)
	if err != nil {
		return nil, err
	}
	for _, s := range cmd.StringSlice("via") {
		via, err := step(s)
		if err != nil {
			return nil, err
		}
		if err := r.AddIntermediaryStep(via); err != nil {
			return nil, err
		}
	}
	for i, s := range cmd.StringSlice("criterion") {
		c, err := common.ParseCostID(s)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			err = r.SetOptimizingCriterion(0, c)
		} else {
			err = r.AddCriterion(c)
		}
		if err != nil {
			return nil, err
		}
	}
	return r, r.CheckConsistency()
}
