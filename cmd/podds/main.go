package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/richard-senior/podds/internal/logger"
	"github.com/richard-senior/podds/pkg/server"
	"github.com/richard-senior/podds/pkg/tools"
	"github.com/richard-senior/podds/pkg/transport"
	"github.com/richard-senior/podds/pkg/util/podds"
)

const usage = `usage: podds [flags] <command> [args]

commands:
  fit-xg <shots.csv> [name]           fit and store a shot xG model
  fit-poisson <results.csv|url> [name] fit and store a team goals model
  predict <model> <home> <away>        print a fixture prediction
  xg <model> <x> <y>                   print distance, angle and xG of a shot
  list                                 list stored models
  serve                                MCP server on stdin/stdout (default)

flags:
`

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "failed to load .env:", err)
		os.Exit(1)
	}
	if err := run(os.Args[1:], os.Stdout); err != nil {
		logger.Error("podds failed:", err)
		os.Exit(1)
	}
}

// run parses flags, resolves configuration and dispatches the command.
// Command output goes to stdout, logging never does.
func run(args []string, stdout io.Writer) error {
	fset := flag.NewFlagSet("podds", flag.ContinueOnError)
	fset.Usage = func() {
		fmt.Fprint(fset.Output(), usage)
		fset.PrintDefaults()
	}
	configPath := fset.String("config", os.Getenv("PODDS_CONFIG"), "YAML configuration file")
	dbPath := fset.String("db", os.Getenv("PODDS_DB"), "sqlite model store, overrides the config")
	level := fset.String("log-level", os.Getenv("PODDS_LOG_LEVEL"), "DEBUG, INFO, WARN or ERROR")
	pitch := fset.String("pitch", "", "shot frame preset for fit-xg: wyscout or half")
	if err := fset.Parse(args); err != nil {
		return err
	}

	if *level != "" {
		l, err := logger.ParseLevel(*level)
		if err != nil {
			return err
		}
		logger.SetLevel(l)
	}

	cfg := podds.DefaultPoddsConfig()
	if *configPath != "" {
		var err error
		if cfg, err = podds.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	if *dbPath != "" {
		cfg.DbPath = *dbPath
	}
	if *pitch != "" {
		cfg.PitchPreset = *pitch
		cfg.Pitch = nil
	}
	if err := podds.UpdateConfig(cfg); err != nil {
		return err
	}

	rest := fset.Args()
	command := "serve"
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}
	logger.Debug("Running command", command, strings.Join(rest, " "))

	if command == "serve" {
		return serve(cfg)
	}

	db, err := podds.OpenDatabase(cfg.DbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	var out any
	switch command {
	case "fit-xg":
		out, err = fitXG(db, cfg, rest)
	case "fit-poisson":
		out, err = fitPoisson(db, cfg, rest)
	case "predict":
		out, err = predict(db, cfg, rest)
	case "xg":
		out, err = shotXG(db, rest)
	case "list":
		out, err = db.ListModels()
	default:
		fset.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// argOr returns args[i] or the fallback when it is absent
func argOr(args []string, i int, fallback string) string {
	if i < len(args) && args[i] != "" {
		return args[i]
	}
	return fallback
}

type xgFitOutput struct {
	Name       string                     `json:"name"`
	Shots      int                        `json:"shots"`
	Pitch      podds.PitchConfig          `json:"pitch"`
	Params     podds.ClassifierParameters `json:"params"`
	Comparison *podds.ReferenceComparison `json:"referenceComparison,omitempty"`
}

func fitXG(db *podds.Database, cfg *podds.PoddsConfig, args []string) (any, error) {
	path := argOr(args, 0, cfg.ShotsPath)
	name := argOr(args, 1, "xg")
	pitch, err := cfg.GetPitch()
	if err != nil {
		return nil, err
	}
	shots, err := podds.LoadShotsCSV(path)
	if err != nil {
		return nil, err
	}
	params, err := podds.FitXGModel(pitch, shots, cfg.FitOptions())
	if err != nil {
		return nil, err
	}
	if err := db.SaveXGModel(name, &podds.XGModel{Pitch: pitch, Params: params}, len(shots)); err != nil {
		return nil, err
	}

	out := xgFitOutput{Name: name, Shots: len(shots), Pitch: pitch, Params: params}
	if cmp, err := podds.CompareReference(pitch, shots, params); err == nil {
		out.Comparison = cmp
	}
	return out, nil
}

type poissonFitOutput struct {
	Name          string             `json:"name"`
	Matches       int                `json:"matches"`
	Teams         []string           `json:"teams"`
	Iterations    int                `json:"iterations"`
	Deviance      float64            `json:"deviance"`
	HomeAdvantage float64            `json:"homeAdvantage"`
	Coefficients  map[string]float64 `json:"coefficients"`
}

func fitPoisson(db *podds.Database, cfg *podds.PoddsConfig, args []string) (any, error) {
	source := argOr(args, 0, cfg.ResultsPath)
	name := argOr(args, 1, "poisson")

	var matches []podds.MatchResult
	var err error
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		matches, err = podds.FetchResultsHTML(source)
	} else {
		matches, err = podds.LoadResultsCSV(source)
	}
	if err != nil {
		return nil, err
	}
	rows, err := podds.BuildTrainingRows(matches)
	if err != nil {
		return nil, err
	}
	m, err := podds.FitPoisson(rows, cfg.FitOptions())
	if err != nil {
		return nil, err
	}
	if err := db.SavePoissonModel(name, m, len(rows)); err != nil {
		return nil, err
	}
	return poissonFitOutput{
		Name:          name,
		Matches:       len(matches),
		Teams:         m.Teams,
		Iterations:    m.Iterations(),
		Deviance:      m.Deviance(),
		HomeAdvantage: m.HomeAdvantage(),
		Coefficients:  m.Coefficients(),
	}, nil
}

func predict(db *podds.Database, cfg *podds.PoddsConfig, args []string) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("predict needs <model> <home> <away>, got %d arguments", len(args))
	}
	m, err := db.LoadPoissonModel(args[0])
	if err != nil {
		return nil, err
	}
	return podds.PredictFixture(m, args[1], args[2], cfg)
}

func shotXG(db *podds.Database, args []string) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("xg needs <model> <x> <y>, got %d arguments", len(args))
	}
	x, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return nil, fmt.Errorf("bad x %q: %w", args[1], err)
	}
	y, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return nil, fmt.Errorf("bad y %q: %w", args[2], err)
	}
	mt := tools.NewModelTools(db, nil)
	return mt.HandleShotXG(map[string]any{"model": args[0], "x": x, "y": y})
}

// serve runs the MCP server. stdout is the protocol channel so logging
// goes to the configured file only.
func serve(cfg *podds.PoddsConfig) error {
	logger.SetShowDateTime(true)
	if err := logger.SetLogOutput(logger.File, cfg.LogPath); err != nil {
		return err
	}
	defer logger.Close()

	db, err := podds.OpenDatabase(cfg.DbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	s := server.NewServer(transport.NewStdioTransport())
	s.RegisterModelTools(tools.NewModelTools(db, cfg))

	logger.Info("Starting MCP server...")
	if err := s.Start(); err != nil {
		return err
	}
	logger.Info("MCP server shutting down")
	return nil
}
