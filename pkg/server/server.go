package server

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/oarkflow/json"
	"github.com/oarkflow/log"
	"github.com/oarkflow/xid"

	"github.com/oarkflow/spl"
	"github.com/oarkflow/spl/pkg/journal"
)

const maxRunHistory = 100

type Config struct {
	Version        string
	CacheSize      int64
	MaxSourceBytes int
	// Registry defaults to the process-wide builtin registry.
	Registry *spl.Registry
	Logger   *log.Logger
	// AccessLog enables fiber's request logger middleware.
	AccessLog bool
	// JournalFile, when set, persists run summaries as JSON Lines and
	// reloads the most recent ones on start.
	JournalFile string
}

type Server struct {
	app    *fiber.App
	cache  *ristretto.Cache
	logger *log.Logger
	config Config

	mu      sync.RWMutex
	runs    []RunSummary
	journal *journal.Journal[RunSummary]
}

type SourceRequest struct {
	Source  string         `json:"source"`
	Globals map[string]any `json:"globals,omitempty"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

type RunSummary struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	Output     string         `json:"output"`
	Error      *ErrorResponse `json:"error,omitempty"`
	Globals    map[string]any `json:"globals,omitempty"`
	Cached     bool           `json:"cached"`
	StartTime  time.Time      `json:"startTime"`
	DurationMs float64        `json:"durationMs"`
}

type ParseResponse struct {
	Functions  []string `json:"functions"`
	Statements int      `json:"statements"`
	AST        string   `json:"ast"`
	Cached     bool     `json:"cached"`
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}
	if cfg.MaxSourceBytes <= 0 {
		cfg.MaxSourceBytes = 64 << 10
	}
	if cfg.Registry == nil {
		cfg.Registry = spl.DefaultRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = &log.DefaultLogger
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.CacheSize * 10,
		MaxCost:     cfg.CacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	app := fiber.New(fiber.Config{
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		BodyLimit:   cfg.MaxSourceBytes * 4,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})
	server := &Server{
		app:    app,
		cache:  cache,
		logger: cfg.Logger,
		config: cfg,
	}
	if cfg.JournalFile != "" {
		j, err := journal.Open[RunSummary](cfg.JournalFile, false)
		if err != nil {
			cache.Close()
			return nil, err
		}
		runs, err := j.Tail(maxRunHistory)
		if err != nil {
			cache.Close()
			_ = j.Close()
			return nil, err
		}
		server.journal = j
		server.runs = runs
	}
	server.setupRoutes()
	return server, nil
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) setupRoutes() {
	s.app.Use(cors.New())
	s.app.Use(recover.New())
	if s.config.AccessLog {
		s.app.Use(logger.New())
	}

	s.app.Get("/api/health", s.healthHandler)
	s.app.Get("/api/builtins", s.builtinsHandler)
	s.app.Post("/api/tokens", s.tokensHandler)
	s.app.Post("/api/parse", s.parseHandler)
	s.app.Post("/api/run", s.runHandler)
	s.app.Get("/api/runs", s.listRunsHandler)
	s.app.Get("/api/runs/:id", s.getRunHandler)
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   s.config.Version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) builtinsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"builtins": s.config.Registry.Names()})
}

func (s *Server) readSource(c *fiber.Ctx) (*SourceRequest, error) {
	var req SourceRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Source) == "" {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Source cannot be empty"})
	}
	if len(req.Source) > s.config.MaxSourceBytes {
		return nil, c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "Source exceeds the configured size limit"})
	}
	return &req, nil
}

func (s *Server) tokensHandler(c *fiber.Ctx) error {
	req, err := s.readSource(c)
	if req == nil {
		return err
	}
	tokens, err := spl.Tokenize(req.Source)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": toErrorResponse(err), "tokens": tokens})
	}
	return c.JSON(fiber.Map{"tokens": tokens})
}

func (s *Server) parseHandler(c *fiber.Ctx) error {
	req, err := s.readSource(c)
	if req == nil {
		return err
	}
	program, cached, err := s.program(req.Source)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": toErrorResponse(err)})
	}
	functions := make([]string, len(program.Functions))
	for i, fn := range program.Functions {
		functions[i] = fn.Name
	}
	return c.JSON(ParseResponse{
		Functions:  functions,
		Statements: len(program.Statements),
		AST:        program.String(),
		Cached:     cached,
	})
}

func (s *Server) runHandler(c *fiber.Ctx) error {
	req, err := s.readSource(c)
	if req == nil {
		return err
	}
	summary := RunSummary{ID: xid.New().String(), StartTime: time.Now()}
	program, cached, err := s.program(req.Source)
	summary.Cached = cached
	if err != nil {
		summary.Status = "failed"
		summary.Error = toErrorResponse(err)
		s.record(summary)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(summary)
	}

	var out bytes.Buffer
	in, err := spl.New(
		spl.WithOutput(&out),
		spl.WithRegistry(s.config.Registry),
		spl.WithLogger(s.logger),
		spl.WithRunID(summary.ID),
		spl.WithGlobals(req.Globals),
	)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": toErrorResponse(err)})
	}
	runErr := in.Run(program)
	summary.DurationMs = float64(time.Since(summary.StartTime).Microseconds()) / 1000
	summary.Output = out.String()
	summary.Globals = nativeGlobals(in.Globals())
	if runErr != nil {
		summary.Status = "failed"
		summary.Error = toErrorResponse(runErr)
		s.logger.Warn().Str("run_id", summary.ID).Err(runErr).Msg("script failed")
		s.record(summary)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(summary)
	}
	summary.Status = "completed"
	s.logger.Info().Str("run_id", summary.ID).Bool("cached", cached).Msg("script completed")
	s.record(summary)
	return c.JSON(summary)
}

func (s *Server) listRunsHandler(c *fiber.Ctx) error {
	s.mu.RLock()
	runs := make([]RunSummary, len(s.runs))
	copy(runs, s.runs)
	s.mu.RUnlock()
	return c.JSON(runs)
}

func (s *Server) getRunHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, run := range s.runs {
		if run.ID == id {
			return c.JSON(run)
		}
	}
	return fiber.NewError(fiber.StatusNotFound, "run not found: "+id)
}

// program returns the parsed form of source, reusing a cached AST when one
// is available. Programs are never mutated after parsing, so concurrent runs
// can share them.
func (s *Server) program(source string) (*spl.Program, bool, error) {
	if v, ok := s.cache.Get(source); ok {
		if program, ok := v.(*spl.Program); ok {
			return program, true, nil
		}
	}
	program, err := spl.Parse(source)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(source, program, 1)
	return program, false, nil
}

func (s *Server) record(summary RunSummary) {
	s.mu.Lock()
	s.runs = append(s.runs, summary)
	if len(s.runs) > maxRunHistory {
		s.runs = s.runs[len(s.runs)-maxRunHistory:]
	}
	s.mu.Unlock()
	if s.journal != nil {
		if err := s.journal.Append(summary); err != nil {
			s.logger.Warn().Err(err).Str("run_id", summary.ID).Str("journal", s.journal.Path()).Msg("run not journaled")
		}
	}
}

func toErrorResponse(err error) *ErrorResponse {
	var splErr *spl.SPLError
	if errors.As(err, &splErr) {
		return &ErrorResponse{
			Code:    string(splErr.Code),
			Message: splErr.Message,
			Line:    splErr.Line,
			Column:  splErr.Column,
		}
	}
	return &ErrorResponse{Code: string(spl.ErrCodeRuntime), Message: err.Error()}
}

func nativeGlobals(globals map[string]spl.Value) map[string]any {
	if len(globals) == 0 {
		return nil
	}
	out := make(map[string]any, len(globals))
	for name, v := range globals {
		out[name] = spl.ToNative(v)
	}
	return out
}

func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("starting playground server")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	s.logger.Info().Msg("shutting down playground server")
	s.cache.Close()
	if s.journal != nil {
		_ = s.journal.Close()
	}
	return s.app.Shutdown()
}
