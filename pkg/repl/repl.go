package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/oarkflow/log"
	"github.com/peterh/liner"

	"github.com/oarkflow/spl"
)

const continuationPrompt = ".. "

// LineReader is the subset of liner.State the loop needs.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

type Config struct {
	Prompt      string
	HistoryFile string
	Out         io.Writer
	Err         io.Writer
	Logger      *log.Logger
	Options     []spl.Option
}

// Session holds one interpreter that survives across inputs, so variables
// and functions defined earlier stay available.
type Session struct {
	in     *spl.Interpreter
	out    io.Writer
	errOut io.Writer
	prompt string
	logger *log.Logger
}

func NewSession(cfg Config) (*Session, error) {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Err == nil {
		cfg.Err = os.Stderr
	}
	if cfg.Prompt == "" {
		cfg.Prompt = ">> "
	}
	if cfg.Logger == nil {
		cfg.Logger = &log.DefaultLogger
	}
	opts := append([]spl.Option{spl.WithOutput(cfg.Out), spl.WithLogger(cfg.Logger)}, cfg.Options...)
	in, err := spl.New(opts...)
	if err != nil {
		return nil, err
	}
	return &Session{in: in, out: cfg.Out, errOut: cfg.Err, prompt: cfg.Prompt, logger: cfg.Logger}, nil
}

func (s *Session) Interpreter() *spl.Interpreter {
	return s.in
}

// Eval parses and runs one complete input. Functions are registered before
// any statement runs. Values of bare expressions other than unit are echoed.
func (s *Session) Eval(source string) error {
	program, err := spl.Parse(source)
	if err != nil {
		return err
	}
	s.in.DefineFunctions(program.Functions)
	for _, stmt := range program.Statements {
		if es, ok := stmt.(*spl.ExpressionStatement); ok {
			v, err := s.in.Evaluate(es.Expression)
			if err != nil {
				return err
			}
			if v.Type() != spl.UNIT_VAL {
				fmt.Fprintln(s.out, v.Inspect())
			}
			continue
		}
		if _, err := s.in.Execute(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Loop reads inputs until EOF or :quit. Errors are reported and the loop
// keeps going.
func (s *Session) Loop(reader LineReader) error {
	for {
		source, ok, err := readInput(reader, s.prompt)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(s.out)
			return nil
		}
		trimmed := strings.TrimSpace(source)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			if s.command(trimmed) {
				return nil
			}
			continue
		}
		reader.AppendHistory(strings.ReplaceAll(source, "\n", " "))
		if err := s.Eval(source); err != nil {
			s.logger.Debug().Err(err).Msg("input failed")
			fmt.Fprintln(s.errOut, "error:", err)
		}
	}
}

func (s *Session) command(cmd string) (quit bool) {
	switch strings.ToLower(cmd) {
	case ":quit", ":q", ":exit":
		return true
	case ":functions":
		for _, name := range s.in.Functions() {
			fmt.Fprintln(s.out, name)
		}
	case ":globals":
		globals := s.in.Globals()
		names := make([]string, 0, len(globals))
		for name := range globals {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v := globals[name]
			fmt.Fprintf(s.out, "%s: %s = %s\n", name, v.Type(), v.Inspect())
		}
	case ":help":
		fmt.Fprintln(s.out, ":functions  list user functions")
		fmt.Fprintln(s.out, ":globals    list global variables")
		fmt.Fprintln(s.out, ":quit       leave the session")
	default:
		fmt.Fprintln(s.errOut, "unknown command. Type :help for a list.")
	}
	return false
}

// readInput collects lines until the braces balance. ok is false at EOF.
func readInput(reader LineReader, prompt string) (string, bool, error) {
	var b strings.Builder
	depth := 0
	for {
		p := prompt
		if b.Len() > 0 {
			p = continuationPrompt
		}
		line, err := reader.Prompt(p)
		if errors.Is(err, io.EOF) {
			if b.Len() > 0 {
				return b.String(), true, nil
			}
			return "", false, nil
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true, nil
		}
		if err != nil {
			return "", false, err
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		depth += BraceDelta(line)
		if depth <= 0 {
			return b.String(), true, nil
		}
	}
}

// BraceDelta counts opening minus closing braces in line, ignoring braces
// inside string literals and after a // comment.
func BraceDelta(line string) int {
	delta := 0
	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '/':
			if i+1 < len(line) && line[i+1] == '/' {
				return delta
			}
		case '{':
			delta++
		case '}':
			delta--
		}
	}
	return delta
}

// Start runs an interactive session on the terminal, loading and saving
// history under a file lock so concurrent sessions do not clobber it.
func Start(cfg Config) error {
	session, err := NewSession(cfg)
	if err != nil {
		return err
	}
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if cfg.HistoryFile != "" {
		if err := loadHistory(ln, cfg.HistoryFile); err != nil {
			session.logger.Debug().Err(err).Str("file", cfg.HistoryFile).Msg("history not loaded")
		}
		defer func() {
			if err := saveHistory(ln, cfg.HistoryFile); err != nil {
				session.logger.Warn().Err(err).Str("file", cfg.HistoryFile).Msg("history not saved")
			}
		}()
	}
	fmt.Fprintln(session.out, "spl interactive session. Type :help for commands.")
	return session.Loop(ln)
}

func loadHistory(ln *liner.State, path string) error {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = ln.ReadHistory(f)
	return err
}

func saveHistory(ln *liner.State, path string) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = ln.WriteHistory(f)
	return err
}
