// Command compileql parses a single HiveQL-style SQL statement, runs it
// through the compiler and prints the resulting map/reduce task graph.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dshills/hiveql-compiler/internal/ast"
	"github.com/dshills/hiveql-compiler/internal/compiler"
	"github.com/dshills/hiveql-compiler/internal/config"
	"github.com/dshills/hiveql-compiler/internal/funcreg"
	"github.com/dshills/hiveql-compiler/internal/log"
	"github.com/dshills/hiveql-compiler/internal/mrtask"
	"github.com/dshills/hiveql-compiler/internal/session"
	"github.com/dshills/hiveql-compiler/internal/sql/parser"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: compileql [options] [sql]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles a SELECT statement into a map/reduce task graph.\n")
		fmt.Fprintf(os.Stderr, "The statement is read from the first non-flag argument, -file, or stdin.\n\n")
		flag.PrintDefaults()
	}

	var (
		schemaPath  = flag.String("schema", "", "Path to a JSON table-schema file (required)")
		configFile  = flag.String("config", "", "Path to a compiler configuration file")
		sqlFile     = flag.String("file", "", "Path to a file containing the SQL statement")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error); overrides the config file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("compileql v%s (commit: %s)\n", version, commit)
		return
	}

	if *schemaPath == "" {
		fmt.Fprintln(os.Stderr, "compileql: -schema is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "compileql: failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Format: "text"})
	logger := log.Default()

	store, err := loadMetastore(*schemaPath)
	if err != nil {
		logger.Error("failed to load schema", "error", err)
		os.Exit(1)
	}

	sql, err := readSQL(*sqlFile, flag.Args())
	if err != nil {
		logger.Error("failed to read SQL", "error", err)
		os.Exit(1)
	}

	stmt, err := parser.NewParser(sql).Parse()
	if err != nil {
		logger.Error("failed to parse SQL", "error", err)
		os.Exit(1)
	}
	selectStmt, ok := stmt.(*parser.SelectStmt)
	if !ok {
		logger.Error("only SELECT statements are supported", "statement", fmt.Sprintf("%T", stmt))
		os.Exit(1)
	}
	root := ast.Adapt(selectStmt)

	sess := session.New(cfg, logger)
	c := compiler.New(funcreg.NewBuiltinRegistry(), store, sess)

	result, err := c.Compile(root)
	if err != nil {
		logger.Error("compile failed", "error", err)
		os.Exit(1)
	}

	printTasks(os.Stdout, result.Tasks)
}

// readSQL prefers an explicit positional argument, then -file, then falls
// back to stdin so the CLI composes with a pipe.
func readSQL(path string, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no SQL statement given (argument, -file, or stdin)")
	}
	return string(data), nil
}

func printTasks(w io.Writer, tasks []*mrtask.Task) {
	fmt.Fprintf(w, "Task graph (%d task(s)):\n", len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(w, "  %s\n", t)
		switch t.Kind {
		case mrtask.KindFetch:
			fmt.Fprintf(w, "    table: %s\n", t.Fetch.Table.Name)
			fmt.Fprintf(w, "    path: %s\n", t.Fetch.Path)
			if len(t.Fetch.Partitions) > 0 {
				fmt.Fprintf(w, "    partitions: %d\n", len(t.Fetch.Partitions))
			}
		case mrtask.KindMove:
			fmt.Fprintf(w, "    path: %s\n", t.Move.Path)
			fmt.Fprintf(w, "    table write: %v\n", t.Move.TableWrite)
		default:
			for _, root := range t.Roots {
				fmt.Fprintf(w, "    root: %s\n", root.Name)
			}
			if len(t.ReduceSinks) > 0 {
				fmt.Fprintf(w, "    reduce sinks: %d\n", len(t.ReduceSinks))
			}
			if len(t.Sinks) > 0 {
				fmt.Fprintf(w, "    sinks: %d\n", len(t.Sinks))
			}
		}
		for _, child := range t.Children {
			fmt.Fprintf(w, "    -> %s\n", child)
		}
	}
}
