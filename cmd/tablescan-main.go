package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/goutil/humanise"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/tablescan/comparison"
	"github.com/jamesrr39/tablescan/tablescan/predicate"
	"github.com/jamesrr39/tablescan/tablescandal"
	"github.com/jamesrr39/tablescan/tablescandal/queryengine"
	"github.com/jamesrr39/tablescan/vitalsgen"
	"github.com/jamesrr39/tablescan/webservices"
	"github.com/pkg/profile"
	"gopkg.in/alecthomas/kingpin.v2"

	_ "github.com/jamesrr39/tablescan/tablescandal/parquetdb"
	_ "github.com/jamesrr39/tablescan/tablescandal/sqldb"
)

const (
	DefaultPort = 9010

	defaultCond0 = "(60 < heart_rate) & (heart_rate < 70)"
	defaultCond1 = "(40 < hematocrit) & (hematocrit < 60)"
)

var (
	logger  *logpkg.Logger
	verbose = kingpin.Flag("v", "verbose logging").Bool()
)

func main() {
	setupCompare()
	setupQuery()
	setupInfo()
	setupGenerate()
	setupServe()

	kingpin.Parse()
}

// runAction adapts a command's run func to a kingpin action, printing the stack trace of a failure
func runAction(run func() errorsx.Error) kingpin.Action {
	return func(ctx *kingpin.ParseContext) error {
		logLevel := logpkg.LogLevelInfo
		if *verbose {
			logLevel = logpkg.LogLevelDebug
		}
		logger = logpkg.NewLogger(os.Stderr, logLevel)

		err := run()
		if err != nil {
			return fmt.Errorf("error: %q\nStack trace:\n%s", err.Error(), err.Stack())
		}
		return nil
	}
}

var tableConnHelp = fmt.Sprintf(
	"table to read. It should be the store type, followed by the separator (%s), followed by the path or URL. For example: %s%smy/vitals.parquet, %s%slocalhost/clinic?table=vitals. A path ending in .parquet can be given on its own",
	tablescandal.ConnectionPathSeparator,
	tablescandal.StoreTypeParquet,
	tablescandal.ConnectionPathSeparator,
	tablescandal.StoreTypePostgresql,
	tablescandal.ConnectionPathSeparator,
)

func ensureDefaultPathsConfig() (*tablescandal.PathsConfig, errorsx.Error) {
	pathsConfig, err := tablescandal.NewPathsConfig(tablescandal.DefaultRootDir)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	err = pathsConfig.EnsurePaths(gofs.NewOsFs())
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return pathsConfig, nil
}

func parseOptionalFilter(expression string) (predicate.Filter, errorsx.Error) {
	if strings.TrimSpace(expression) == "" {
		return nil, nil
	}

	return predicate.Parse(expression)
}

func splitColumnNames(selectStr string) []string {
	var columnNames []string
	for _, columnName := range strings.Split(selectStr, ",") {
		columnName = strings.TrimSpace(columnName)
		if columnName == "" {
			continue
		}
		columnNames = append(columnNames, columnName)
	}
	return columnNames
}

func setupCompare() {
	cmd := kingpin.Command("compare", "time the query strategies against each other on a table")
	tableConn := cmd.Arg("table", tableConnHelp).Required().String()
	cond0Str := cmd.Flag("cond0", "first condition").Default(defaultCond0).String()
	cond1Str := cmd.Flag("cond1", "second condition").Default(defaultCond1).String()
	whereStr := cmd.Flag("where", `filter expression. Defaults to "<cond0> & <cond1>"`).String()
	selectStr := cmd.Flag("select", "comma separated list of columns to return. Defaults to all columns").String()
	includeNaive := cmd.Flag("include-naive", "also time reading the whole table into memory before filtering. Only use on tables that fit in memory").Bool()
	shouldTrace := cmd.Flag("trace", "write a trace of the comparison to the trace directory").Bool()
	shouldProfile := cmd.Flag("profile", "CPU profile the comparison").Bool()
	cmd.Action(runAction(func() errorsx.Error {
		cond0, err := predicate.Parse(*cond0Str)
		if err != nil {
			return errorsx.Wrap(err, "flag", "cond0")
		}

		cond1, err := predicate.Parse(*cond1Str)
		if err != nil {
			return errorsx.Wrap(err, "flag", "cond1")
		}

		var where predicate.Filter = predicate.And(cond0, cond1)
		if *whereStr != "" {
			where, err = predicate.Parse(*whereStr)
			if err != nil {
				return errorsx.Wrap(err, "flag", "where")
			}
		}

		pathsConfig, err := ensureDefaultPathsConfig()
		if err != nil {
			return err
		}

		if *shouldProfile {
			defer profile.Start(profile.ProfilePath(pathsConfig.ProfileDir), profile.CPUProfile).Stop()
		}

		config := comparison.Config{
			Where:        where,
			Cond0:        cond0,
			Cond1:        cond1,
			Select:       splitColumnNames(*selectStr),
			IncludeNaive: *includeNaive,
		}

		if *shouldTrace {
			traceFilePath := filepath.Join(pathsConfig.TraceDir, fmt.Sprintf("trace_compare_%s.pbf", time.Now().Format("2006-01-02__15_04_05")))
			logger.Info("tracing at %q", traceFilePath)

			traceFile, err := os.Create(traceFilePath)
			if err != nil {
				return errorsx.Wrap(err)
			}
			defer traceFile.Close()

			config.Tracer = tracing.NewTracer(traceFile)
		}

		handle, err := tablescandal.Open(logger, *tableConn)
		if err != nil {
			return err
		}
		defer handle.Close()

		report, err := comparison.Run(context.Background(), logger, handle, config)
		if err != nil {
			return err
		}

		return report.Render(os.Stdout)
	}))
}

func setupQuery() {
	cmd := kingpin.Command("query", "run a query against a table with one strategy, and print the matching rows")
	tableConn := cmd.Arg("table", tableConnHelp).Required().String()
	whereStr := cmd.Flag("where", `filter expression, e.g. "(60 < heart_rate) & (heart_rate < 70)". Defaults to every row`).String()
	selectStr := cmd.Flag("select", "comma separated list of columns to return. Defaults to all columns").String()
	strategyStr := cmd.Flag("strategy", fmt.Sprintf("query strategy. One of %v", queryengine.AllStrategies)).Default(string(queryengine.StrategyWhere)).String()
	countOnly := cmd.Flag("count", "only print the number of matching rows").Bool()
	cmd.Action(runAction(func() errorsx.Error {
		where, err := parseOptionalFilter(*whereStr)
		if err != nil {
			return err
		}

		strategy, err := queryengine.ParseStrategy(*strategyStr)
		if err != nil {
			return err
		}

		handle, err := tablescandal.Open(logger, *tableConn)
		if err != nil {
			return err
		}
		defer handle.Close()

		query := &queryengine.Query{Select: splitColumnNames(*selectStr), Where: where}

		startTime := time.Now()
		results, err := query.Run(context.Background(), handle, strategy)
		if err != nil {
			return err
		}
		defer results.Close()

		if *countOnly {
			count, err := results.Count()
			if err != nil {
				return err
			}
			fmt.Println(count)
			logger.Info("%s: %d rows in %s", query, count, time.Since(startTime))
			return nil
		}

		fmt.Println(strings.Join(results.Schema().ColumnNames(), "\t"))

		var count int64
		for results.Next() {
			var fragments []string
			for _, value := range results.Row() {
				fragments = append(fragments, fmt.Sprintf("%v", value))
			}
			fmt.Println(strings.Join(fragments, "\t"))
			count++
		}

		err = results.Err()
		if err != nil {
			return err
		}

		logger.Info("%s: %d rows in %s", query, count, time.Since(startTime))
		return nil
	}))
}

func setupInfo() {
	cmd := kingpin.Command("info", "print information about a table")
	tableConn := cmd.Arg("table", tableConnHelp).Required().String()
	cmd.Action(runAction(func() errorsx.Error {
		handle, err := tablescandal.Open(logger, *tableConn)
		if err != nil {
			return err
		}
		defer handle.Close()

		info, err := handle.Info()
		if err != nil {
			return err
		}

		fmt.Println(info.String())
		for _, column := range info.Columns {
			fmt.Printf("\t%s: %s\n", column.Name, column.Type)
		}
		return nil
	}))
}

func setupGenerate() {
	cmd := kingpin.Command("generate", "write a synthetic vitals table to a parquet file")
	filePath := cmd.Arg("file", "parquet file to write").Required().String()
	numRows := cmd.Flag("rows", "number of rows").Default("1000000").Int64()
	seed := cmd.Flag("seed", "random seed. The same seed gives the same table").Default("1").Int64()
	rowsPerRowGroup := cmd.Flag("row-group-rows", "rows in each parquet row group").Default(fmt.Sprintf("%d", vitalsgen.DefaultRowsPerRowGroup)).Int64()
	nullFraction := cmd.Flag("null-fraction", "fraction of rows with no systolic blood pressure reading").Default(fmt.Sprintf("%v", vitalsgen.DefaultNullFraction)).Float64()
	cmd.Action(runAction(func() errorsx.Error {
		opts := vitalsgen.DefaultOptions(*numRows)
		opts.Seed = *seed
		opts.RowsPerRowGroup = *rowsPerRowGroup
		opts.NullFraction = *nullFraction

		startTime := time.Now()

		fs := gofs.NewOsFs()
		err := vitalsgen.WriteFile(fs, *filePath, opts)
		if err != nil {
			return err
		}

		fileInfo, statErr := fs.Stat(*filePath)
		if statErr != nil {
			return errorsx.Wrap(statErr)
		}

		logger.Info("wrote %d rows to %q (%s) in %s", *numRows, *filePath, humanise.HumaniseBytes(fileInfo.Size()), time.Since(startTime))
		return nil
	}))
}

var addrHelp = fmt.Sprintf(
	`address to serve on. Ex: ':%d' listen on port %d to traffic from anywhere. 'localhost:%d' listen on port %d to traffic from localhost`,
	DefaultPort, DefaultPort, DefaultPort, DefaultPort,
)

func setupServe() {
	cmd := kingpin.Command("serve", "serve the query API")
	addr := cmd.Flag("addr", addrHelp).Default(fmt.Sprintf("localhost:%d", DefaultPort)).String()
	tableConns := cmd.Arg("tables", "tables to serve, in addition to the parquet files in the data directory. "+tableConnHelp).Strings()
	dataDir := cmd.Flag("data-dir", "directory of parquet files to serve. Defaults to the data directory under "+tablescandal.DefaultRootDir).String()
	maxConcurrentScans := cmd.Flag("max-concurrent-scans", "maximum amount of queries running at the same time").Default(fmt.Sprintf("%d", webservices.DefaultMaxConcScans)).Uint()
	shouldProfile := cmd.Flag("profile", "profile the request performance").Bool()
	cmd.Action(runAction(func() errorsx.Error {
		pathsConfig, err := ensureDefaultPathsConfig()
		if err != nil {
			return err
		}

		if *dataDir == "" {
			*dataDir = pathsConfig.DataDir
		}

		tableSet := tablescandal.NewTableSet()
		err = tableSet.AddFromDir(gofs.NewOsFs(), *dataDir)
		if err != nil {
			return err
		}

		for _, tableConn := range *tableConns {
			connURL, err := tablescandal.ParseConnString(tableConn)
			if err != nil {
				return err
			}
			tableSet.Add(tablescandal.TableNameFromConnString(connURL), connURL)
		}

		logger.Info("serving tables: %v", tableSet.Names())

		router, err := createServer(pathsConfig, tableSet, *maxConcurrentScans, *shouldProfile)
		if err != nil {
			return err
		}

		server := httpextra.NewServerWithTimeouts()
		server.Addr = *addr
		server.Handler = router

		logger.Info("about to start serving on %q", *addr)

		listenErr := server.ListenAndServe()
		if listenErr != nil {
			return errorsx.Wrap(listenErr)
		}
		return nil
	}))
}

func createServer(pathsConfig *tablescandal.PathsConfig, tableSet *tablescandal.TableSet, maxConcurrentScans uint, shouldProfile bool) (chi.Router, errorsx.Error) {
	traceFilePath := filepath.Join(pathsConfig.TraceDir, fmt.Sprintf("trace_%s.pbf", time.Now().Format("2006-01-02__15_04_05")))
	logger.Info("tracing at %q", traceFilePath)

	traceFile, err := os.Create(traceFilePath)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	tracer := tracing.NewTracer(traceFile)

	router := chi.NewRouter()
	router.Use(middleware.DefaultLogger)
	router.Use(tracing.Middleware(tracer))
	router.Route("/api/", func(r chi.Router) {
		r.Mount("/info", webservices.NewInfoService(logger, tableSet))
		r.Mount("/tables/", webservices.NewQueryService(logger, tableSet, maxConcurrentScans, shouldProfile))
	})

	return router, nil
}
