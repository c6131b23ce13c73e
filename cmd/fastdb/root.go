package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/pprof"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/felixge/fgprof"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/meigma/fastdb"
	s3src "github.com/meigma/fastdb/core/s3"
)

// Environment variables that provide flag defaults, usually from .env.
const (
	envCacheDir     = "FASTDB_CACHE_DIR"
	envDownloadRate = "FASTDB_DOWNLOAD_RATE"
	envPlainHTTP    = "FASTDB_PLAIN_HTTP"
	envMinio        = "FASTDB_MINIO_ENDPOINT"
	envMinioAccess  = "FASTDB_MINIO_ACCESS_KEY"
	envMinioSecret  = "FASTDB_MINIO_SECRET_KEY"
	envMinioSecure  = "FASTDB_MINIO_SECURE"
	envS3Endpoint   = "FASTDB_S3_ENDPOINT"
	envS3Region     = "FASTDB_S3_REGION"
)

// app holds the global flags and the resources built from them.
type app struct {
	stdout io.Writer
	stderr io.Writer

	verbose      bool
	noColor      bool
	cacheDir     string
	downloadRate string
	plainHTTP    bool
	minioURL     string
	minioAccess  string
	minioSecret  string
	minioSecure  bool
	s3Endpoint   string
	s3Region     string
	fgprofPath   string
	cpuProfile   string

	logger   *slog.Logger
	profiles []func() error
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	rc := &cobra.Command{
		Use:   "fastdb",
		Short: "Build, inspect and distribute fastdb databases.",
		Long: `Build, inspect and distribute fastdb databases.

Locations may be local paths or file://, http(s)://, s3://bucket/key,
minio://bucket/key and oci://registry/repo:tag URLs. Flag defaults are
read from FASTDB_* environment variables and a .env file in the working
directory.`,
		SilenceUsage:       true,
		PersistentPreRunE:  func(*cobra.Command, []string) error { return a.setup() },
		PersistentPostRunE: func(*cobra.Command, []string) error { return a.teardown() },
	}

	f := rc.PersistentFlags()
	f.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output")
	f.BoolVar(&a.noColor, "no-color", false, "disable colored log output")
	f.StringVar(&a.cacheDir, "cache-dir", os.Getenv(envCacheDir), "disk cache for remote databases")
	f.StringVar(&a.downloadRate, "download-rate", os.Getenv(envDownloadRate), "limit remote downloads, e.g. 10MB (per second)")
	f.BoolVar(&a.plainHTTP, "plain-http", envBool(envPlainHTTP), "talk to OCI registries over plain HTTP")
	f.StringVar(&a.minioURL, "minio-endpoint", os.Getenv(envMinio), "MinIO endpoint (host:port) for minio:// locations")
	f.StringVar(&a.minioAccess, "minio-access-key", os.Getenv(envMinioAccess), "MinIO access key")
	f.StringVar(&a.minioSecret, "minio-secret-key", os.Getenv(envMinioSecret), "MinIO secret key")
	f.BoolVar(&a.minioSecure, "minio-secure", envBool(envMinioSecure), "use TLS for MinIO")
	f.StringVar(&a.s3Endpoint, "s3-endpoint", os.Getenv(envS3Endpoint), "S3 endpoint override (implies path-style addressing)")
	f.StringVar(&a.s3Region, "s3-region", os.Getenv(envS3Region), "S3 region")
	f.StringVar(&a.fgprofPath, "fgprofile", "", "write an fgprof (wall clock) profile to file")
	f.StringVar(&a.cpuProfile, "cpuprofile", "", "write a CPU profile to file")

	rc.AddCommand(
		newDumpCommand(a),
		newChunkCommand(a),
		newMakeCommand(a),
		newPushCommand(a),
		newPullCommand(a),
		newTilesCommand(a),
		newCatalogCommand(a),
	)

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

func envBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "yes":
		return true
	default:
		return false
	}
}

func (a *app) setup() error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(tint.NewHandler(a.stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    a.noColor || a.stderr != os.Stderr,
	}))

	if a.fgprofPath != "" {
		f, err := os.Create(a.fgprofPath)
		if err != nil {
			return fmt.Errorf("fgprofile: %w", err)
		}
		stop := fgprof.Start(f, fgprof.FormatPprof)
		a.profiles = append(a.profiles, func() error {
			return errors.Join(stop(), f.Close())
		})
	}
	if a.cpuProfile != "" {
		f, err := os.Create(a.cpuProfile)
		if err != nil {
			return errors.Join(fmt.Errorf("cpuprofile: %w", err), a.teardown())
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return errors.Join(fmt.Errorf("cpuprofile: %w", err), f.Close(), a.teardown())
		}
		a.profiles = append(a.profiles, func() error {
			pprof.StopCPUProfile()
			return f.Close()
		})
	}
	return nil
}

// teardown stops the profilers started by setup.
func (a *app) teardown() error {
	var errs []error
	for _, stop := range a.profiles {
		errs = append(errs, stop())
	}
	a.profiles = nil
	return errors.Join(errs...)
}

// client builds a fastdb client from the global flags.
func (a *app) client() (*fastdb.Client, error) {
	opts := []fastdb.Option{
		fastdb.WithLogger(a.logger),
		fastdb.WithPlainHTTP(a.plainHTTP),
	}
	if a.cacheDir != "" {
		opts = append(opts, fastdb.WithCacheDir(a.cacheDir))
	}
	if a.downloadRate != "" {
		bps, err := humanize.ParseBytes(a.downloadRate)
		if err != nil {
			return nil, fmt.Errorf("download rate: %w", err)
		}
		opts = append(opts, fastdb.WithDownloadRate(int(bps))) //nolint:gosec // rates beyond MaxInt are not meaningful
	}
	if a.minioURL != "" {
		opts = append(opts, fastdb.WithMinio(a.minioURL, a.minioAccess, a.minioSecret, a.minioSecure))
	}
	if a.s3Endpoint != "" || a.s3Region != "" {
		opts = append(opts, fastdb.WithS3Config(s3src.ClientConfig{
			Region:    a.s3Region,
			Endpoint:  a.s3Endpoint,
			PathStyle: a.s3Endpoint != "",
		}))
	}
	return fastdb.NewClient(opts...)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}
