package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/muesli/coral"
	"golang.org/x/exp/slog"

	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/config"
	"github.com/ocflkit/ocfl/logging"
	"github.com/ocflkit/ocfl/repo"
)

// rootFlags holds the persistent, repository-selecting flags shared by
// every subcommand.
var rootFlags = struct {
	cfgFile     string
	repoName    string
	root        string
	bucket      string
	region      string
	endpoint    string
	stagingRoot string
	quiet       bool
}{}

var rootCmd = &coral.Command{
	Use:           "ocfl",
	Short:         "A command line client for OCFL storage roots",
	Long:          "ocfl inspects, validates, and updates OCFL 1.0 storage roots and objects.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.cfgFile, "config", "c", "", "config file (default $HOME/.ocfl/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootFlags.repoName, "repo", "r", "", "named repository from the config file to use")
	rootCmd.PersistentFlags().StringVar(&rootFlags.root, "root", "", "storage root path (local driver)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.bucket, "bucket", "", "storage root bucket (s3 driver)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.region, "region", "", "s3 region")
	rootCmd.PersistentFlags().StringVar(&rootFlags.endpoint, "endpoint", "", "s3-compatible endpoint")
	rootCmd.PersistentFlags().StringVar(&rootFlags.stagingRoot, "staging-root", "", "override the extensions directory used for staging drafts")
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.quiet, "quiet", "q", false, "suppress log output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(purgeCmd)
}

// usageError marks a failure in the invocation itself (bad arguments, bad
// flag combination) rather than a failure encountered while doing the
// work, so run can map it to the invalid-invocation exit code.
type usageError struct{ err error }

func (u *usageError) Error() string { return u.err.Error() }
func (u *usageError) Unwrap() error { return u.err }

func usageErrorf(format string, a ...any) error {
	return &usageError{err: fmt.Errorf(format, a...)}
}

func run() int {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		var u *usageError
		if errors.As(err, &u) {
			return 2
		}
		return 1
	}
	return 0
}

func cliLogger() *slog.Logger {
	if rootFlags.quiet {
		return logging.Disabled()
	}
	return logging.Default()
}

// openRepo resolves the active repository config (from --root/--bucket/...
// flags, falling back to the named or default entry in the config file)
// and opens it.
func openRepo(ctx context.Context) (*repo.Repo, error) {
	rc, err := repoConfig()
	if err != nil {
		return nil, err
	}
	log := cliLogger()
	fsys, err := rc.Open(ctx, log)
	if err != nil {
		return nil, err
	}
	opts := []repo.Option{repo.WithLogger(log)}
	if rootFlags.stagingRoot != "" {
		opts = append(opts, repo.WithStagingDir(rootFlags.stagingRoot))
	}
	return repo.Open(ctx, fsys, ".", opts...)
}

// repoConfig builds a config.RepoConfig from the persistent flags, falling
// back to the config file's named (or default) entry for anything a flag
// didn't set.
func repoConfig() (*config.RepoConfig, error) {
	cfgPath := rootFlags.cfgFile
	if cfgPath == "" {
		var err error
		cfgPath, err = config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	rc, err := cfg.Repo(rootFlags.repoName)
	if err != nil {
		rc = &config.RepoConfig{Driver: config.DriverLocal, Root: "."}
	}
	if rootFlags.root != "" {
		rc.Driver = config.DriverLocal
		rc.Root = rootFlags.root
	}
	if rootFlags.bucket != "" {
		rc.Driver = config.DriverS3
		rc.Bucket = rootFlags.bucket
	}
	if rootFlags.region != "" {
		rc.Region = rootFlags.region
	}
	if rootFlags.endpoint != "" {
		rc.Endpoint = rootFlags.endpoint
	}
	return rc, nil
}

// committer builds the user to attach to a new version from the config
// file's default identity, unless name overrides it.
func committer(name, address string) (*ocfl.User, error) {
	if name != "" {
		return &ocfl.User{Name: name, Address: address}, nil
	}
	cfgPath := rootFlags.cfgFile
	if cfgPath == "" {
		var err error
		cfgPath, err = config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if cfg.User.Name == "" {
		return nil, nil
	}
	return &ocfl.User{Name: cfg.User.Name, Address: cfg.User.Address}, nil
}
