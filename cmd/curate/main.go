// Command curate filters a conda-style channel index down to a curated
// subset: packages that satisfy user-supplied version constraints, carry
// no banned feature, respect dev/rc policy, are compatible with the target
// architecture, stay mutually compatible with any named root packages, and
// have a fully resolvable dependency closure.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/docker/go-units"
	"github.com/karrick/godirwalk"

	"github.com/pkgrelations/curate/internal/clog"
	"github.com/pkgrelations/curate/internal/config"
	"github.com/pkgrelations/curate/internal/curation"
	"github.com/pkgrelations/curate/internal/fetch"
	"github.com/pkgrelations/curate/internal/matchspec"
	"github.com/pkgrelations/curate/internal/pipeline"
)

const defaultChannelAlias = "https://conda.anaconda.org/conda-forge"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) (exitCode int) {
	out := clog.New(stdout)
	errOut := clog.New(stderr)

	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(*curation.InvariantError); ok {
				errOut.LogCuratefln("internal error: %s", ie.Error())
				exitCode = 2
				return
			}
			panic(r)
		}
	}()

	var banFeatures, mustCompatWith, architectures []string
	var explain bool
	var outputDir string
	fs := flag.NewFlagSet("curate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Var(&repeatableFlag{&banFeatures}, "F", "ban a feature tag (repeatable)")
	fs.Var(&repeatableFlag{&banFeatures}, "ban-feature", "ban a feature tag (repeatable)")
	fs.Var(&repeatableFlag{&mustCompatWith}, "C", "require mutual compatibility with this package's surviving variants (repeatable)")
	fs.Var(&repeatableFlag{&mustCompatWith}, "must-compatible-with", "require mutual compatibility with this package's surviving variants (repeatable)")
	fs.Var(&repeatableFlag{&architectures}, "a", "restrict to this architecture (repeatable; default: all known architectures)")
	fs.Var(&repeatableFlag{&architectures}, "architecture", "restrict to this architecture (repeatable; default: all known architectures)")
	keepDev := fs.Bool("keep-dev", false, "keep dev versions (default: banned)")
	keepRC := fs.Bool("keep-rc", false, "keep rc versions (default: banned)")
	channelAlias := fs.String("channel-alias", defaultChannelAlias, "channel base URL")
	offline := fs.Bool("offline", false, "use the local cache only, no network")
	fs.BoolVar(&explain, "e", false, "emit one line per removal")
	fs.BoolVar(&explain, "explain", false, "emit one line per removal")
	fs.StringVar(&outputDir, "o", "out", "output directory")
	fs.StringVar(&outputDir, "output-dir", "out", "output directory")
	verbose := fs.Bool("v", false, "enable the pass-by-pass tracer")
	fs.BoolVar(verbose, "verbose", false, "enable the pass-by-pass tracer")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	positional := fs.Args()
	if len(positional) != 1 {
		fmt.Fprintln(stderr, "usage: curate [flags] <constraints-file>")
		fs.PrintDefaults()
		return 1
	}
	constraintsPath := positional[0]

	for _, a := range architectures {
		if a == "noarch" {
			errOut.LogCuratefln("-a noarch is not allowed: noarch is handled implicitly")
			return 1
		}
	}
	if len(architectures) == 0 {
		architectures = knownArchitectures
	}

	alias := *channelAlias
	if !strings.HasSuffix(alias, "/") {
		alias += "/"
	}

	cache := matchspec.NewCache(4096)

	userConstraints, err := config.LoadUserConstraints(constraintsPath, cache)
	if err != nil {
		errOut.LogCuratefln("user matchspec parse: %v", err)
		return 1
	}

	settings, err := config.LoadSettings(".curaterc.toml")
	if err != nil {
		errOut.LogCuratefln("config: %v", err)
		return 1
	}

	f, err := fetch.New(settings.CacheDir, alias, *offline, settings.HTTPTimeout)
	if err != nil {
		errOut.LogCuratefln("fetch: %v", err)
		return 1
	}
	defer f.Close()

	banned := make(map[string]struct{}, len(banFeatures))
	for _, feat := range banFeatures {
		banned[feat] = struct{}{}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	d := &pipeline.Driver{
		Fetcher: f,
		Cache:   cache,
		Tracer:  clog.NewTracer(out, *verbose),
		Out:     out,
		Opts: pipeline.Options{
			UserConstraints:    userConstraints,
			BannedFeatures:     banned,
			MustCompatibleWith: mustCompatWith,
			BanDev:             !*keepDev,
			BanRC:              !*keepRC,
			ChannelAlias:       alias,
			OutputDir:          outputDir,
			Explain:            explain,
			Workers:            settings.Workers,
		},
	}

	if err := d.Run(ctx, architectures); err != nil {
		errOut.LogCuratefln("%v", err)
		return 1
	}

	size, _ := dirSize(outputDir)
	out.LogCuratefln("wrote %d architectures (%s) to %s", len(architectures), units.HumanSize(float64(size)), outputDir)
	return 0
}

// dirSize sums the byte size of every regular file under dir, walked with
// godirwalk rather than filepath.Walk to avoid a Lstat per entry on
// platforms where the directory read already reports the node type.
func dirSize(dir string) (int64, error) {
	var total int64
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			info, err := os.Stat(osPathname)
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		},
	})
	return total, err
}
