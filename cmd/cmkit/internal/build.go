package internal

import (
	"fmt"
	"path/filepath"

	"github.com/google/shlex"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cmkit/cmkit/internal/build"
	"github.com/cmkit/cmkit/internal/cmake"
	"github.com/cmkit/cmkit/internal/compilecmds"
	"github.com/cmkit/cmkit/internal/workspace"
)

var (
	buildCMakeArgs      string
	buildTarget         string
	buildSkipTarget     bool
	buildCleanCache     bool
	buildCleanFirst     bool
	buildForceConfigure bool
	buildJobs           int
)

var buildCmd = &cobra.Command{
	Use:   "build [manifest]",
	Short: "Build the workspace packages in dependency order",
	Long: `Build configures, builds and installs every package declared in the
workspace manifest, dependencies first. After the run the per-package
compile command databases are merged into one file under the build base.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().String("build-base", "", "Base directory for build directories")
	buildCmd.Flags().String("install-base", "", "Base directory for install prefixes")
	buildCmd.Flags().StringVar(&buildCMakeArgs, "cmake-args", "", "Extra arguments passed to the CMake configure step")
	buildCmd.Flags().StringVar(&buildTarget, "cmake-target", "", "Build a specific target instead of the default target")
	buildCmd.Flags().BoolVar(&buildSkipTarget, "cmake-target-skip-unavailable", false, "Skip packages which don't have the target passed to --cmake-target")
	buildCmd.Flags().BoolVar(&buildCleanCache, "cmake-clean-cache", false, "Remove the CMake cache before the build (implicitly forcing the configure step)")
	buildCmd.Flags().BoolVar(&buildCleanFirst, "cmake-clean-first", false, "Build target 'clean' first, then build")
	buildCmd.Flags().BoolVar(&buildForceConfigure, "cmake-force-configure", false, "Force the CMake configure step")
	buildCmd.Flags().IntVar(&buildJobs, "cmake-jobs", 0, "Job limit for supported generators; negative values subtract from the available cores")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	if err := bindFlag(cmd, "build_base", "build-base"); err != nil {
		return err
	}
	if err := bindFlag(cmd, "install_base", "install-base"); err != nil {
		return err
	}

	manifestPath := viper.GetString("manifest")
	if len(args) == 1 {
		manifestPath = args[0]
	}
	manifest, err := workspace.Load(manifestPath)
	if err != nil {
		return err
	}
	ordered, err := manifest.BuildOrder()
	if err != nil {
		return err
	}

	cmakeArgs, err := splitArgs(buildCMakeArgs)
	if err != nil {
		return fmt.Errorf("invalid --cmake-args: %w", err)
	}

	buildBase := viper.GetString("build_base")
	installBase := viper.GetString("install_base")
	versions := cmake.NewVersionCache()

	aggregator := compilecmds.New()
	for _, pkg := range ordered {
		aggregator.RecordKnown(pkg.Name)
	}
	defer func() {
		if err := aggregator.Finalize(buildBase); err != nil {
			log.Errorf("failed to aggregate %s: %v", compilecmds.FileName, err)
		}
	}()

	for _, pkg := range ordered {
		log.Infof("building CMake package %q in %q", pkg.Name, pkg.Path)
		task := build.NewTask(build.Options{
			BuildDir:              filepath.Join(buildBase, pkg.Name),
			SourceDir:             pkg.Path,
			InstallDir:            filepath.Join(installBase, pkg.Name),
			CMakeArgs:             cmakeArgs,
			Target:                buildTarget,
			TargetSkipUnavailable: buildSkipTarget,
			CleanCache:            buildCleanCache,
			CleanFirst:            buildCleanFirst,
			ForceConfigure:        buildForceConfigure,
			Jobs:                  buildJobs,
			JobsSet:               cmd.Flags().Changed("cmake-jobs"),
			Versions:              versions,
		})
		res, err := task.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to build %q: %w", pkg.Name, err)
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("failed to build %q: exit code %d", pkg.Name, res.ExitCode)
		}
	}
	return nil
}

// bindFlag connects a command flag to its viper key. Binding happens at
// run time so that commands sharing a key do not shadow each other's
// flags at init.
func bindFlag(cmd *cobra.Command, key, flag string) error {
	f := cmd.Flags().Lookup(flag)
	if f == nil {
		return fmt.Errorf("unknown flag --%s", flag)
	}
	return viper.BindPFlag(key, f)
}

// splitArgs splits a shell-quoted argument string.
func splitArgs(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	return shlex.Split(s)
}
