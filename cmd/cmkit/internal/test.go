package internal

import (
	"fmt"
	"path/filepath"

	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cmkit/cmkit/internal/ctest"
	"github.com/cmkit/cmkit/internal/workspace"
)

var (
	testCTestArgs       string
	testRetestUntilFail int
	testRetestUntilPass int
)

var testCmd = &cobra.Command{
	Use:   "test [manifest]",
	Short: "Run the CTest suites of the workspace packages",
	Long: `Test runs ctest in the build directory of every package declared in the
workspace manifest. Packages whose tests fail are reported but do not
abort the run; build-system errors do.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTest,
}

func init() {
	testCmd.Flags().String("build-base", "", "Base directory for build directories")
	testCmd.Flags().StringVar(&testCTestArgs, "ctest-args", "", "Extra arguments passed to ctest")
	testCmd.Flags().IntVar(&testRetestUntilFail, "retest-until-fail", 0, "Repeat each test up to N extra times or until it fails")
	testCmd.Flags().IntVar(&testRetestUntilPass, "retest-until-pass", 0, "Rerun failing tests up to N times")
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	if err := bindFlag(cmd, "build_base", "build-base"); err != nil {
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

	ctestArgs, err := splitArgs(testCTestArgs)
	if err != nil {
		return fmt.Errorf("invalid --ctest-args: %w", err)
	}
	buildBase := viper.GetString("build_base")

	failed := 0
	for _, pkg := range ordered {
		log.Infof("testing CMake package %q", pkg.Name)
		res, err := ctest.Run(cmd.Context(), ctest.Options{
			BuildDir:        filepath.Join(buildBase, pkg.Name),
			CTestArgs:       ctestArgs,
			RetestUntilFail: testRetestUntilFail,
			RetestUntilPass: testRetestUntilPass,
		})
		if err != nil {
			return fmt.Errorf("failed to test %q: %w", pkg.Name, err)
		}
		switch {
		case res.TestsFailed:
			log.Warnf("package %q has failing tests", pkg.Name)
			failed++
		case res.ExitCode != 0:
			return fmt.Errorf("failed to test %q: exit code %d", pkg.Name, res.ExitCode)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d package(s) with failing tests", failed)
	}
	return nil
}
