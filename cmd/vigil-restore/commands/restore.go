package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/vigil/internal/logger"
	"github.com/marmos91/vigil/pkg/config"
	"github.com/marmos91/vigil/pkg/metalog"
)

var (
	restoreFlags  queryFlags
	restoreOutput string
	restoreForce  bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Reconstruct matching files on disk",
	Long: `Restore fetches every metadata record matching the given filters,
re-fetches and verifies each record's blocks from the object store, and
writes the reassembled files to --output with their original mode,
ownership, and timestamps.

When the filters match exactly one record, --output names the
destination file directly. When they match more than one, --output
names a destination directory and each file is written at its original
path underneath it.

Examples:
  # Restore the latest version of one file
  vigil-restore restore --hostname host1 --path '^/tmp/x$' --output /tmp/restored-x

  # Restore the version saved at a specific time
  vigil-restore restore --hostname host1 --path '^/tmp/x$' --date 1700000000 --output /tmp/restored-x

  # Restore every file under /etc to a local directory
  vigil-restore restore --hostname host1 --path '^/etc/' --output ./etc-restore

  # Restore with force (skip confirmation)
  vigil-restore restore --hostname host1 --path '^/etc/' --output ./etc-restore --force`,
	RunE: runRestore,
}

func init() {
	registerQueryFlags(restoreCmd, &restoreFlags)
	restoreCmd.Flags().StringVar(&restoreOutput, "output", "", "destination file or directory (required)")
	restoreCmd.Flags().BoolVar(&restoreForce, "force", false, "skip the overwrite confirmation prompt")
	_ = restoreCmd.MarkFlagRequired("output")
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	engine, closeFn, err := openServerState(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	q, err := restoreFlags.toQuery()
	if err != nil {
		return err
	}

	ctx := context.Background()
	records, err := engine.List(ctx, q)
	if err != nil {
		return fmt.Errorf("restore: list matching records: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("restore: no records matched the given filters")
	}

	if !restoreForce {
		fmt.Printf("WARNING: this will overwrite %s if it already exists.\n", restoreOutput)
		fmt.Printf("  Matching records: %d\n", len(records))
		fmt.Printf("\nType 'yes' to continue: ")

		var response string
		if _, err := fmt.Scanln(&response); err != nil || strings.ToLower(response) != "yes" {
			return fmt.Errorf("restore: cancelled")
		}
	}

	restored := 0
	for _, r := range records {
		dest, err := destinationFor(r, restoreOutput, len(records))
		if err != nil {
			return err
		}
		if err := engine.RestoreFile(ctx, r, dest); err != nil {
			return fmt.Errorf("restore: %s: %w", r.Path, err)
		}
		logger.Info("restored file", "path", r.Path, "dest", dest, "size", r.Size)
		restored++
	}

	fmt.Printf("restored %d file(s) to %s\n", restored, restoreOutput)
	return nil
}

// destinationFor maps a matched record to a filesystem path under
// output. A single match writes directly to output; multiple matches
// write under output, preserving each record's original relative path.
func destinationFor(r metalog.Record, output string, matchCount int) (string, error) {
	if matchCount == 1 {
		return output, nil
	}
	if err := os.MkdirAll(output, 0o755); err != nil {
		return "", fmt.Errorf("restore: create output directory %s: %w", output, err)
	}
	return filepath.Join(output, r.Path), nil
}
