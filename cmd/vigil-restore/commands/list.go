package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/vigil/internal/cliout"
	"github.com/marmos91/vigil/pkg/config"
	"github.com/marmos91/vigil/pkg/metalog"
)

// recordTable adapts a slice of metadata records to cliout.TableRenderer.
type recordTable []metalog.Record

func (rt recordTable) Headers() []string {
	return []string{"TYPE", "SIZE", "OWNER", "PATH", "MTIME"}
}

func (rt recordTable) Rows() [][]string {
	rows := make([][]string, 0, len(rt))
	for _, r := range rt {
		rows = append(rows, []string{
			r.Type,
			strconv.FormatInt(r.Size, 10),
			r.Owner,
			r.Path,
			time.Unix(r.Mtime, 0).Format(time.RFC3339),
		})
	}
	return rows
}

var listFlags queryFlags

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List metadata records matching a set of filters",
	Long: `List every metadata record a vigil-server holds for a host, optionally
narrowed by path, owner, or a date range, the same way GET
/File/List.json would.

Examples:
  # Every version of every file saved by host1
  vigil-restore list --hostname host1 --latest=false

  # Only the latest version of each path under /etc
  vigil-restore list --hostname host1 --path '^/etc/' --latest`,
	RunE: runList,
}

func init() {
	registerQueryFlags(listCmd, &listFlags)
}

func runList(cmd *cobra.Command, args []string) error {
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

	q, err := listFlags.toQuery()
	if err != nil {
		return err
	}

	records, err := engine.List(context.Background(), q)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("no matching records")
		return nil
	}
	cliout.PrintTable(cmd.OutOrStdout(), recordTable(records))
	return nil
}
