package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/vigil/pkg/wireproto"
)

// queryFlags holds the filter flags shared by the list and restore
// commands, mirroring the query parameters GET /File/List.json accepts.
type queryFlags struct {
	hostname   string
	pathRegex  string
	owner      string
	group      string
	uid        int32
	gid        int32
	date       int64
	after      int64
	before     int64
	latestOnly bool
}

func registerQueryFlags(cmd *cobra.Command, f *queryFlags) {
	cmd.Flags().StringVar(&f.hostname, "hostname", "", "client hostname to query (required)")
	cmd.Flags().StringVar(&f.pathRegex, "path", "", "regular expression matched against the full path")
	cmd.Flags().StringVar(&f.owner, "owner", "", "filter by recorded owner name")
	cmd.Flags().StringVar(&f.group, "group", "", "filter by recorded group name")
	cmd.Flags().Int32Var(&f.uid, "uid", -1, "filter by uid (-1 disables the filter)")
	cmd.Flags().Int32Var(&f.gid, "gid", -1, "filter by gid (-1 disables the filter)")
	cmd.Flags().Int64Var(&f.date, "date", 0, "exact mtime to match, as a unix timestamp (0 disables the filter)")
	cmd.Flags().Int64Var(&f.after, "after", 0, "only records with mtime strictly after this unix timestamp")
	cmd.Flags().Int64Var(&f.before, "before", 0, "only records with mtime strictly before this unix timestamp")
	cmd.Flags().BoolVar(&f.latestOnly, "latest", true, "keep only the highest-mtime record per path")
	_ = cmd.MarkFlagRequired("hostname")
}

func (f queryFlags) toQuery() (wireproto.FileListQuery, error) {
	if f.hostname == "" {
		return wireproto.FileListQuery{}, fmt.Errorf("--hostname is required")
	}
	q := wireproto.FileListQuery{
		Hostname:   f.hostname,
		Owner:      f.owner,
		Group:      f.group,
		PathRegex:  f.pathRegex,
		LatestOnly: f.latestOnly,
	}
	if f.uid >= 0 {
		uid := uint32(f.uid)
		q.UID = &uid
	}
	if f.gid >= 0 {
		gid := uint32(f.gid)
		q.GID = &gid
	}
	if f.date != 0 {
		q.ExactDate = &f.date
	}
	if f.after != 0 {
		q.AfterDate = &f.after
	}
	if f.before != 0 {
		q.BeforeDate = &f.before
	}
	return q, nil
}
