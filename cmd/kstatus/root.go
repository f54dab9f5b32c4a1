package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	root := &cobra.Command{
		Use:   "kstatus",
		Short: "Read-only HTTP status API for a Kubernetes cluster",
		Long: `kstatus exposes pods, deployments, statefulsets, jobs, namespaces,
pod logs and events of one cluster as small JSON summaries behind a bearer
token.

When run without a subcommand it behaves like 'kstatus serve'.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          serve.RunE,
	}
	root.SetVersionTemplate(`{{printf "kstatus version %s\n" .Version}}`)

	// The root command shares the serve flags so the bare binary works.
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve)
	root.AddCommand(newVersionCmd())
	return root
}
