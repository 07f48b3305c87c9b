// Package cli implements forgectl, the operator command line for a running
// ThreatForge API.
//
// Command structure:
//
//	forgectl
//	├── jobs list|get|cancel|submit|stats
//	├── evict jobs|cache  --older-than
//	├── cache stats
//	├── files cleanup|stats|verify
//	└── providers
//
// The server address comes from --server or FORGECTL_SERVER.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/timmy/threatforge/internal/domain"
)

const defaultServer = "http://localhost:8080"

type options struct {
	server  string
	timeout time.Duration
	out     io.Writer
}

func (o *options) client() *Client {
	return NewClient(o.server, o.timeout)
}

func (o *options) print(v interface{}) error {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// BuildCLI returns the root command writing results to out.
func BuildCLI(out io.Writer) *cobra.Command {
	opts := &options{out: out}

	server := os.Getenv("FORGECTL_SERVER")
	if server == "" {
		server = defaultServer
	}

	rootCmd := &cobra.Command{
		Use:           "forgectl",
		Short:         "Operate a ThreatForge API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       "1.0.0",
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVarP(&opts.server, "server", "s", server, "API base URL")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	rootCmd.AddCommand(buildJobsCommand(opts))
	rootCmd.AddCommand(buildEvictCommand(opts))
	rootCmd.AddCommand(buildCacheCommand(opts))
	rootCmd.AddCommand(buildFilesCommand(opts))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "providers",
		Short: "List configured LLM providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			providers, err := opts.client().Providers(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(providers)
		},
	})

	return rootCmd
}

func buildJobsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Inspect and manage async jobs"}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobs, err := opts.client().ListJobs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return opts.print(jobs)
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 50, "maximum jobs to show")

	get := &cobra.Command{
		Use:   "get JOB_ID",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := opts.client().GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.print(job)
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Cancel a pending or processing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().CancelJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(opts.out, "job %s cancelled\n", args[0])
			return err
		},
	}

	var (
		req  domain.ThreatModelJobRequest
		wait time.Duration
	)
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Submit an async threat model job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := opts.client()
			sub, err := c.SubmitJob(cmd.Context(), req)
			if err != nil {
				return err
			}
			if wait <= 0 {
				return opts.print(sub)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			job, err := c.WaitJob(ctx, sub.JobID, 500*time.Millisecond)
			if err != nil {
				return err
			}
			return opts.print(job)
		},
	}
	submit.Flags().StringVar(&req.Content, "content", "", "system description to analyse")
	submit.Flags().StringVar((*string)(&req.Framework), "framework", "", "STRIDE, LINDDUN, PASTA or \"Attack Trees\"")
	submit.Flags().StringVar(&req.FileID, "file-id", "", "uploaded diagram id")
	submit.Flags().StringVar(&req.LLMProvider, "provider", "", "LLM provider")
	submit.Flags().StringVar((*string)(&req.Priority), "priority", "", "low, normal or high")
	submit.Flags().DurationVar(&wait, "wait", 0, "poll until the job finishes or this much time passes")
	_ = submit.MarkFlagRequired("content")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count jobs by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.client().JobStats(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(s)
		},
	}

	cmd.AddCommand(list, get, cancel, submit, stats)
	return cmd
}

func buildEvictCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "evict", Short: "Run retention sweeps"}

	var jobsAge, cacheAge time.Duration
	jobs := &cobra.Command{
		Use:   "jobs",
		Short: "Remove finished jobs older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := opts.client().EvictJobs(cmd.Context(), jobsAge)
			if err != nil {
				return err
			}
			return opts.print(res)
		},
	}
	jobs.Flags().DurationVar(&jobsAge, "older-than", 0, "age threshold (server default when unset)")

	cache := &cobra.Command{
		Use:   "cache",
		Short: "Remove cached results older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := opts.client().EvictCache(cmd.Context(), cacheAge)
			if err != nil {
				return err
			}
			return opts.print(res)
		},
	}
	cache.Flags().DurationVar(&cacheAge, "older-than", 0, "age threshold (server default when unset)")

	cmd.AddCommand(jobs, cache)
	return cmd
}

func buildCacheCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Inspect the result cache"}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache size and hit rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.client().CacheStats(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(s)
		},
	})
	return cmd
}

func buildFilesCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "files", Short: "Maintain uploaded diagrams"}

	var age time.Duration
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete uploads older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := opts.client().CleanupFiles(cmd.Context(), age)
			if err != nil {
				return err
			}
			return opts.print(res)
		},
	}
	cleanup.Flags().DurationVar(&age, "older-than", 0, "age threshold (server default when unset)")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Summarise stored uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.client().FileStats(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(s)
		},
	}

	verify := &cobra.Command{
		Use:   "verify FILE_ID",
		Short: "Re-hash a stored upload and compare it to its recorded hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.client().VerifyFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.print(r)
		},
	}

	cmd.AddCommand(cleanup, stats, verify)
	return cmd
}
