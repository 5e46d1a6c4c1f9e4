// cmd/twig/main.go
package main

import (
	"fmt"
	"os"

	twigerrors "twig/internal/errors"
	"twig/internal/repo"

	"github.com/spf13/cobra"
)

var repoDir string

var rootCmd = &cobra.Command{
	Use:   "twig",
	Short: "Twig is a small content-addressed version control system",
	Long: `Twig stores snapshots of a working tree as content-addressed commits,
keeps named branches pointing into the commit graph, and merges diverged
branches with three-way conflict detection.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&repoDir, "dir", "C", "", "run as if started in this directory")
}

func workingDir() (string, error) {
	if repoDir != "" {
		return repoDir, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return dir, nil
}

// withRepo opens the repository for the duration of fn.
func withRepo(fn func(r *repo.Repo) error) (err error) {
	dir, err := workingDir()
	if err != nil {
		return err
	}

	r, err := repo.Open(dir, repo.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); err == nil {
			err = cerr
		}
	}()

	return fn(r)
}

// exactArgs rejects a wrong argument count the same way as any other
// misuse of a command.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return twigerrors.InvalidOperands("Incorrect operands.")
		}
		return nil
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// user errors are reported and the command still succeeds
		if e, ok := twigerrors.As(err); ok {
			fmt.Println(e.Message)
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
