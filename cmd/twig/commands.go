package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"twig/client"
	"twig/internal/api"
	twigerrors "twig/internal/errors"
	"twig/internal/middleware"
	"twig/internal/repo"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create an empty repository in the current directory",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := workingDir()
			if err != nil {
				return err
			}
			r, err := repo.Init(dir, repo.Options{})
			if err != nil {
				return err
			}
			fmt.Println("Initialized empty twig repository in", r.Root)
			return r.Close()
		},
	}

	var addCmd = &cobra.Command{
		Use:   "add <file>",
		Short: "Stage a file for the next commit",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				return r.Add(args[0])
			})
		},
	}

	var commitCmd = &cobra.Command{
		Use:   "commit <message>",
		Short: "Record the staged changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return twigerrors.InvalidOperands("Please enter a commit message.")
			}
			if len(args) > 1 {
				return twigerrors.InvalidOperands("Incorrect operands.")
			}
			return withRepo(func(r *repo.Repo) error {
				_, err := r.Commit(args[0])
				return err
			})
		},
	}

	var rmCmd = &cobra.Command{
		Use:   "rm <file>",
		Short: "Unstage a file, or stage its removal if it is tracked",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				return r.Remove(args[0])
			})
		},
	}

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "Show the current branch history",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote, _ := cmd.Flags().GetString("remote"); remote != "" {
				entries, err := client.New(remote).Log()
				if err != nil {
					return err
				}
				printLog(entries)
				return nil
			}
			return withRepo(func(r *repo.Repo) error {
				entries, err := r.Log()
				if err != nil {
					return err
				}
				printLog(entries)
				return nil
			})
		},
	}
	logCmd.Flags().String("remote", "", "read from a running twig serve at this URL")

	var globalLogCmd = &cobra.Command{
		Use:   "global-log",
		Short: "Show every commit ever made",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				entries, err := r.GlobalLog()
				if err != nil {
					return err
				}
				printLog(entries)
				return nil
			})
		},
	}

	var findCmd = &cobra.Command{
		Use:   "find <message>",
		Short: "Print the ids of commits with the given message",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				ids, err := r.Find(args[0])
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Println(id)
				}
				return nil
			})
		},
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show branches, staged files and working tree changes",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			watch, _ := cmd.Flags().GetBool("watch")
			if remote, _ := cmd.Flags().GetString("remote"); remote != "" {
				if watch {
					return twigerrors.InvalidOperands("Incorrect operands.")
				}
				st, err := client.New(remote).Status()
				if err != nil {
					return err
				}
				printStatus(st)
				return nil
			}
			return withRepo(func(r *repo.Repo) error {
				if err := showStatus(r); err != nil {
					return err
				}
				if !watch {
					return nil
				}
				return watchStatus(cmd.Context(), r)
			})
		},
	}
	statusCmd.Flags().BoolP("watch", "w", false, "print the status again whenever the working tree changes")
	statusCmd.Flags().String("remote", "", "read from a running twig serve at this URL")

	var checkoutCmd = &cobra.Command{
		Use:   "checkout <branch> | <commit> -- <file> | -- <file>",
		Short: "Switch branches or restore a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			dash := cmd.ArgsLenAtDash()
			return withRepo(func(r *repo.Repo) error {
				switch {
				case dash == -1 && len(args) == 1:
					return r.CheckoutBranch(args[0])
				case dash == 0 && len(args) == 1:
					return r.CheckoutFile(args[0])
				case dash == 1 && len(args) == 2:
					return r.CheckoutCommitFile(args[0], args[1])
				}
				return twigerrors.InvalidOperands("Incorrect operands.")
			})
		},
	}

	var branchCmd = &cobra.Command{
		Use:   "branch <name>",
		Short: "Create a branch at the current head",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				return r.Branch(args[0])
			})
		},
	}

	var rmBranchCmd = &cobra.Command{
		Use:   "rm-branch <name>",
		Short: "Delete a branch pointer",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				return r.RemoveBranch(args[0])
			})
		},
	}

	var resetCmd = &cobra.Command{
		Use:   "reset <commit>",
		Short: "Check out a commit and move the current branch to it",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				return r.Reset(args[0])
			})
		},
	}

	var mergeCmd = &cobra.Command{
		Use:   "merge <branch>",
		Short: "Merge a branch into the current branch",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				res, err := r.Merge(args[0])
				if err != nil {
					return err
				}
				printMerge(res)
				return nil
			})
		},
	}

	var diffCmd = &cobra.Command{
		Use:   "diff [file...]",
		Short: "Show working tree changes against the current head",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				results, err := r.Diff(args...)
				if err != nil {
					return err
				}
				printDiffs(results)
				return nil
			})
		},
	}

	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only JSON view of the repository",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				return serve(cmd.Context(), r)
			})
		},
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(globalLogCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(rmBranchCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(serveCmd)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func watchStatus(parent context.Context, r *repo.Repo) error {
	ctx, stop := signalContext(parent)
	defer stop()

	// editors emit bursts of events; redraw once things settle
	var timer *time.Timer
	redraw := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-redraw:
				fmt.Println()
				if err := showStatus(r); err != nil {
					r.Logger.Error("refreshing status", zap.Error(err))
				}
			}
		}
	}()

	return r.Tree.Watch(ctx, r.Logger.Logger, func(path string) {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(200*time.Millisecond, func() {
			select {
			case redraw <- struct{}{}:
			default:
			}
		})
	})
}

func serve(parent context.Context, r *repo.Repo) error {
	ctx, stop := signalContext(parent)
	defer stop()

	cfg := r.Config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	compression := middleware.CompressionOptions{
		MinSize: cfg.Compression.MinSize,
		Level:   cfg.Compression.Level,
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(api.NewRepoHandler(r, r.Logger), r.Logger, compression),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		r.Logger.Info("starting server", zap.String("address", addr))
		fmt.Println("Serving", r.Root, "on http://"+addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
