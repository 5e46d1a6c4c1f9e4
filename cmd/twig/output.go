package main

import (
	"fmt"
	"strings"

	"twig/internal/diff"
	"twig/internal/graph"
	"twig/internal/merge"
	"twig/internal/repo"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func printLog(entries []graph.LogEntry) {
	for _, e := range entries {
		fmt.Print(e.String())
	}
}

func showStatus(r *repo.Repo) error {
	st, err := r.Status()
	if err != nil {
		return err
	}
	printStatus(st)
	return nil
}

func printStatus(st *repo.Status) {
	fmt.Println(bold("=== Branches ==="))
	for _, name := range st.Branches {
		if name == st.Current {
			fmt.Println(green("*" + name))
			continue
		}
		fmt.Println(name)
	}

	section := func(title string, lines []string, paint func(...interface{}) string) {
		fmt.Println()
		fmt.Println(bold("=== " + title + " ==="))
		for _, line := range lines {
			fmt.Println(paint(line))
		}
	}
	section("Staged Files", st.Staged, green)
	section("Removed Files", st.Removed, red)

	var mods []string
	for _, c := range st.Modified {
		mods = append(mods, fmt.Sprintf("%s (%s)", c.Path, c.Kind))
	}
	section("Modifications Not Staged For Commit", mods, yellow)
	section("Untracked Files", st.Untracked, red)
	fmt.Println()
}

func printMerge(res *merge.Result) {
	switch res.Outcome {
	case merge.AlreadyMerged:
		fmt.Println(merge.MsgAlreadyMerged)
	case merge.FastForwarded:
		fmt.Println(merge.MsgFastForwarded)
	default:
		if len(res.Conflicts) > 0 {
			fmt.Println(yellow(merge.MsgConflict))
		}
	}
}

func printDiffs(results []*diff.DiffResult) {
	for _, res := range results {
		for _, line := range strings.SplitAfter(res.Format(), "\n") {
			switch {
			case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
				fmt.Print(bold(line))
			case strings.HasPrefix(line, "@@"):
				fmt.Print(cyan(line))
			case strings.HasPrefix(line, "+"):
				fmt.Print(green(line))
			case strings.HasPrefix(line, "-"):
				fmt.Print(red(line))
			default:
				fmt.Print(line)
			}
		}
		fmt.Printf("%d additions, %d deletions\n\n", res.Stats.Additions, res.Stats.Deletions)
	}
}
