package validation

import (
	"path"
	"strings"
	"unicode"

	"twig/internal/errors"
	"twig/internal/workdir"
)

const msgIncorrectOperands = "Incorrect operands."

// Path cleans a user-supplied file path into the slash-separated,
// tree-relative form used as a tracking key.
func Path(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") {
		return "", errors.InvalidOperands(msgIncorrectOperands)
	}

	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.InvalidOperands(msgIncorrectOperands)
	}
	if clean == workdir.MetaDir || strings.HasPrefix(clean, workdir.MetaDir+"/") {
		return "", errors.InvalidOperands(msgIncorrectOperands)
	}
	return clean, nil
}

func BranchName(name string) error {
	if name == "" || name == "HEAD" || strings.HasPrefix(name, "-") {
		return errors.InvalidOperands(msgIncorrectOperands)
	}
	if strings.ContainsFunc(name, unicode.IsSpace) || strings.ContainsAny(name, ":\\") {
		return errors.InvalidOperands(msgIncorrectOperands)
	}
	return nil
}

func CommitMessage(msg string) error {
	if strings.TrimSpace(msg) == "" {
		return errors.InvalidOperands("Please enter a commit message.")
	}
	return nil
}
