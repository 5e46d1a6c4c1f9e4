package merge

import "sort"

type Action int

const (
	Keep Action = iota
	TakeOther
	Delete
	Conflict
)

func (a Action) String() string {
	switch a {
	case Keep:
		return "keep"
	case TakeOther:
		return "take-other"
	case Delete:
		return "delete"
	case Conflict:
		return "conflict"
	}
	return "unknown"
}

type Decision struct {
	Path   string
	Action Action
}

// Classify decides each path by comparing the blob ids it has at the split
// point, on the current side and on the other side; "" means absent.
//
//	cur == other            keep current (covers both deleted)
//	split == other          other did nothing; keep current
//	split == cur            current did nothing; take other's add, edit or delete
//	otherwise               conflict
func Classify(split, cur, other map[string]string, extra []string) []Decision {
	paths := map[string]bool{}
	for _, m := range []map[string]string{split, cur, other} {
		for p := range m {
			paths[p] = true
		}
	}
	for _, p := range extra {
		paths[p] = true
	}

	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	decisions := make([]Decision, 0, len(sorted))
	for _, p := range sorted {
		s, c, o := split[p], cur[p], other[p]

		var action Action
		switch {
		case c == o:
			action = Keep
		case s == o:
			action = Keep
		case s == c && o == "":
			action = Delete
		case s == c:
			action = TakeOther
		default:
			action = Conflict
		}
		decisions = append(decisions, Decision{Path: p, Action: action})
	}
	return decisions
}

// ConflictContent joins both sides between conflict markers. An absent side
// is an empty region.
func ConflictContent(cur, other []byte) []byte {
	out := make([]byte, 0, len(cur)+len(other)+32)
	out = append(out, "<<<<<<< HEAD\n"...)
	out = append(out, cur...)
	out = append(out, "=======\n"...)
	out = append(out, other...)
	out = append(out, ">>>>>>>\n"...)
	return out
}
