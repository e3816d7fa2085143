package mailbox

import "strings"

// DefaultDraftCandidates lists drafts folder names used by common providers,
// in the order they are probed.
var DefaultDraftCandidates = []string{
	"Drafts",
	"INBOX.Drafts",
	"[Gmail]/Drafts",
	"[Google Mail]/Drafts",
	"Draft",
	"INBOX/Drafts",
}

// DefaultDraftsFolder is returned when no candidate matches.
const DefaultDraftsFolder = "Drafts"

// DraftsResolver finds the drafts folder in a FolderTree.
// The zero value uses DefaultDraftCandidates and DefaultDraftsFolder.
type DraftsResolver struct {
	Candidates []string
	Fallback   string
}

// Resolve returns the first candidate present in tree, either as a top-level
// folder or as a path through nested children. A path match only counts when
// the server names that folder exactly like the candidate, so INBOX.Drafts
// does not claim a slash delimited INBOX/Drafts. It never fails: the fallback
// name is returned even if no such folder exists.
func (r DraftsResolver) Resolve(tree FolderTree) string {
	candidates := r.Candidates
	if candidates == nil {
		candidates = DefaultDraftCandidates
	}

	for _, name := range candidates {
		if tree.Get(name) != nil {
			return name
		}
		if f := tree.Lookup(splitPath(name)...); f != nil && f.Mailbox == name {
			return name
		}
	}

	if inbox := tree.Get("INBOX"); inbox != nil && inbox.Children.Get("Drafts") != nil {
		return "INBOX.Drafts"
	}

	if r.Fallback != "" {
		return r.Fallback
	}
	return DefaultDraftsFolder
}

func splitPath(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == '.' || r == '/'
	})
}
