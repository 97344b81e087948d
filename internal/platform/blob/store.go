// Package blob stores the long-form markdown attached to problems,
// contests and announcements under slash-separated logical keys.
package blob

import (
	"context"
	"path"
	"strconv"
	"strings"
)

// Store is a key to text store. Reading an absent key yields "".
type Store interface {
	ReadText(ctx context.Context, key string) (string, error)
	WriteText(ctx context.Context, key, text string) error
	// DeleteTree removes every key under prefix, matched on whole path segments.
	DeleteTree(ctx context.Context, prefix string) error
}

const (
	Description = "description"
	Hints       = "hints"
	Editorial   = "editorial"
)

func ProblemDir(problemID string) string {
	return path.Join("problems", problemID)
}

func ProblemKey(problemID, part string) string {
	return path.Join(ProblemDir(problemID), part)
}

func ContestDir(contestID string) string {
	return path.Join("contests", contestID)
}

func ContestKey(contestID, part string) string {
	return path.Join(ContestDir(contestID), part)
}

func ContestProblemDir(contestID, problemID string) string {
	return path.Join(ContestDir(contestID), problemID)
}

func ContestProblemKey(contestID, problemID, part string) string {
	return path.Join(ContestProblemDir(contestID, problemID), part)
}

func AnnouncementDir(id int64) string {
	return path.Join("announcements", strconv.FormatInt(id, 10))
}

func AnnouncementKey(id int64) string {
	return path.Join(AnnouncementDir(id), "body")
}

// treePrefix turns "problems/p1" into "problems/p1/" so that deleting it
// leaves "problems/p10/..." alone.
func treePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func inTree(key, prefix string) bool {
	tp := treePrefix(prefix)
	return tp == "" || strings.HasPrefix(key, tp)
}
