package assoc

import (
	"fmt"
	"strings"

	"github.com/chazu/meshlink/pkg/mlerr"
)

// Load issue codes.
const (
	IssueDuplicateAttribute = "DUPLICATE_ATTRIBUTE"
	IssueAttributeMember    = "UNKNOWN_ATTRIBUTE_MEMBER"
	IssueAttributeCycle     = "ATTRIBUTE_CYCLE"
	IssueDuplicateGroupID   = "DUPLICATE_GROUP_ID"
	IssueDuplicateGroupName = "DUPLICATE_GROUP_NAME"
	IssueGroupMember        = "UNKNOWN_GROUP_MEMBER"
	IssueGroupCycle         = "GROUP_CYCLE"
	IssueEmptyEntityName    = "EMPTY_ENTITY_NAME"
	IssueDuplicateModel     = "DUPLICATE_MODEL"
	IssueNilModel           = "NIL_MODEL"
	IssueUnknownGref        = "UNKNOWN_GREF"
	IssueUnknownAref        = "UNKNOWN_AREF"
	IssueUnknownModelRef    = "UNKNOWN_MODEL_REF"
)

// LoadIssue is one referential problem found while loading.
type LoadIssue struct {
	Code    string
	Message string
	Entity  string // offending entity or record, if any
}

func (i LoadIssue) Error() string {
	if i.Entity == "" {
		return fmt.Sprintf("%s: %s", i.Code, i.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", i.Code, i.Message, i.Entity)
}

// LoadError reports every issue of a rejected load. It unwraps to
// mlerr.ErrLoad.
type LoadError struct {
	Issues []LoadIssue
}

func (e *LoadError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = is.Error()
	}
	return fmt.Sprintf("assoc: load rejected: %s", strings.Join(msgs, "; "))
}

func (e *LoadError) Unwrap() error { return mlerr.ErrLoad }

// issues accumulates LoadIssues.
type issues []LoadIssue

func (is *issues) add(code, entity, format string, args ...any) {
	*is = append(*is, LoadIssue{Code: code, Entity: entity, Message: fmt.Sprintf(format, args...)})
}
