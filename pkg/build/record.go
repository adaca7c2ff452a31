package build

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/livelog/pkg/events"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Event names carrying build status updates.
var StatusEvents = []string{
	"execution_updated",
	"execution_completed",
	"execution_canceled",
	"execution_running",
}

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusError   Status = "error"
	StatusKilled  Status = "killed"
	StatusSkipped Status = "skipped"
	StatusBlocked Status = "blocked"
)

// Done reports whether the build will not change any more.
func (s Status) Done() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusError, StatusKilled, StatusSkipped:
		return true
	default:
		return false
	}
}

// Record is one build as shown in a list.
type Record struct {
	ID         int64  `json:"id"`
	RepoID     int64  `json:"repo_id"`
	PipelineID int64  `json:"pipeline_id"`
	Number     int64  `json:"number"`
	Status     Status `json:"status"`
	Commit     string `json:"after,omitempty"`
	Branch     string `json:"source,omitempty"`
	Message    string `json:"message,omitempty"`
	Started    int64  `json:"started,omitempty"`
	Finished   int64  `json:"finished,omitempty"`
	// Event is the name of the event that produced this version.
	Event string `json:"-"`
}

// Key identifies the build across updates.
func (r Record) Key() string {
	switch {
	case r.Number > 0:
		return fmt.Sprintf("%d/%d#%d", r.RepoID, r.PipelineID, r.Number)
	case r.Commit != "":
		return r.Commit
	default:
		return fmt.Sprintf("id:%d", r.ID)
	}
}

// Same reports whether r and o describe the same build. Lists and events do
// not always carry the same identifiers, so the first identifier both
// carry decides.
func (r Record) Same(o Record) bool {
	switch {
	case r.ID != 0 && o.ID != 0:
		return r.ID == o.ID
	case r.Number > 0 && o.Number > 0:
		return r.Number == o.Number && agree(r.RepoID, o.RepoID) && agree(r.PipelineID, o.PipelineID)
	case r.Commit != "" && o.Commit != "":
		return r.Commit == o.Commit
	default:
		return false
	}
}

func agree(a, b int64) bool {
	return a == 0 || b == 0 || a == b
}

// Merge applies update on top of r. Fields update leaves empty keep the
// value from r.
func (r Record) Merge(update Record) Record {
	out := r
	setInt := func(dst *int64, v int64) {
		if v != 0 {
			*dst = v
		}
	}
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt(&out.ID, update.ID)
	setInt(&out.RepoID, update.RepoID)
	setInt(&out.PipelineID, update.PipelineID)
	setInt(&out.Number, update.Number)
	setInt(&out.Started, update.Started)
	setInt(&out.Finished, update.Finished)
	setStr(&out.Commit, update.Commit)
	setStr(&out.Branch, update.Branch)
	setStr(&out.Message, update.Message)
	setStr(&out.Event, update.Event)
	if update.Status != "" {
		out.Status = update.Status
	}
	return out
}

// NewList is an upsert list of builds that matches updates with Same and
// folds them in with Merge.
func NewList() *events.List[string, Record] {
	return events.NewList(Record.Key).WithMatch(Record.Same).WithMerge(Record.Merge)
}

// Duration is the run time so far, or the total once finished.
func (r Record) Duration(now time.Time) time.Duration {
	if r.Started == 0 {
		return 0
	}
	end := now
	if r.Finished > 0 {
		end = time.Unix(r.Finished, 0)
	}
	return end.Sub(time.Unix(r.Started, 0))
}

// ShortCommit is the first eight characters of the commit sha.
func (r Record) ShortCommit() string {
	if len(r.Commit) > 8 {
		return r.Commit[:8]
	}
	return r.Commit
}

// FromEvent decodes a status event payload. The fields may sit at the top
// level or below an "execution" object.
func FromEvent(name string, data []byte) (Record, error) {
	if !gjson.ValidBytes(data) {
		return Record{}, errors.New("invalid build event json")
	}
	return fromResult(name, gjson.ParseBytes(data))
}

// FromList decodes a JSON array of builds.
func FromList(data []byte) ([]Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid build list json")
	}
	res := gjson.ParseBytes(data)
	if res.Get("data").IsArray() {
		res = res.Get("data")
	}
	if !res.IsArray() {
		return nil, errors.New("build list is not an array")
	}
	var out []Record
	var err error
	res.ForEach(func(_, v gjson.Result) bool {
		var r Record
		r, err = fromResult("", v)
		if err != nil {
			return false
		}
		out = append(out, r)
		return true
	})
	return out, err
}

func fromResult(name string, root gjson.Result) (Record, error) {
	res := root
	if ex := root.Get("execution"); ex.IsObject() {
		res = ex
	}
	if !res.IsObject() {
		return Record{}, errors.New("build event is not an object")
	}
	r := Record{
		ID:         res.Get("id").Int(),
		RepoID:     first(res, "repo_id", "repo.id").Int(),
		PipelineID: res.Get("pipeline_id").Int(),
		Number:     res.Get("number").Int(),
		Status:     Status(strings.ToLower(res.Get("status").String())),
		Commit:     first(res, "after", "commit.sha", "sha").String(),
		Branch:     first(res, "source", "branch", "ref").String(),
		Message:    first(res, "message", "title").String(),
		Started:    res.Get("started").Int(),
		Finished:   res.Get("finished").Int(),
		Event:      name,
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if r.Number == 0 && r.Commit == "" && r.ID == 0 {
		return Record{}, errors.New("build event has no identifier")
	}
	return r, nil
}

func first(res gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() && v.String() != "" {
			return v
		}
	}
	return gjson.Result{}
}
