// Package model defines the Thorium data model shared by every
// component: the core entities plus the status enums for
// job/worker/reaction lifecycle state.
package model

import (
	"fmt"
	"time"
)

// Scaler identifies which backend schedules an Image's workers.
type Scaler string

const (
	ScalerK8s       Scaler = "K8s"
	ScalerBareMetal Scaler = "BareMetal"
	ScalerWindows   Scaler = "Windows"
	ScalerKVM       Scaler = "KVM"
	ScalerExternal  Scaler = "External"
)

func (s Scaler) IsValid() bool {
	switch s {
	case ScalerK8s, ScalerBareMetal, ScalerWindows, ScalerKVM, ScalerExternal:
		return true
	}
	return false
}

// Pool is the scheduling quota a worker draws its resources from.
type Pool string

const (
	PoolFairShare Pool = "FairShare"
	PoolDeadline  Pool = "Deadline"
)

func (p Pool) IsValid() bool { return p == PoolFairShare || p == PoolDeadline }

// ReactionStatus is the closed set of states a Reaction may be in.
type ReactionStatus string

const (
	ReactionCreated   ReactionStatus = "Created"
	ReactionStarted   ReactionStatus = "Started"
	ReactionCompleted ReactionStatus = "Completed"
	ReactionFailed    ReactionStatus = "Failed"
)

// JobStatus is the closed set of states a Job may be in.
type JobStatus string

const (
	JobCreated   JobStatus = "Created"
	JobRunning   JobStatus = "Running"
	JobCompleted JobStatus = "Completed"
	JobFailed    JobStatus = "Failed"
	JobSleeping  JobStatus = "Sleeping"
)

func (s JobStatus) IsValid() bool {
	switch s {
	case JobCreated, JobRunning, JobCompleted, JobFailed, JobSleeping:
		return true
	}
	return false
}

// Terminal reports whether a job in this status needs no further scheduling.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// WorkerStatus is the closed set of states a Worker may be in.
type WorkerStatus string

const (
	WorkerSpawning WorkerStatus = "Spawning"
	WorkerRunning  WorkerStatus = "Running"
	WorkerShutdown WorkerStatus = "Shutdown"
)

// NodeHealth is the closed set of states a Node's health check may report.
type NodeHealth string

const (
	NodeHealthy   NodeHealth = "Healthy"
	NodeUnhealthy NodeHealth = "Unhealthy"
	NodeDisabled  NodeHealth = "Disabled"
)

// EventType is the closed set of event kinds the event handler and
// search-streamer consume.
type EventType string

const (
	EventNewSample    EventType = "NewSample"
	EventNewTags      EventType = "NewTags"
	EventResultSearch EventType = "ResultSearch"
	EventTagSearch    EventType = "TagSearch"
)

// TagItemType distinguishes a tag attached to a file from one attached to a repo.
type TagItemType string

const (
	TagItemFiles TagItemType = "Files"
	TagItemRepos TagItemType = "Repos"
)

// NotificationLevel is the closed set of notification severities.
type NotificationLevel string

const (
	NotificationInfo  NotificationLevel = "Info"
	NotificationWarn  NotificationLevel = "Warn"
	NotificationError NotificationLevel = "Error"
)

// LifetimeKind distinguishes the two ways an Image may bound a worker's life.
type LifetimeKind string

const (
	LifetimeJobs LifetimeKind = "jobs"
	LifetimeTime LifetimeKind = "time"
)

// Lifetime bounds how long a worker spawned for an Image may run. A zero
// value (Kind == "") means "infinite" for non-FairShare pools.
type Lifetime struct {
	Kind   LifetimeKind `json:"kind,omitempty"`
	Amount int64        `json:"amount,omitempty"`
}

// Infinite reports whether this Lifetime places no bound on the worker.
func (l Lifetime) Infinite() bool { return l.Kind == "" }

// Resources is the elementwise resource vector shared by Image requests,
// Node capacity, and Pool totals.
type Resources struct {
	CPUMilli          int64 `json:"cpu_milli"`
	MemoryMiB         int64 `json:"memory_mib"`
	EphemeralMiB      int64 `json:"ephemeral_storage_mib"`
	WorkerSlots       int64 `json:"worker_slots"`
	NvidiaGPU         int64 `json:"nvidia_gpu"`
	AMDGpu            int64 `json:"amd_gpu"`
}

// Sub returns r - other, saturating every field at zero.
func (r Resources) Sub(other Resources) Resources {
	return Resources{
		CPUMilli:     saturatingSub(r.CPUMilli, other.CPUMilli),
		MemoryMiB:    saturatingSub(r.MemoryMiB, other.MemoryMiB),
		EphemeralMiB: saturatingSub(r.EphemeralMiB, other.EphemeralMiB),
		WorkerSlots:  saturatingSub(r.WorkerSlots, other.WorkerSlots),
		NvidiaGPU:    saturatingSub(r.NvidiaGPU, other.NvidiaGPU),
		AMDGpu:       saturatingSub(r.AMDGpu, other.AMDGpu),
	}
}

// Add returns r + other elementwise.
func (r Resources) Add(other Resources) Resources {
	return Resources{
		CPUMilli:     r.CPUMilli + other.CPUMilli,
		MemoryMiB:    r.MemoryMiB + other.MemoryMiB,
		EphemeralMiB: r.EphemeralMiB + other.EphemeralMiB,
		WorkerSlots:  r.WorkerSlots + other.WorkerSlots,
		NvidiaGPU:    r.NvidiaGPU + other.NvidiaGPU,
		AMDGpu:       r.AMDGpu + other.AMDGpu,
	}
}

// Enough reports whether r has at least `req` free in every dimension.
// worker_slots == 0 on the holder excludes it regardless of other fields.
func (r Resources) Enough(req Resources) bool {
	if r.WorkerSlots <= 0 {
		return false
	}
	return r.CPUMilli >= req.CPUMilli &&
		r.MemoryMiB >= req.MemoryMiB &&
		r.EphemeralMiB >= req.EphemeralMiB &&
		r.WorkerSlots >= req.WorkerSlots &&
		r.NvidiaGPU >= req.NvidiaGPU &&
		r.AMDGpu >= req.AMDGpu
}

func saturatingSub(a, b int64) int64 {
	if a < b {
		return 0
	}
	return a - b
}

// Group is the tenant boundary. Every permission check is `user in
// role(group)`.
type Group struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Owners      []string `json:"owners"`
	Managers    []string `json:"managers"`
	Users       []string `json:"users"`
	Monitors    []string `json:"monitors"`
}

func (g Group) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("group: name required")
	}
	return nil
}

// UserRole is the closed set of roles a User may hold platform-wide.
type UserRole string

const (
	UserAdmin     UserRole = "admin"
	UserDeveloper UserRole = "developer"
	UserBasic     UserRole = "user"
)

// User is a platform principal.
type User struct {
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
	UID      *int64   `json:"uid,omitempty"`
	GID      *int64   `json:"gid,omitempty"`
	Token    string   `json:"token,omitempty"`
}

// Image is a per-group analysis tool definition.
type Image struct {
	Group             string            `json:"group"`
	Name              string            `json:"name"`
	ScalerKind        Scaler            `json:"scaler"`
	Image             string            `json:"image"`
	Resources         Resources         `json:"resources"`
	Lifetime          Lifetime          `json:"lifetime"`
	SpawnLimit        int64             `json:"spawn_limit"`
	Volumes           []string          `json:"volumes,omitempty"`
	Env               map[string]string `json:"env,omitempty"`
	Entrypoint        []string          `json:"entrypoint,omitempty"`
	Cmd               []string          `json:"cmd,omitempty"`
	Triggers          []Trigger         `json:"triggers,omitempty"`
	RuntimeEstimate   time.Duration     `json:"runtime_estimate_seconds"`
	OutputCollection  string            `json:"output_collection,omitempty"`
}

func (img Image) Validate() error {
	if img.Group == "" || img.Name == "" {
		return fmt.Errorf("image: group and name are required")
	}
	if !img.ScalerKind.IsValid() {
		return fmt.Errorf("image %s/%s: invalid scaler %q", img.Group, img.Name, img.ScalerKind)
	}
	return nil
}

// Trigger matches events against a pattern that, when satisfied, creates a
// reaction.
type Trigger struct {
	EventType EventType         `json:"event_type"`
	Match     map[string]string `json:"match"`
}

// Pipeline is an ordered set of stage groups, each naming one Image.
type Pipeline struct {
	Group       string     `json:"group"`
	Name        string     `json:"name"`
	Order       [][]string `json:"order"` // parallel groups of stage names
	SLASeconds  int64      `json:"sla_seconds"`
	Triggers    []Trigger  `json:"triggers,omitempty"`
	Description string     `json:"description,omitempty"`
}

func (p Pipeline) Validate(images map[string]Image) error {
	if p.Group == "" || p.Name == "" {
		return fmt.Errorf("pipeline: group and name are required")
	}
	if len(p.Order) == 0 {
		return fmt.Errorf("pipeline %s/%s: order must not be empty", p.Group, p.Name)
	}
	for _, parallelGroup := range p.Order {
		for _, stage := range parallelGroup {
			if _, ok := images[stage]; !ok {
				return fmt.Errorf("pipeline %s/%s: stage %q has no image in group %s", p.Group, p.Name, stage, p.Group)
			}
		}
	}
	return nil
}

// Reaction is a running instance of a Pipeline.
type Reaction struct {
	ID           string         `json:"id"`
	Group        string         `json:"group"`
	Pipeline     string         `json:"pipeline"`
	Status       ReactionStatus `json:"status"`
	CurrentStage int            `json:"current_stage"`
	SLASeconds   int64          `json:"sla_seconds"`
	Args         map[string]any `json:"args,omitempty"`
	Creator      string         `json:"creator"`
	Depth        int            `json:"depth"`
	Parent       string         `json:"parent,omitempty"`
}

// Job is one stage execution belonging to exactly one Reaction.
type Job struct {
	ID        string         `json:"id"`
	Reaction  string         `json:"reaction"`
	Group     string         `json:"group"`
	Pipeline  string         `json:"pipeline"`
	Stage     string         `json:"stage"`
	Creator   string         `json:"creator"`
	Status    JobStatus      `json:"status"`
	Deadline  time.Time      `json:"deadline"`
	Args      map[string]any `json:"args,omitempty"`
}

func (j Job) Validate() error {
	if j.ID == "" || j.Reaction == "" {
		return fmt.Errorf("job: id and reaction are required")
	}
	if !j.Status.IsValid() {
		return fmt.Errorf("job %s: invalid status %q", j.ID, j.Status)
	}
	return nil
}

// Worker is one running agent process.
type Worker struct {
	Name      string     `json:"name"`
	Cluster   string     `json:"cluster"`
	Node      string     `json:"node"`
	Scaler    Scaler     `json:"scaler"`
	User      string     `json:"user"`
	Group     string     `json:"group"`
	Pipeline  string     `json:"pipeline"`
	Stage     string     `json:"stage"`
	Pool      Pool       `json:"pool"`
	Status    WorkerStatus `json:"status"`
	Spawned   time.Time  `json:"spawned"`
	HeartBeat time.Time  `json:"heart_beat"`
	Resources Resources  `json:"resources"`
	ActiveJob string     `json:"active_job,omitempty"`
	ScaledDown bool      `json:"scaled_down"`
}

// Node is a physical or virtual host registered with Thorium.
type Node struct {
	Cluster   string     `json:"cluster"`
	Name      string     `json:"name"`
	Health    NodeHealth `json:"health"`
	Resources Resources  `json:"resources"`
	HeartBeat time.Time  `json:"heart_beat"`
}

// Deadline is a projection of a Created job into the time dimension,
// living only in the coordination store's per-scaler stream.
type Deadline struct {
	Group    string    `json:"group"`
	Pipeline string    `json:"pipeline"`
	Stage    string    `json:"stage"`
	Creator  string    `json:"creator"`
	JobID    string    `json:"job_id"`
	Reaction string    `json:"reaction"`
	Deadline time.Time `json:"deadline"`
}

// Event records an API-observed mutation that may drive downstream work.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Parent    string         `json:"parent,omitempty"`
	User      string         `json:"user"`
	Depth     int            `json:"depth"`
	Payload   map[string]any `json:"payload"`
}

// Tag is a (k, v) annotation on a file or repo, partitioned by upload time.
type Tag struct {
	ItemType TagItemType `json:"item_type"`
	Group    string      `json:"group"`
	Item     string      `json:"item"`
	Key      string      `json:"key"`
	Value    string      `json:"value"`
	Uploaded time.Time   `json:"uploaded"`
	Year     int         `json:"year"`
	Bucket   int64       `json:"bucket"`
}

// Result is the output of one tool execution against one item.
type Result struct {
	ID          string         `json:"id"`
	Tool        string         `json:"tool"`
	ToolVersion string         `json:"tool_version"`
	Cmd         string         `json:"cmd"`
	Group       string         `json:"group"`
	Key         string         `json:"key"`
	Uploaded    time.Time      `json:"uploaded"`
	DisplayType string         `json:"display_type"`
	Result      map[string]any `json:"result"`
	Files       []string       `json:"files,omitempty"`
	Children    map[string]string `json:"children,omitempty"`
	BodyHash    string         `json:"body_hash"`
}

// Notification is a record surfaced to a user or group about administrative
// action taken against an entity.
type Notification struct {
	Kind      string            `json:"kind"`
	EntityKey string            `json:"entity_key"`
	Created   time.Time         `json:"created"`
	ID        string            `json:"id"`
	Level     NotificationLevel `json:"level"`
	Msg       string            `json:"msg"`
	BanID     string            `json:"ban_id,omitempty"`
}

// Expires reports whether this notification is subject to TTL purge (every
// level except Error, unless the caller opted out).
func (n Notification) Expires(optOut bool) bool {
	if n.Level == NotificationError {
		return false
	}
	return !optOut
}
