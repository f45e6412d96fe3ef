package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/thorium-platform/thorium/model"
)

// resultKey derives the item a Result is filed against: the sample's
// content hash when the job names one, otherwise the reaction id. A
// repo-analysis stage has no sample but still needs a stable key for
// results_ids to index against.
func resultKey(job model.Job) string {
	if sha, ok := job.Args["sha256"].(string); ok && sha != "" {
		return sha
	}
	return job.Reaction
}

// completeJob builds and submits the Result for a zero-exit tool run, tags
// the item, marks the job Completed, and advances the reaction if this was
// the last active job in its stage group.
func (a *Agent) completeJob(ctx context.Context, l zerolog.Logger, job model.Job, img model.Image, run runResult) {
	key := resultKey(job)
	body := map[string]any{
		"exit_code": run.ExitCode,
		"stdout":    run.Stdout,
		"stderr":    run.Stderr,
	}
	raw, _ := json.Marshal(body)
	hash := bodyHash(raw)
	cmd := img.Name
	if len(img.Cmd) > 0 {
		cmd = img.Cmd[0]
	}

	result := model.Result{
		ID:          resultID(img.Name, key, cmd, hash),
		Tool:        img.Name,
		Cmd:         cmd,
		Group:       job.Group,
		Key:         key,
		Uploaded:    time.Now(),
		DisplayType: "json",
		Result:      body,
		BodyHash:    hash,
	}
	if err := a.mds.PutResult(ctx, result); err != nil {
		l.Warn().Err(err).Msg("put result")
	}

	tag := model.Tag{
		ItemType: model.TagItemFiles,
		Group:    job.Group,
		Item:     key,
		Key:      "tool",
		Value:    img.Name,
		Uploaded: time.Now(),
	}
	if err := a.mds.PutTag(ctx, tag); err != nil {
		l.Warn().Err(err).Msg("put auto-tag")
	}

	a.emitEvent(ctx, l, model.EventResultSearch, job, map[string]any{"result_id": result.ID, "key": key})
	a.emitEvent(ctx, l, model.EventNewTags, job, map[string]any{"item": key, "item_type": string(model.TagItemFiles)})
	a.emitEvent(ctx, l, model.EventTagSearch, job, map[string]any{"item": key})

	if err := a.mds.UpdateJobStatus(ctx, job.ID, model.JobCompleted); err != nil {
		l.Warn().Err(err).Msg("mark job completed")
	}
	a.progressReaction(ctx, l, job)
}

// failJob marks the job Failed or returns it to Created for the scaler to
// re-cover, bounded by the agent's retry budget. run is nil when the tool
// never produced an exit code (launch error, execution error).
func (a *Agent) failJob(ctx context.Context, l zerolog.Logger, job model.Job, img model.Image, run *runResult) {
	var state retryState
	_ = a.cs.JobData(ctx, "retries:"+job.ID, &state) // absent is fine, zero value

	if state.Count < maxStageRetries {
		state.Count++
		if err := a.cs.PutJobData(ctx, "retries:"+job.ID, state); err != nil {
			l.Warn().Err(err).Msg("persist retry state")
		}
		if err := a.mds.UpdateJobStatus(ctx, job.ID, model.JobCreated); err != nil {
			l.Warn().Err(err).Msg("return job to created for retry")
			return
		}
		deadline := time.Now().Add(5 * time.Minute)
		if err := a.cs.EnqueueJob(ctx, job.Group, job.Pipeline, job.Stage, job.Creator, string(model.JobCreated), job.ID, deadline); err != nil {
			l.Warn().Err(err).Msg("re-enqueue job after failure")
		}
		l.Info().Int("retry", state.Count).Msg("job returned to created, retry budget remains")
		return
	}

	if err := a.mds.UpdateJobStatus(ctx, job.ID, model.JobFailed); err != nil {
		l.Warn().Err(err).Msg("mark job failed")
	}
	reaction, err := a.mds.GetReaction(ctx, job.Reaction)
	if err != nil {
		l.Warn().Err(err).Msg("read reaction to mark failed")
		return
	}
	if err := a.mds.UpdateReactionStatus(ctx, reaction.ID, model.ReactionFailed, reaction.CurrentStage); err != nil {
		l.Warn().Err(err).Msg("mark reaction failed")
	}
	_ = a.api.UpdateReaction(ctx, reaction.ID, map[string]any{"status": model.ReactionFailed})
}

// retryState is the exhausted-retry-budget counter kept in cs job_data,
// keyed separately from the job's own payload hash under a "retries:"
// prefix so a retry count survives the job's status flapping between
// Created and Running across worker crashes.
type retryState struct {
	Count int `json:"count"`
}

// progressReaction checks whether job was the last active job in its
// reaction, advancing current_stage (or marking the reaction Completed)
// through the cache-warmer PATCH route when so.
func (a *Agent) progressReaction(ctx context.Context, l zerolog.Logger, job model.Job) {
	remaining, err := a.mds.ListActiveJobsByReaction(ctx, job.Reaction)
	if err != nil {
		l.Warn().Err(err).Msg("list active jobs for reaction progression")
		return
	}
	if len(remaining) > 0 {
		return
	}

	reaction, err := a.mds.GetReaction(ctx, job.Reaction)
	if err != nil {
		l.Warn().Err(err).Msg("read reaction for progression")
		return
	}
	pipeline, err := a.api.GetPipeline(ctx, reaction.Group, reaction.Pipeline)
	if err != nil {
		l.Warn().Err(err).Msg("resolve pipeline for progression")
		return
	}

	next := reaction.CurrentStage + 1
	status := model.ReactionStarted
	if next >= len(pipeline.Order) {
		status = model.ReactionCompleted
		next = reaction.CurrentStage
	}

	if err := a.mds.UpdateReactionStatus(ctx, reaction.ID, status, next); err != nil {
		l.Warn().Err(err).Msg("advance reaction stage")
		return
	}
	if err := a.api.UpdateReaction(ctx, reaction.ID, map[string]any{"status": status, "current_stage": next}); err != nil {
		l.Debug().Err(err).Msg("patch reaction (best effort, no API server in this deployment)")
	}
}

// emitEvent pushes the coordination-store event that drives the
// search-streamer. Since this agent writes results/tags directly into
// the metadata store rather than through the API's create_result call,
// it also owns pushing the corresponding event.
func (a *Agent) emitEvent(ctx context.Context, l zerolog.Logger, eventType model.EventType, job model.Job, payload map[string]any) {
	payload["group"] = job.Group
	raw, err := json.Marshal(payload)
	if err != nil {
		l.Warn().Err(err).Msg("marshal event payload")
		return
	}
	id := resultID(string(eventType), job.ID, job.Stage, bodyHash(raw))
	if err := a.cs.PushEvent(ctx, string(eventType), id, raw, time.Now()); err != nil {
		l.Warn().Err(err).Msg("push event")
	}
}
