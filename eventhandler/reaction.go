package eventhandler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thorium-platform/thorium/model"
)

// createStageJobs inserts one Created job per stage name in
// pipeline.Order[stageIdx] and projects each into the coordination store's
// per-scaler deadline stream, the same pairing the scaler's fair-share and
// deadline passes expect every Created job to have.
func (h *Handler) createStageJobs(ctx context.Context, reaction model.Reaction, pipeline model.Pipeline, stageIdx int) error {
	if stageIdx >= len(pipeline.Order) {
		return nil
	}

	for _, stage := range pipeline.Order[stageIdx] {
		img, err := h.API.GetImage(ctx, reaction.Group, stage)
		if err != nil {
			return err
		}

		deadline := time.Now().Add(runtimeBudget(img, pipeline))
		job := model.Job{
			ID:       uuid.New().String(),
			Reaction: reaction.ID,
			Group:    reaction.Group,
			Pipeline: reaction.Pipeline,
			Stage:    stage,
			Creator:  reaction.Creator,
			Status:   model.JobCreated,
			Deadline: deadline,
		}
		if err := h.MDS.CreateJob(ctx, job); err != nil {
			return err
		}
		if err := h.CS.InsertDeadline(ctx, string(img.ScalerKind), job.ID, deadline); err != nil {
			return err
		}
	}
	return nil
}

// runtimeBudget picks the deadline horizon for a freshly-created job: the
// image's own runtime estimate when it declares one, otherwise the
// pipeline's SLA.
func runtimeBudget(img model.Image, pipeline model.Pipeline) time.Duration {
	if img.RuntimeEstimate > 0 {
		return img.RuntimeEstimate
	}
	if pipeline.SLASeconds > 0 {
		return time.Duration(pipeline.SLASeconds) * time.Second
	}
	return 60 * time.Second
}
