package k8sscheduler

import (
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/thorium-platform/thorium/errs"
)

// classify maps a Kubernetes API error onto the shared errs taxonomy,
// covering the outcomes a Pod create/delete/list call can produce.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case apierrors.IsNotFound(err):
		return errs.Wrap(errs.NotFound, "k8s resource", err)
	case apierrors.IsForbidden(err), apierrors.IsUnauthorized(err):
		return errs.Wrap(errs.Permission, "k8s request", err)
	case apierrors.IsInvalid(err), apierrors.IsBadRequest(err):
		return errs.Wrap(errs.Validation, "k8s request", err)
	case apierrors.IsConflict(err), apierrors.IsAlreadyExists(err):
		return errs.Wrap(errs.Conflict, "k8s resource", err)
	default:
		return errs.Wrap(errs.Unavailable, "k8s request", err)
	}
}
