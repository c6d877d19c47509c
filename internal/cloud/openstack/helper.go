package openstack

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud"
	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/snapshots"
)

// isRetryable determines if an error is transient and warrants a retry.
// It specifically checks for standard HTTP 429/5xx codes from Gophercloud
// and assumes other unknown network errors are also retryable.
func isRetryable(err error) bool {
	var gopherErrors gophercloud.ErrUnexpectedResponseCode

	// Unwrap the error to see if it's a specific Gophercloud HTTP response error
	if errors.As(err, &gopherErrors) {
		switch gopherErrors.Actual {
		case http.StatusTooManyRequests, // 429 - Rate Limiting
			http.StatusRequestTimeout,      // 408 - Client Timeout
			http.StatusInternalServerError, // 500 - Server Error
			http.StatusServiceUnavailable,  // 503 - Maintenance/Overload
			http.StatusGatewayTimeout:      // 504 - Upstream Timeout
			return true
		default:
			// Client errors (400, 401, 404, etc.) are not retryable
			// as the request itself is invalid.
			return false
		}
	}
	// Not an HTTP error (DNS failure, connection reset): treat as transient.
	return true
}

func isNotFound(err error) bool {
	return gophercloud.ResponseCodeIs(err, http.StatusNotFound)
}

// normalizeStatus maps Cinder snapshot states onto the provider-neutral status.
func normalizeStatus(status string) cloud.Status {
	status = strings.ToLower(status)
	switch {
	case status == "available":
		return cloud.StatusCompleted
	case strings.HasPrefix(status, "error"):
		return cloud.StatusError
	default:
		// creating, deleting, restoring, unmanaging
		return cloud.StatusPending
	}
}

func toRecord(snap snapshots.Snapshot) cloud.SnapshotRecord {
	return cloud.SnapshotRecord{
		ID:        snap.ID,
		VolumeID:  snap.VolumeID,
		Location:  cloud.LocationPrimary,
		CreatedAt: snap.CreatedAt.UTC(),
		Status:    normalizeStatus(snap.Status),
	}
}

func toMetadata(tags map[string]string) map[string]any {
	out := make(map[string]any, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

func logRequest(opName, resourceID, requestID string) {
	slog.Debug("OpenStack request accepted", "operation", opName, "resource_id", resourceID, "request_id", requestID)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
