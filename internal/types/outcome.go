package types

import "fmt"

// StatusKind classifies a download attempt.
type StatusKind int

const (
	StatusSuccess StatusKind = iota
	StatusHTTPError
	StatusTransportError
)

func (k StatusKind) String() string {
	switch k {
	case StatusSuccess:
		return "success"
	case StatusHTTPError:
		return "http_error"
	case StatusTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// DownloadStatus is the result of one download attempt. Code is set for
// StatusHTTPError, Message for StatusTransportError.
type DownloadStatus struct {
	Kind    StatusKind
	Code    int
	Message string
}

// Success returns the status of a completed download.
func Success() DownloadStatus { return DownloadStatus{Kind: StatusSuccess} }

// HTTPFailure returns the status of a non-200 response.
func HTTPFailure(code int) DownloadStatus {
	return DownloadStatus{Kind: StatusHTTPError, Code: code}
}

// TransportFailure returns the status of a network-level failure.
func TransportFailure(msg string) DownloadStatus {
	return DownloadStatus{Kind: StatusTransportError, Message: msg}
}

func (s DownloadStatus) String() string {
	switch s.Kind {
	case StatusSuccess:
		return "success"
	case StatusHTTPError:
		return fmt.Sprintf("http error %d", s.Code)
	case StatusTransportError:
		return "transport error: " + s.Message
	default:
		return "unknown"
	}
}

// DownloadOutcome records what happened to one ImageRecord.
type DownloadOutcome struct {
	Record       *ImageRecord
	TargetPath   string
	Status       DownloadStatus
	BytesWritten int64
}

// OK reports whether the asset was written to TargetPath.
func (o DownloadOutcome) OK() bool { return o.Status.Kind == StatusSuccess }

// Tally counts successes, failures and bytes written across outcomes.
func Tally(outcomes []DownloadOutcome) (succeeded, failed int, bytes int64) {
	for _, o := range outcomes {
		if o.OK() {
			succeeded++
			bytes += o.BytesWritten
		} else {
			failed++
		}
	}
	return succeeded, failed, bytes
}
