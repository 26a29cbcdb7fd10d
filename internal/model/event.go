// Package model defines core data structures for BuildFlow.
package model

import "strings"

// RawEvent is one message from the build engine stream.
// Exactly one payload field is populated per event; arrival order is
// significant and preserved by every downstream consumer.
type RawEvent struct {
	// Line is a raw output line from the builder ("stream" in the wire format).
	Line string

	// Aux is an opaque structured payload (BuildKit aux frames, image ids).
	Aux []byte

	// Status is a status message (pull progress headers etc.).
	Status string

	// Progress is a progress payload rendered by the engine.
	Progress string

	// ID is an opaque build identifier.
	ID string

	// Other holds anything the engine emitted that fits no known field.
	Other string
}

// EventKind identifies which payload field of a RawEvent is populated.
type EventKind uint8

const (
	KindLine EventKind = iota
	KindAux
	KindStatus
	KindProgress
	KindID
	KindOther
)

func (k EventKind) String() string {
	names := []string{"line", "aux", "status", "progress", "id", "other"}
	if int(k) < len(names) {
		return names[k]
	}
	return "other"
}

// Kind returns which payload the event carries. Fields are checked in
// the order the wire format populates them.
func (e *RawEvent) Kind() EventKind {
	switch {
	case e.Line != "":
		return KindLine
	case len(e.Aux) > 0:
		return KindAux
	case e.Status != "":
		return KindStatus
	case e.Progress != "":
		return KindProgress
	case e.ID != "":
		return KindID
	default:
		return KindOther
	}
}

// LineEvent wraps a raw output line.
func LineEvent(line string) RawEvent { return RawEvent{Line: line} }

// InstructionKind classifies a Dockerfile instruction for narration.
type InstructionKind uint8

const (
	InstructionOther InstructionKind = iota
	InstructionFrom
	InstructionCopy
	InstructionRun
	InstructionWorkdir
	InstructionExpose
	InstructionEntrypoint // CMD or ENTRYPOINT
)

func (k InstructionKind) String() string {
	names := []string{"OTHER", "FROM", "COPY", "RUN", "WORKDIR", "EXPOSE", "ENTRYPOINT"}
	if int(k) < len(names) {
		return names[k]
	}
	return "OTHER"
}

// ParseInstruction maps the leading keyword of a Dockerfile instruction
// to its kind. Keywords are case-sensitive, matching builder output.
func ParseInstruction(instruction string) InstructionKind {
	word := instruction
	if i := strings.IndexByte(word, ' '); i >= 0 {
		word = word[:i]
	}
	switch word {
	case "FROM":
		return InstructionFrom
	case "COPY", "ADD":
		return InstructionCopy
	case "RUN":
		return InstructionRun
	case "WORKDIR":
		return InstructionWorkdir
	case "EXPOSE":
		return InstructionExpose
	case "CMD", "ENTRYPOINT":
		return InstructionEntrypoint
	default:
		return InstructionOther
	}
}

// Signal is the classified representation of one raw event.
// The set of implementations is closed; consumers switch over the
// concrete types.
type Signal interface {
	signal()
}

// StepStarted reports a Dockerfile step beginning.
// Total is 0 when the builder did not report a valid total.
type StepStarted struct {
	Index  int
	Total  int
	Kind   InstructionKind
	Detail string
}

// ImagePullStarted reports the start of a base image pull.
type ImagePullStarted struct {
	Reference string
}

// SignatureVerification reports image source signature checks.
type SignatureVerification struct{}

// LayerDownloading reports a layer blob download.
type LayerDownloading struct{}

// ConfigCopying reports the image config being copied.
type ConfigCopying struct{}

// ManifestWriting reports the manifest being written.
type ManifestWriting struct{}

// LayerCompleted reports a freshly built layer.
type LayerCompleted struct {
	ShortID string
}

// LayerCached reports a layer satisfied from cache.
type LayerCached struct {
	ShortID string
}

// ImageCommitting reports the image being committed.
type ImageCommitting struct {
	Reference string
}

// ImageTagged reports a successful tag.
type ImageTagged struct {
	Reference string
}

// BuildSucceeded reports the final image hash.
type BuildSucceeded struct {
	ShortID string
}

// BuildInfoEvent carries a structured auxiliary payload.
// ImageID is set when the payload matched the default image-id shape,
// otherwise Raw holds the payload for verbose logging.
type BuildInfoEvent struct {
	ImageID string
	Raw     []byte
}

// StatusEvent carries a status message.
type StatusEvent struct {
	Text string
}

// ProgressEvent carries a raw progress payload.
type ProgressEvent struct {
	Raw string
}

// BuildIDEvent carries an opaque build identifier.
type BuildIDEvent struct {
	FullID string
}

// InstructionHint is a bare instruction-kind match on a line that is
// not a STEP header. It carries no step index.
type InstructionHint struct {
	Kind InstructionKind
}

// UnclassifiedEvent wraps a payload no rule matched.
// Emitted only in verbose mode; normal mode drops the event instead.
type UnclassifiedEvent struct {
	Raw string
}

func (StepStarted) signal()           {}
func (ImagePullStarted) signal()      {}
func (SignatureVerification) signal() {}
func (LayerDownloading) signal()      {}
func (ConfigCopying) signal()         {}
func (ManifestWriting) signal()       {}
func (LayerCompleted) signal()        {}
func (LayerCached) signal()           {}
func (ImageCommitting) signal()       {}
func (ImageTagged) signal()           {}
func (BuildSucceeded) signal()        {}
func (BuildInfoEvent) signal()        {}
func (StatusEvent) signal()           {}
func (ProgressEvent) signal()         {}
func (BuildIDEvent) signal()          {}
func (InstructionHint) signal()       {}
func (UnclassifiedEvent) signal()     {}

// ShortID truncates a layer or image hash for display.
// Hashes shorter than eight characters are returned whole; a leading
// "sha256:" prefix is stripped first.
func ShortID(hash string) string {
	hash = strings.TrimPrefix(hash, "sha256:")
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
