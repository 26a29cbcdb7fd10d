// Package narrate renders classified build signals as human-readable
// progress messages.
//
// Two rendering policies exist, selected once at construction: normal
// renders only the curated emoji messages, verbose additionally surfaces
// the raw payloads that normal mode suppresses. Both policies are total
// over the signal vocabulary.
package narrate

import (
	"fmt"
	"strings"

	"github.com/buildflow/buildflow/internal/model"
)

// Message is one immutable narration line. Messages are never revised
// after emission; in-place step updates are a sink concern.
type Message struct {
	Emoji string
	Text  string
}

func (m Message) String() string {
	if m.Emoji == "" {
		return m.Text
	}
	return m.Emoji + " " + m.Text
}

// Narrator maps signals to narration messages for one pipeline run.
// The only state besides the mode is the most recent step header, used
// to prefix layer messages with the current position.
type Narrator struct {
	verbose bool

	lastIndex int
	lastTotal int
}

// New creates a narrator. The mode is fixed for the narrator's lifetime.
func New(verbose bool) *Narrator {
	return &Narrator{verbose: verbose}
}

// Verbose reports the selected policy.
func (n *Narrator) Verbose() bool { return n.verbose }

// Narrate renders one signal. Normal mode returns zero or one messages;
// verbose mode returns at least one, emitting the raw payload line
// before the curated message whenever a raw payload exists.
func (n *Narrator) Narrate(sig model.Signal) []Message {
	var out []Message
	if n.verbose {
		if raw, ok := rawDump(sig); ok {
			out = append(out, raw)
		}
	}
	if curated := n.curated(sig); curated != nil {
		out = append(out, *curated)
	}
	return out
}

// curated is the normal-mode rendering table. A nil return means the
// signal is suppressed, not logged.
func (n *Narrator) curated(sig model.Signal) *Message {
	switch s := sig.(type) {
	case model.StepStarted:
		n.lastIndex, n.lastTotal = s.Index, s.Total
		return &Message{"🏗️", fmt.Sprintf("Step %s: %s", n.stepPosition(), instructionOf(s.Detail))}

	case model.ImagePullStarted:
		return &Message{"📦", "Pulling " + s.Reference}

	case model.SignatureVerification:
		return &Message{"🔐", "Verifying image signatures..."}

	case model.LayerDownloading:
		return &Message{"📥", "Downloading layers..."}

	case model.ConfigCopying:
		return &Message{"⚙️", "Copying configuration..."}

	case model.ManifestWriting:
		return &Message{"📝", "Writing manifest..."}

	case model.LayerCompleted:
		return &Message{"✅", "Layer " + s.ShortID + " built"}

	case model.LayerCached:
		return &Message{"♻️", "Cached layer " + s.ShortID}

	case model.ImageCommitting:
		return &Message{"💾", "Committing " + s.Reference}

	case model.ImageTagged:
		return &Message{"🏷️", "Tagged as " + s.Reference}

	case model.BuildSucceeded:
		return &Message{"🎉", "Build completed! ID: " + s.ShortID}

	case model.BuildInfoEvent:
		if s.ImageID != "" {
			return &Message{"🎯", "Final image: " + model.ShortID(s.ImageID)}
		}
		return nil

	case model.InstructionHint:
		return hintMessage(s.Kind)

	case model.StatusEvent, model.ProgressEvent, model.BuildIDEvent, model.UnclassifiedEvent:
		return nil

	default:
		return nil
	}
}

// rawDump renders the verbose-only raw payload line for signals that
// carry one. Markers are fixed per signal kind.
func rawDump(sig model.Signal) (Message, bool) {
	switch s := sig.(type) {
	case model.StatusEvent:
		return Message{"📊", "Status: " + s.Text}, true
	case model.ProgressEvent:
		return Message{"📈", "Progress: " + s.Raw}, true
	case model.BuildIDEvent:
		return Message{"🆔", "ID: " + model.ShortID(s.FullID)}, true
	case model.UnclassifiedEvent:
		return Message{"📋", s.Raw}, true
	case model.BuildInfoEvent:
		if len(s.Raw) > 0 {
			return Message{"📋", "BuildInfo: " + string(s.Raw)}, true
		}
	}
	return Message{}, false
}

// hintMessage renders bare instruction hints outside STEP headers.
func hintMessage(kind model.InstructionKind) *Message {
	switch kind {
	case model.InstructionFrom:
		return &Message{"🏗️", "Setting up base image..."}
	case model.InstructionCopy:
		return &Message{"📄", "Copying files..."}
	case model.InstructionRun:
		return &Message{"⚙️", "Executing commands..."}
	case model.InstructionWorkdir:
		return &Message{"📁", "Setting working directory..."}
	case model.InstructionExpose:
		return &Message{"🔌", "Configuring ports..."}
	case model.InstructionEntrypoint:
		return &Message{"🎯", "Setting up entrypoint..."}
	default:
		return &Message{"🔄", "Working..."}
	}
}

// stepPosition formats "i/n", or just "i" when the total is unknown.
func (n *Narrator) stepPosition() string {
	if n.lastTotal > 0 {
		return fmt.Sprintf("%d/%d", n.lastIndex, n.lastTotal)
	}
	return fmt.Sprintf("%d", n.lastIndex)
}

// instructionOf strips the "STEP i/n:" header, leaving the instruction.
func instructionOf(detail string) string {
	if _, instr, ok := strings.Cut(detail, ":"); ok && strings.HasPrefix(detail, "STEP ") {
		return strings.TrimSpace(instr)
	}
	return detail
}
