// Package classify turns raw build engine output into semantic signals.
//
// The matcher is an ordered list of (predicate, constructor) rules applied
// top to bottom against each line; the first rule that matches wins.
// Keywords are case-sensitive, matching Docker and Podman builder output.
package classify

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/buildflow/buildflow/internal/model"
)

// Mode selects how unmatched events are handled.
type Mode uint8

const (
	// ModeNormal drops unmatched events.
	ModeNormal Mode = iota

	// ModeVerbose wraps unmatched events in UnclassifiedEvent so nothing
	// is dropped silently.
	ModeVerbose
)

func (m Mode) String() string {
	if m == ModeVerbose {
		return "verbose"
	}
	return "normal"
}

// lineRule tries to build a signal from a trimmed output line.
type lineRule func(line string) (model.Signal, bool)

// lineRules is the priority-ordered match table for line payloads.
var lineRules = []lineRule{
	matchStep,
	matchPull,
	matchContains("Getting image source signatures", model.SignatureVerification{}),
	matchContains("Copying blob", model.LayerDownloading{}),
	matchContains("Copying config", model.ConfigCopying{}),
	matchContains("Writing manifest", model.ManifestWriting{}),
	matchCachedLayer,
	matchCompletedLayer,
	matchCommit,
	matchTagged,
	matchBuilt,
	matchInstructionHint,
}

// Classifier maps raw events to signals. It is stateless; the mode only
// decides whether unmatched events surface as UnclassifiedEvent.
type Classifier struct {
	mode Mode
}

// New creates a classifier for the given mode.
func New(mode Mode) *Classifier {
	return &Classifier{mode: mode}
}

// Mode returns the classifier's mode.
func (c *Classifier) Mode() Mode { return c.mode }

// Classify maps one raw event to zero or one signals.
// The slice form keeps the contract open for multi-signal rules, but
// every current rule emits at most one signal per event.
func (c *Classifier) Classify(ev model.RawEvent) []model.Signal {
	switch ev.Kind() {
	case model.KindLine:
		return c.classifyLine(ev.Line)
	case model.KindAux:
		return []model.Signal{classifyAux(ev.Aux)}
	case model.KindStatus:
		return []model.Signal{model.StatusEvent{Text: ev.Status}}
	case model.KindProgress:
		return []model.Signal{model.ProgressEvent{Raw: ev.Progress}}
	case model.KindID:
		return []model.Signal{model.BuildIDEvent{FullID: ev.ID}}
	default:
		return c.unmatched(ev.Other)
	}
}

func (c *Classifier) classifyLine(line string) []model.Signal {
	trimmed := strings.TrimSpace(line)
	for _, rule := range lineRules {
		if sig, ok := rule(trimmed); ok {
			return []model.Signal{sig}
		}
	}
	return c.unmatched(line)
}

// unmatched applies rule 13: drop in normal mode, wrap in verbose mode.
func (c *Classifier) unmatched(raw string) []model.Signal {
	if c.mode == ModeVerbose {
		return []model.Signal{model.UnclassifiedEvent{Raw: raw}}
	}
	return nil
}

// matchStep parses "STEP <i>/<n>: <instruction>".
// An unparsable index fails the match so later rules get a chance; an
// unparsable or zero total degrades to 0 (unknown) rather than an error.
func matchStep(line string) (model.Signal, bool) {
	rest, ok := strings.CutPrefix(line, "STEP ")
	if !ok {
		return nil, false
	}
	counts, instruction, ok := strings.Cut(rest, ":")
	if !ok {
		return nil, false
	}
	idxStr, totalStr, ok := strings.Cut(counts, "/")
	if !ok {
		return nil, false
	}
	index, err := strconv.Atoi(strings.TrimSpace(idxStr))
	if err != nil {
		return nil, false
	}
	total, err := strconv.Atoi(strings.TrimSpace(totalStr))
	if err != nil || total < 0 {
		total = 0
	}
	instruction = strings.TrimSpace(instruction)
	return model.StepStarted{
		Index:  index,
		Total:  total,
		Kind:   model.ParseInstruction(instruction),
		Detail: line,
	}, true
}

// matchPull parses "Trying to pull <ref>...".
func matchPull(line string) (model.Signal, bool) {
	ref, ok := strings.CutPrefix(line, "Trying to pull ")
	if !ok {
		return nil, false
	}
	if i := strings.Index(ref, "..."); i >= 0 {
		ref = ref[:i]
	}
	return model.ImagePullStarted{Reference: ref}, true
}

// matchContains builds a rule for substring matches with fixed signals.
func matchContains(substr string, sig model.Signal) lineRule {
	return func(line string) (model.Signal, bool) {
		if strings.Contains(line, substr) {
			return sig, true
		}
		return nil, false
	}
}

// matchCachedLayer parses "--> Using cache <hash>".
func matchCachedLayer(line string) (model.Signal, bool) {
	rest, ok := strings.CutPrefix(line, "-->")
	if !ok {
		return nil, false
	}
	hash, ok := strings.CutPrefix(strings.TrimSpace(rest), "Using cache")
	if !ok {
		return nil, false
	}
	return model.LayerCached{ShortID: model.ShortID(strings.TrimSpace(hash))}, true
}

// matchCompletedLayer parses "--> <hash>". Runs after matchCachedLayer,
// so a cache line never lands here.
func matchCompletedLayer(line string) (model.Signal, bool) {
	hash, ok := strings.CutPrefix(line, "-->")
	if !ok {
		return nil, false
	}
	return model.LayerCompleted{ShortID: model.ShortID(strings.TrimSpace(hash))}, true
}

// matchCommit parses "COMMIT <ref>".
func matchCommit(line string) (model.Signal, bool) {
	ref, ok := strings.CutPrefix(line, "COMMIT ")
	if !ok {
		return nil, false
	}
	return model.ImageCommitting{Reference: strings.TrimSpace(ref)}, true
}

// matchTagged parses "Successfully tagged <ref>".
func matchTagged(line string) (model.Signal, bool) {
	ref, ok := strings.CutPrefix(line, "Successfully tagged ")
	if !ok {
		return nil, false
	}
	return model.ImageTagged{Reference: strings.TrimSpace(ref)}, true
}

// matchBuilt parses "Successfully built <hash>".
func matchBuilt(line string) (model.Signal, bool) {
	hash, ok := strings.CutPrefix(line, "Successfully built ")
	if !ok {
		return nil, false
	}
	return model.BuildSucceeded{ShortID: model.ShortID(strings.TrimSpace(hash))}, true
}

// matchInstructionHint scans for bare instruction keywords on lines that
// are not STEP headers. STEP lines never reach this rule, so a step is
// never double-reported as both a step and an instruction hint.
func matchInstructionHint(line string) (model.Signal, bool) {
	hints := []struct {
		keyword string
		kind    model.InstructionKind
	}{
		{"FROM", model.InstructionFrom},
		{"COPY", model.InstructionCopy},
		{"RUN", model.InstructionRun},
		{"WORKDIR", model.InstructionWorkdir},
		{"EXPOSE", model.InstructionExpose},
		{"CMD", model.InstructionEntrypoint},
		{"ENTRYPOINT", model.InstructionEntrypoint},
	}
	for _, h := range hints {
		if strings.Contains(line, h.keyword) {
			return model.InstructionHint{Kind: h.kind}, true
		}
	}
	return nil, false
}

// defaultAux is the engine's "default image id" aux payload shape.
// Any richer aux payload (BuildKit traces etc.) fails this decode and is
// passed through raw.
type defaultAux struct {
	ID string `json:"ID"`
}

// classifyAux maps an aux payload to a BuildInfoEvent, extracting the
// image id when the payload has the default shape.
func classifyAux(raw []byte) model.Signal {
	var aux defaultAux
	if err := json.Unmarshal(raw, &aux); err == nil && aux.ID != "" {
		return model.BuildInfoEvent{ImageID: aux.ID}
	}
	return model.BuildInfoEvent{Raw: raw}
}
