package yarn

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"auditgate/internal/cmderr"
	"auditgate/internal/model"
)

// Record types emitted by `yarn audit --json`.
const (
	TypeAuditAdvisory = "auditAdvisory"
	TypeAuditSummary  = "auditSummary"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type advisoryData struct {
	Advisory *rawAdvisory `json:"advisory"`
}

type rawAdvisory struct {
	ID                 flexibleID      `json:"id"`
	GitHubAdvisoryID   string          `json:"github_advisory_id"`
	Severity           string          `json:"severity"`
	URL                string          `json:"url"`
	ModuleName         string          `json:"module_name"`
	Title              string          `json:"title"`
	VulnerableVersions string          `json:"vulnerable_versions"`
	PatchedVersions    string          `json:"patched_versions"`
	Recommendation     string          `json:"recommendation"`
	Findings           []model.Finding `json:"findings"`
}

// flexibleID accepts both numeric and string advisory ids.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("advisory id %s is neither a number nor a string", b)
	}
	*f = flexibleID(n.String())
	return nil
}

// Summary is the auditSummary record yarn prints after the advisories.
type Summary struct {
	Vulnerabilities   map[string]int `json:"vulnerabilities"`
	Dependencies      int            `json:"dependencies"`
	DevDependencies   int            `json:"devDependencies"`
	TotalDependencies int            `json:"totalDependencies"`
}

// Stream decodes newline-delimited audit output. It can be iterated once.
type Stream struct {
	r       io.Reader
	summary *Summary
}

func NewStream(r io.Reader) *Stream {
	return &Stream{r: r}
}

// Summary returns the audit summary once the stream has been consumed, or
// nil if yarn did not print one.
func (s *Stream) Summary() *Summary { return s.summary }

// Advisories yields the advisory records of the stream in order. Blank lines
// and records of other types are skipped. A line that is not JSON, or an
// advisory that cannot be decoded, yields a decode error and ends the sequence.
func (s *Stream) Advisories() iter.Seq2[model.Advisory, error] {
	return func(yield func(model.Advisory, error) bool) {
		br := bufio.NewReader(s.r)
		lineNo := 0
		for {
			line, readErr := br.ReadBytes('\n')
			if len(line) > 0 {
				lineNo++
				adv, ok, err := s.decodeLine(line, lineNo)
				if err != nil {
					yield(model.Advisory{}, err)
					return
				}
				if ok && !yield(adv, nil) {
					return
				}
			}
			if readErr == io.EOF {
				return
			}
			if readErr != nil {
				yield(model.Advisory{}, cmderr.Decode(fmt.Errorf("failed to read audit output: %w", readErr)))
				return
			}
		}
	}
}

func (s *Stream) decodeLine(line []byte, lineNo int) (model.Advisory, bool, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return model.Advisory{}, false, nil
	}
	if !json.Valid(line) {
		return model.Advisory{}, false, cmderr.Decode(fmt.Errorf("line %d is not valid JSON: %s", lineNo, truncate(line, 200)))
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		// valid JSON, just not a record object
		return model.Advisory{}, false, nil
	}

	switch env.Type {
	case TypeAuditAdvisory:
		adv, err := decodeAdvisory(env.Data)
		if err != nil {
			return model.Advisory{}, false, cmderr.Decode(fmt.Errorf("line %d: %w", lineNo, err))
		}
		return adv, true, nil
	case TypeAuditSummary:
		var sum Summary
		if err := json.Unmarshal(env.Data, &sum); err == nil {
			s.summary = &sum
		}
	}
	return model.Advisory{}, false, nil
}

func decodeAdvisory(data json.RawMessage) (model.Advisory, error) {
	var d advisoryData
	if err := json.Unmarshal(data, &d); err != nil {
		return model.Advisory{}, fmt.Errorf("malformed advisory record: %w", err)
	}
	if d.Advisory == nil {
		return model.Advisory{}, fmt.Errorf("advisory record without advisory")
	}
	raw := d.Advisory
	if raw.ID == "" {
		return model.Advisory{}, fmt.Errorf("advisory without id")
	}
	sev, err := model.ParseSeverity(raw.Severity)
	if err != nil {
		return model.Advisory{}, fmt.Errorf("advisory %s: %w", raw.ID, err)
	}

	return model.Advisory{
		ID:                 string(raw.ID),
		GitHubAdvisoryID:   raw.GitHubAdvisoryID,
		Severity:           sev,
		URL:                raw.URL,
		ModuleName:         raw.ModuleName,
		Title:              raw.Title,
		VulnerableVersions: raw.VulnerableVersions,
		PatchedVersions:    raw.PatchedVersions,
		Recommendation:     raw.Recommendation,
		Findings:           raw.Findings,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
