// Package plan loads triage plans: JSON files describing one triage run.
//
// The accepted document shape is the JSON Schema reflected from [Plan]; a
// plan is validated against it before it is decoded.
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/usestring/aptrace/internal/config"
)

// ErrInvalid is returned for plans that do not match the schema.
var ErrInvalid = errors.New("invalid triage plan")

// Plan describes a triage run. Zero fields keep the configured value.
type Plan struct {
	Log     string `json:"log" jsonschema:"minLength=1,description=Path of the capture log to triage"`
	Service string `json:"service" jsonschema:"minLength=1,description=Path of the target service binary"`
	Port    int    `json:"port" jsonschema:"minimum=1,maximum=65535,description=Port the supervised target listens on"`

	Host          string `json:"host,omitempty" jsonschema:"description=Address replay scripts connect to"`
	Workers       int    `json:"workers,omitempty" jsonschema:"minimum=1,maximum=1000"`
	TestTimeoutMs int    `json:"test_timeout_ms,omitempty" jsonschema:"minimum=1"`
	ReadTimeoutMs int    `json:"read_timeout_ms,omitempty" jsonschema:"minimum=1"`
	Marker        string `json:"marker,omitempty" jsonschema:"minLength=1,description=Output substring that confirms a fault"`
	Interpreter   string `json:"interpreter,omitempty"`

	Arch     string `json:"arch,omitempty" jsonschema:"enum=x86_64,enum=mips"`
	Emulator string `json:"emulator,omitempty"`
	Preload  string `json:"preload,omitempty"`
	MipsRoot string `json:"mips_root,omitempty"`
}

// Schema returns the JSON Schema of a plan document.
func Schema() *invopop.Schema {
	r := &invopop.Reflector{DoNotReference: true}
	return r.Reflect(&Plan{})
}

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	raw, err := json.Marshal(Schema())
	if err != nil {
		return nil, fmt.Errorf("marshaling plan schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshaling plan schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("plan.json", doc); err != nil {
		return nil, fmt.Errorf("adding plan schema: %w", err)
	}
	return c.Compile("plan.json")
})

// Parse validates data and decodes it into a Plan.
func Parse(data []byte) (*Plan, error) {
	sch, err := compiled()
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(validationErrors(err), "; "))
	}

	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return &p, nil
}

// Load reads and parses the plan at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Apply overrides cfg with every field set in p.
func (p *Plan) Apply(cfg *config.Config) {
	setString(&cfg.TriageHost, p.Host)
	setString(&cfg.TriageMarker, p.Marker)
	setString(&cfg.TriageInterpreter, p.Interpreter)
	setString(&cfg.TriageArch, p.Arch)
	setString(&cfg.TriageEmulator, p.Emulator)
	setString(&cfg.TriagePreload, p.Preload)
	setString(&cfg.TriageMipsRoot, p.MipsRoot)

	if p.Port > 0 {
		cfg.TriagePort = p.Port
	}
	if p.Workers > 0 {
		cfg.TriageWorkers = p.Workers
	}
	if p.TestTimeoutMs > 0 {
		cfg.TriageTestTimeout = time.Duration(p.TestTimeoutMs) * time.Millisecond
	}
	if p.ReadTimeoutMs > 0 {
		cfg.TriageReadTimeout = time.Duration(p.ReadTimeoutMs) * time.Millisecond
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

var printer = message.NewPrinter(language.English)

// validationErrors flattens err into "path: message" lines, leaves only.
func validationErrors(err error) []string {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}
	}

	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 && e.ErrorKind != nil {
			msg := e.ErrorKind.LocalizedString(printer)
			if path := strings.Join(e.InstanceLocation, "/"); path != "" {
				msg = "/" + path + ": " + msg
			}
			out = append(out, msg)
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)

	sort.Strings(out)
	return out
}
