package targets

import (
	_ "embed"
	"errors"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"omibyte.io/kestrel/arc/arcv2"
)

//go:embed targets.yaml
var rawTargets []byte

var targets Targets

var ErrTargetNotFound = errors.New("target not found")
var ErrBadDescriptor = errors.New("bad target descriptor")

func All() Targets {
	return targets
}

type Targets []Target

// Target is one supported core configuration as shipped in
// targets.yaml. It is the serialized form of arcv2.Capabilities plus
// the board names it applies to.
type Target struct {
	Series            string   `yaml:"series"`
	Core              string   `yaml:"core"`
	Boards            []string `yaml:"boards"`
	MPUVersion        int      `yaml:"mpuVersion"`
	MPUMinRegion      uint32   `yaml:"mpuMinRegion"`
	StackAlign        uint32   `yaml:"stackAlign"`
	GuardSize         uint32   `yaml:"guardSize"`
	PrivStackSize     uint32   `yaml:"privStackSize"`
	Userspace         bool     `yaml:"userspace"`
	SecureShield      bool     `yaml:"secureShield"`
	StackChecking     bool     `yaml:"stackChecking"`
	InitStacks        bool     `yaml:"initStacks"`
	CoopPriorities    int      `yaml:"coopPriorities"`
	PreemptPriorities int      `yaml:"preemptPriorities"`
}

// Capabilities resolves the descriptor into the capability value the
// kernel is configured with.
func (t Target) Capabilities() (arcv2.Capabilities, error) {
	caps := arcv2.Capabilities{
		StackAlign:        t.StackAlign,
		GuardSize:         t.GuardSize,
		PrivStackSize:     t.PrivStackSize,
		Userspace:         t.Userspace,
		SecureWorld:       t.SecureShield,
		StackChecking:     t.StackChecking,
		StackPoison:       t.InitStacks,
		CoopPriorities:    t.CoopPriorities,
		PreemptPriorities: t.PreemptPriorities,
	}
	switch t.MPUVersion {
	case 0:
		caps.Rounding = arcv2.RoundNone
	case 2:
		caps.Rounding = arcv2.RoundPow2
		caps.Granularity = t.MPUMinRegion
	case 3, 4:
		caps.Rounding = arcv2.RoundAlign
		caps.Granularity = t.MPUMinRegion
	default:
		return arcv2.Capabilities{}, errors.Join(ErrBadDescriptor, errors.New("unsupported MPU version"))
	}
	if err := caps.Validate(); err != nil {
		return arcv2.Capabilities{}, errors.Join(ErrBadDescriptor, err)
	}
	return caps, nil
}

func (t Targets) FindBySeries(name string) (Target, error) {
	for _, target := range t {
		if target.Series == strings.ToLower(name) {
			return target, nil
		}
	}
	return Target{}, ErrTargetNotFound
}

func (t Targets) FindByBoard(name string) (Target, error) {
	for _, target := range t {
		if slices.Contains(target.Boards, strings.ToLower(name)) {
			return target, nil
		}
	}
	return Target{}, ErrTargetNotFound
}

func init() {
	var t struct {
		Elements []Target `yaml:"targets"`
	}
	if err := yaml.Unmarshal(rawTargets, &t); err != nil {
		panic(err)
	}

	targets = t.Elements
}
