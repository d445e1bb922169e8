package types

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// TriggerType selects how a policy's aggregated value is compared
// against its thresholds.
type TriggerType string

const (
	TriggerGreaterThan     TriggerType = "GREATER_THAN"
	TriggerGreaterThanOrEq TriggerType = "GREATER_THAN_OR_EQ"
	TriggerLessThan        TriggerType = "LESS_THAN"
	TriggerLessThanOrEq    TriggerType = "LESS_THAN_OR_EQ"
	TriggerEqual           TriggerType = "EQUAL"
	TriggerNotEqual        TriggerType = "NOT_EQUAL"
	TriggerBetween         TriggerType = "BETWEEN"
	TriggerNotBetween      TriggerType = "NOT_BETWEEN"
)

var triggerTypes = []TriggerType{
	TriggerGreaterThan, TriggerGreaterThanOrEq, TriggerLessThan, TriggerLessThanOrEq,
	TriggerEqual, TriggerNotEqual, TriggerBetween, TriggerNotBetween,
}

// ParseTriggerType parses a trigger type name, ignoring case.
func ParseTriggerType(s string) (TriggerType, error) {
	for _, t := range triggerTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown trigger type %q", s)
}

// Ranged reports whether the trigger compares against a lower and an
// upper threshold.
func (t TriggerType) Ranged() bool {
	return t == TriggerBetween || t == TriggerNotBetween
}

// Aggregator selects how samples inside a policy window are combined.
type Aggregator string

const (
	AggregatorMin    Aggregator = "MIN"
	AggregatorMax    Aggregator = "MAX"
	AggregatorSum    Aggregator = "SUM"
	AggregatorAvg    Aggregator = "AVG"
	AggregatorDev    Aggregator = "DEV"
	AggregatorZimSum Aggregator = "ZIMSUM"
	AggregatorMinMin Aggregator = "MINMIN"
	AggregatorMinMax Aggregator = "MINMAX"
)

var aggregators = []Aggregator{
	AggregatorMin, AggregatorMax, AggregatorSum, AggregatorAvg,
	AggregatorDev, AggregatorZimSum, AggregatorMinMin, AggregatorMinMax,
}

// ParseAggregator parses an aggregator name, ignoring case.
func ParseAggregator(s string) (Aggregator, error) {
	for _, a := range aggregators {
		if strings.EqualFold(string(a), s) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown aggregator %q", s)
}

// Audit carries the bookkeeping fields the authority fills in. They are
// never part of policy equality.
type Audit struct {
	CreatedByID  *int64 `json:"createdById,omitempty" yaml:"-"`
	CreatedDate  *int64 `json:"createdDate,omitempty" yaml:"-"`
	ModifiedByID *int64 `json:"modifiedById,omitempty" yaml:"-"`
	ModifiedDate *int64 `json:"modifiedDate,omitempty" yaml:"-"`
}

// SuspensionLevel maps a count of infractions to a suspension duration.
type SuspensionLevel struct {
	ID       *int64 `json:"id,omitempty" yaml:"-"`
	PolicyID *int64 `json:"policyId,omitempty" yaml:"-"`
	Audit    `yaml:",inline"`

	// LevelNumber is unique within a policy.
	LevelNumber int `json:"levelNumber" yaml:"level"`

	// InfractionCount is the number of infractions that reaches this level.
	InfractionCount int `json:"infractionCount" yaml:"infraction_count"`

	// SuspensionTime is the suspension duration in milliseconds.
	SuspensionTime int64 `json:"suspensionTime" yaml:"suspension_time"`
}

// Policy is a usage rule registered with the authority.
type Policy struct {
	// ID is assigned by the authority. Nil until the policy is reconciled.
	ID    *int64 `json:"id,omitempty" yaml:"-"`
	Audit `yaml:",inline"`

	Service          string            `json:"service" yaml:"service"`
	Name             string            `json:"name" yaml:"name"`
	Owners           []string          `json:"owners" yaml:"owners"`
	Users            []string          `json:"users" yaml:"users"`
	SubSystem        string            `json:"subSystem" yaml:"sub_system"`
	TriggerType      TriggerType       `json:"triggerType" yaml:"trigger_type"`
	Aggregator       Aggregator        `json:"aggregator" yaml:"aggregator"`
	Thresholds       []float64         `json:"thresholds" yaml:"thresholds"`
	TimeUnit         string            `json:"timeUnit" yaml:"time_unit"`
	DefaultValue     float64           `json:"defaultValue" yaml:"default_value"`
	CronEntry        string            `json:"cronEntry" yaml:"cron_entry"`
	SuspensionLevels []SuspensionLevel `json:"suspensionLevels" yaml:"suspension_levels"`
}

// PolicyID returns the assigned identity and whether one is set.
func (p *Policy) PolicyID() (int64, bool) {
	if p == nil || p.ID == nil {
		return 0, false
	}
	return *p.ID, true
}

// WithID returns a copy of the policy carrying the given identity.
func (p Policy) WithID(id int64) Policy {
	p.ID = &id
	return p
}

// HasUser reports whether user is in the policy's user list.
func (p *Policy) HasUser(user string) bool {
	return slices.Contains(p.Users, user)
}

// String identifies the policy in logs and messages.
func (p *Policy) String() string {
	if id, ok := p.PolicyID(); ok {
		return fmt.Sprintf("%s/%s(%d)", p.Service, p.Name, id)
	}
	return p.Service + "/" + p.Name
}

// Equal compares the declarative fields of two policies. Identity and
// audit fields are ignored.
func (p *Policy) Equal(o *Policy) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.Service != o.Service || p.Name != o.Name || p.SubSystem != o.SubSystem {
		return false
	}
	if p.TriggerType != o.TriggerType || p.Aggregator != o.Aggregator {
		return false
	}
	if p.TimeUnit != o.TimeUnit || p.CronEntry != o.CronEntry || p.DefaultValue != o.DefaultValue {
		return false
	}
	if !slices.Equal(p.Owners, o.Owners) || !slices.Equal(p.Users, o.Users) {
		return false
	}
	if !slices.Equal(p.Thresholds, o.Thresholds) {
		return false
	}
	return slices.EqualFunc(p.SuspensionLevels, o.SuspensionLevels, func(a, b SuspensionLevel) bool {
		return a.LevelNumber == b.LevelNumber &&
			a.InfractionCount == b.InfractionCount &&
			a.SuspensionTime == b.SuspensionTime
	})
}

// Validate checks that the policy can be registered.
func (p *Policy) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Service) == "" {
		errs = append(errs, errors.New("service is required"))
	}
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if _, err := ParseTriggerType(string(p.TriggerType)); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseAggregator(string(p.Aggregator)); err != nil {
		errs = append(errs, err)
	}

	minThresholds := 1
	if p.TriggerType.Ranged() {
		minThresholds = 2
	}
	if len(p.Thresholds) < minThresholds {
		errs = append(errs, fmt.Errorf("trigger %s needs at least %d threshold(s), got %d",
			p.TriggerType, minThresholds, len(p.Thresholds)))
	}

	seen := make(map[int]bool, len(p.SuspensionLevels))
	for _, level := range p.SuspensionLevels {
		if seen[level.LevelNumber] {
			errs = append(errs, fmt.Errorf("duplicate suspension level %d", level.LevelNumber))
		}
		seen[level.LevelNumber] = true
		if level.SuspensionTime < 0 && level.SuspensionTime != IndefiniteExpiration {
			errs = append(errs, fmt.Errorf("suspension level %d: negative suspension time", level.LevelNumber))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("policy %s: %w", p, errors.Join(errs...))
	}
	return nil
}

// Normalize upper-cases the enumerated fields so YAML authors may write
// them in any case.
func (p *Policy) Normalize() {
	if t, err := ParseTriggerType(string(p.TriggerType)); err == nil {
		p.TriggerType = t
	}
	if a, err := ParseAggregator(string(p.Aggregator)); err == nil {
		p.Aggregator = a
	}
}
