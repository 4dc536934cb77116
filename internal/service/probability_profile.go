package service

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	defaultProfileName      = "default"
	defaultWeightKey        = "__default__"
	defaultSameDayCloseRate = 0.25
	defaultDailyCloseRate   = 0.15
	defaultMaxCloseDays     = 14
)

// Weight categories consulted by the sampler.
const (
	CategoryCustomer     = "customer"
	CategoryContact      = "contact"
	CategoryIssueType    = "issue_type"
	CategoryPriority     = "priority"
	CategoryStatus       = "status"
	CategorySubject      = "subject"
	CategoryDescription  = "description"
	CategoryLaborType    = "labor_type"
	CategoryDurationMins = "duration_minutes"
)

// WeightedProfile is a named table of category weights plus closure heuristics.
type WeightedProfile struct {
	Name             string
	Weights          map[string]map[string]float64
	SameDayCloseRate float64
	DailyCloseRate   float64
	MaxCloseDays     int
}

// NewWeightedProfile returns a profile with stock closure rates and no weights.
func NewWeightedProfile(name string) *WeightedProfile {
	return &WeightedProfile{
		Name:             name,
		Weights:          map[string]map[string]float64{},
		SameDayCloseRate: defaultSameDayCloseRate,
		DailyCloseRate:   defaultDailyCloseRate,
		MaxCloseDays:     defaultMaxCloseDays,
	}
}

// WeightFor returns the configured weight, the category default, or 1.0. Never negative.
func (p *WeightedProfile) WeightFor(category, value string) float64 {
	weight := 1.0
	if p != nil {
		if rules, ok := p.Weights[category]; ok {
			if def, ok := rules[defaultWeightKey]; ok {
				weight = def
			}
			if w, ok := rules[value]; ok {
				weight = w
			}
		}
	}
	if weight < 0 {
		return 0
	}
	return weight
}

// Pick draws one option proportionally to its weight. All-zero weights fall back to a uniform draw.
func (p *WeightedProfile) Pick(rng *rand.Rand, category string, options []string) (string, bool) {
	if len(options) == 0 {
		return "", false
	}

	weights := make([]float64, len(options))
	total := 0.0
	lastPositive := -1
	for i, option := range options {
		weights[i] = p.WeightFor(category, option)
		if weights[i] > 0 {
			total += weights[i]
			lastPositive = i
		}
	}
	if total <= 0 {
		return options[rng.Intn(len(options))], true
	}

	target := rng.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cumulative += w
		if target < cumulative {
			return options[i], true
		}
	}
	return options[lastPositive], true
}

// ProfileRegistry serves profiles and per-technician and per-customer mappings for one run.
type ProfileRegistry struct {
	profiles         map[string]*WeightedProfile
	defaultName      string
	techProfiles     map[string]string
	customerProfiles map[string]string
}

// LoadProfileRegistry reads a JSON or YAML profile document. Unreadable documents yield stock defaults.
func LoadProfileRegistry(path string, roster []string, rng *rand.Rand, logger *zap.Logger) *ProfileRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}

	doc := map[string]interface{}{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err != nil:
			logger.Warn("probability profile file unavailable, using defaults", zap.String("path", path), zap.Error(err))
		default:
			parsed, err := ParseProfileDocument(data, filepath.Ext(path))
			if err != nil {
				logger.Warn("could not parse probability profile file", zap.String("path", path), zap.Error(err))
			} else {
				doc = parsed
			}
		}
	}

	return NewProfileRegistry(doc, roster, rng, logger)
}

// ParseProfileDocument decodes a profile document. ext selects YAML for ".yaml"/".yml", JSON otherwise.
func ParseProfileDocument(data []byte, ext string) (map[string]interface{}, error) {
	doc := map[string]interface{}{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml profiles: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode json profiles: %w", err)
		}
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return doc, nil
}

// NewProfileRegistry builds a registry from a decoded document. When roster is non-empty each
// technician is assigned a random profile using rng; otherwise the static tech_profiles mapping applies.
func NewProfileRegistry(doc map[string]interface{}, roster []string, rng *rand.Rand, logger *zap.Logger) *ProfileRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &ProfileRegistry{profiles: buildProfiles(asMap(doc["profiles"]))}
	r.defaultName = r.determineDefault(doc["default_profile"])
	r.customerProfiles = r.coerceMapping(doc["customer_profiles"])

	if dynamic := r.assignDynamic(roster, rng); len(dynamic) > 0 {
		r.techProfiles = dynamic
		logger.Info("assigned probability profiles to technicians", zap.Int("techs", len(dynamic)))
	} else {
		r.techProfiles = r.coerceMapping(doc["tech_profiles"])
		if len(r.techProfiles) > 0 {
			logger.Info("using configured tech profiles", zap.Int("techs", len(r.techProfiles)))
		}
	}

	return r
}

func buildProfiles(payload map[string]interface{}) map[string]*WeightedProfile {
	profiles := make(map[string]*WeightedProfile, len(payload))
	for name, raw := range payload {
		data := asMap(raw)
		profile := NewWeightedProfile(name)
		profile.SameDayCloseRate = clampRate(asFloat(data["same_day_close_rate"], defaultSameDayCloseRate))
		profile.DailyCloseRate = clampRate(asFloat(data["daily_close_rate"], defaultDailyCloseRate))
		profile.MaxCloseDays = int(asFloat(data["max_close_days"], defaultMaxCloseDays))
		if profile.MaxCloseDays < 1 {
			profile.MaxCloseDays = 1
		}

		for key, value := range data {
			if key == "close" || key == "close_config" {
				continue
			}
			if !isMap(value) {
				continue
			}
			rules := asMap(value)
			weights := make(map[string]float64, len(rules))
			for option, w := range rules {
				weights[option] = asFloat(w, 1.0)
			}
			profile.Weights[key] = weights
		}
		profiles[name] = profile
	}

	if len(profiles) == 0 {
		profiles[defaultProfileName] = NewWeightedProfile(defaultProfileName)
	}
	return profiles
}

func (r *ProfileRegistry) determineDefault(configured interface{}) string {
	if name, ok := configured.(string); ok {
		if _, exists := r.profiles[name]; exists {
			return name
		}
	}
	return r.ProfileNames()[0]
}

func (r *ProfileRegistry) assignDynamic(roster []string, rng *rand.Rand) map[string]string {
	if len(roster) == 0 || rng == nil {
		return nil
	}
	names := r.ProfileNames()
	assignments := make(map[string]string, len(roster))
	for _, tech := range roster {
		tech = strings.TrimSpace(tech)
		if tech == "" {
			continue
		}
		if _, done := assignments[tech]; done {
			continue
		}
		assignments[tech] = names[rng.Intn(len(names))]
	}
	return assignments
}

func (r *ProfileRegistry) coerceMapping(raw interface{}) map[string]string {
	mapping := map[string]string{}
	for entity, value := range asMap(raw) {
		name, ok := value.(string)
		if !ok {
			continue
		}
		if _, exists := r.profiles[name]; exists {
			mapping[entity] = name
		}
	}
	return mapping
}

// ProfileNames returns the profile names in sorted order.
func (r *ProfileRegistry) ProfileNames() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile returns the named profile, or the default when unknown.
func (r *ProfileRegistry) Profile(name string) *WeightedProfile {
	if p, ok := r.profiles[name]; ok && name != "" {
		return p
	}
	return r.profiles[r.defaultName]
}

// DefaultProfile returns the registry default.
func (r *ProfileRegistry) DefaultProfile() *WeightedProfile {
	return r.profiles[r.defaultName]
}

// ResolveTechProfile returns the profile mapped to tech.
func (r *ProfileRegistry) ResolveTechProfile(tech string) *WeightedProfile {
	return r.Profile(r.techProfiles[tech])
}

// ResolveCustomerProfile returns the profile mapped to customer.
func (r *ProfileRegistry) ResolveCustomerProfile(customer string) *WeightedProfile {
	return r.Profile(r.customerProfiles[customer])
}

// Resolve prefers the technician mapping over the customer mapping.
func (r *ProfileRegistry) Resolve(tech, customer string) *WeightedProfile {
	if name, ok := r.techProfiles[tech]; ok && tech != "" {
		return r.Profile(name)
	}
	if name, ok := r.customerProfiles[customer]; ok && customer != "" {
		return r.Profile(name)
	}
	return r.DefaultProfile()
}

// TechProfileMapping returns a copy of the technician assignments.
func (r *ProfileRegistry) TechProfileMapping() map[string]string {
	out := make(map[string]string, len(r.techProfiles))
	for tech, name := range r.techProfiles {
		out[tech] = name
	}
	return out
}

func asMap(raw interface{}) map[string]interface{} {
	switch v := raw.(type) {
	case map[string]interface{}:
		return v
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if s, ok := key.(string); ok {
				out[s] = value
			}
		}
		return out
	default:
		return map[string]interface{}{}
	}
}

func isMap(raw interface{}) bool {
	switch raw.(type) {
	case map[string]interface{}, map[interface{}]interface{}:
		return true
	default:
		return false
	}
}

func asFloat(raw interface{}, fallback float64) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func clampRate(rate float64) float64 {
	switch {
	case rate < 0:
		return 0
	case rate > 1:
		return 1
	default:
		return rate
	}
}
